package entities

import (
	"bfdb/domain/core/valueobjects"
	"bfdb/domain/events"
	pkgerrors "bfdb/pkg/errors"
)

// RoleKey is the edge prop naming the relationship
const RoleKey = "role"

// Edge is a node that connects a source node to a target node.
// Source and target are fixed at creation; props stay mutable.
type Edge struct {
	*Node
}

// NewEdgeBetween builds an unsaved edge from source to target. A missing
// role prop defaults to the empty string.
func NewEdgeBetween(cv valueobjects.CurrentViewer, source, target Metadata, props valueobjects.Props, override *Metadata) (*Edge, error) {
	if source.BfGid.IsZero() || target.BfGid.IsZero() {
		return nil, pkgerrors.NewValidationError("edge source and target are required")
	}
	if source.BfOid != target.BfOid || source.BfOid != cv.OrgBfOid {
		return nil, pkgerrors.NewValidationError("edge endpoints must belong to the viewer's organisation").
			WithCode(pkgerrors.CodeCrossOrgEdge)
	}

	props = props.Clone()
	if _, ok := props[RoleKey]; !ok {
		props[RoleKey] = ""
	}

	md := Metadata{ClassName: valueobjects.DefaultEdgeClassName}
	md.applyOverrides(override)
	md.BfSid = source.BfGid
	md.BfSClassName = source.ClassName
	md.BfTid = target.BfGid
	md.BfTClassName = target.ClassName

	n, err := newUnsaved(cv, md.ClassName, props, &md)
	if err != nil {
		return nil, err
	}
	n.addEvent(events.NewEdgeCreated(n.metadata.BfGid, n.metadata.BfOid, source.BfGid, target.BfGid, props.String(RoleKey), n.metadata.CreatedAt))
	return &Edge{Node: n}, nil
}

// EdgeFromNode views a loaded node as an edge
func EdgeFromNode(n *Node) (*Edge, error) {
	if n == nil || !n.IsEdge() {
		return nil, pkgerrors.NewValidationError("item is not an edge")
	}
	return &Edge{Node: n}, nil
}

func (e *Edge) SourceID() valueobjects.BfGid { return e.metadata.BfSid }
func (e *Edge) TargetID() valueobjects.BfGid { return e.metadata.BfTid }
func (e *Edge) SourceClassName() string      { return e.metadata.BfSClassName }
func (e *Edge) TargetClassName() string      { return e.metadata.BfTClassName }
func (e *Edge) Role() string                 { return e.props.String(RoleKey) }

// Touches reports whether gid is the source or the target of the edge
func (e *Edge) Touches(gid valueobjects.BfGid) bool {
	return e.metadata.BfSid == gid || e.metadata.BfTid == gid
}
