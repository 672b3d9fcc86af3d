package entities

import (
	"fmt"
	"sort"
	"time"

	"bfdb/domain/core/valueobjects"
	"bfdb/domain/events"
	pkgerrors "bfdb/pkg/errors"
)

// Node is a stored record: metadata, a property bag and the viewer it
// was loaded for. Edges are nodes whose metadata has source and target.
type Node struct {
	metadata   Metadata
	props      valueobjects.Props
	savedProps valueobjects.Props
	viewer     valueobjects.CurrentViewer

	events []events.DomainEvent
}

// NewNode generates metadata for a new, unsaved node. Non-zero fields of
// override replace the generated values.
func NewNode(cv valueobjects.CurrentViewer, className string, props valueobjects.Props, override *Metadata) (*Node, error) {
	n, err := newUnsaved(cv, className, props, override)
	if err != nil {
		return nil, err
	}
	if n.metadata.IsEdge() {
		return nil, pkgerrors.NewValidationError("use NewEdgeBetween to create edges")
	}
	n.addEvent(events.NewNodeCreated(n.metadata.BfGid, n.metadata.BfOid, n.metadata.ClassName, n.metadata.BfCid, n.metadata.CreatedAt))
	return n, nil
}

func newUnsaved(cv valueobjects.CurrentViewer, className string, props valueobjects.Props, override *Metadata) (*Node, error) {
	if err := cv.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error()).WithCode(pkgerrors.CodeInvalidViewer)
	}

	now := time.Now().UTC()
	md := Metadata{
		BfGid:       valueobjects.NewBfGid(),
		BfOid:       cv.OrgBfOid,
		ClassName:   className,
		SortValue:   valueobjects.NextSortValue(),
		BfCid:       cv.PersonBfGid,
		CreatedAt:   now,
		LastUpdated: now,
	}
	md.applyOverrides(override)

	if err := valueobjects.ValidateClassName(md.ClassName); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error()).WithCode(pkgerrors.CodeInvalidClassName)
	}

	return &Node{
		metadata: md,
		props:    props.Clone(),
		viewer:   cv,
	}, nil
}

// NodeFromItem rebuilds a saved node from a storage row. Nodes created
// afterwards in this process sort after it.
func NodeFromItem(cv valueobjects.CurrentViewer, item Item) *Node {
	valueobjects.ObserveSortValue(item.Metadata.SortValue)
	return &Node{
		metadata:   item.Metadata,
		props:      item.Props.Clone(),
		savedProps: item.Props.Clone(),
		viewer:     cv,
	}
}

// ID returns the node's global id
func (n *Node) ID() valueobjects.BfGid { return n.metadata.BfGid }

// OrgID returns the owning organisation
func (n *Node) OrgID() valueobjects.BfGid { return n.metadata.BfOid }

// ClassName returns the node class
func (n *Node) ClassName() string { return n.metadata.ClassName }

// Metadata returns a copy of the metadata
func (n *Node) Metadata() Metadata { return n.metadata }

// Props returns a copy of the current props
func (n *Node) Props() valueobjects.Props { return n.props.Clone() }

// Viewer returns the viewer the node was created or loaded for
func (n *Node) Viewer() valueobjects.CurrentViewer { return n.viewer }

// IsEdge reports whether the node is an edge
func (n *Node) IsEdge() bool { return n.metadata.IsEdge() }

// SetProps merges p into the current props
func (n *Node) SetProps(p valueobjects.Props) {
	n.props = n.props.Merge(p)
}

// ReplaceProps discards the current props in favour of p
func (n *Node) ReplaceProps(p valueobjects.Props) {
	n.props = p.Clone()
}

// IsNew reports whether the node has never been saved
func (n *Node) IsNew() bool {
	return n.savedProps == nil
}

// IsDirty reports whether props differ from the last saved snapshot
func (n *Node) IsDirty() bool {
	return n.IsNew() || !n.props.Equal(n.savedProps)
}

// ChangedKeys lists the prop keys added, removed or modified since the
// last save, sorted.
func (n *Node) ChangedKeys() []string {
	var keys []string
	for k, v := range n.props {
		old, ok := n.savedProps[k]
		if !ok || !valueobjects.ValuesEqual(old, v) {
			keys = append(keys, k)
		}
	}
	for k := range n.savedProps {
		if _, ok := n.props[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Touch bumps LastUpdated
func (n *Node) Touch(now time.Time) {
	if !now.After(n.metadata.LastUpdated) {
		now = n.metadata.LastUpdated.Add(time.Millisecond)
	}
	n.metadata.LastUpdated = now
}

// PrepareSave stamps LastUpdated and records an update event for nodes
// that were saved before.
func (n *Node) PrepareSave(now time.Time) {
	n.Touch(now)
	if !n.IsNew() {
		n.addEvent(events.NewNodeUpdated(n.metadata.BfGid, n.metadata.BfOid, n.metadata.ClassName, n.ChangedKeys(), n.metadata.LastUpdated))
	}
}

// MarkSaved snapshots the props as persisted
func (n *Node) MarkSaved() {
	n.savedProps = n.props.Clone()
}

// MarkDeleted records the deletion event
func (n *Node) MarkDeleted(now time.Time) {
	if n.IsEdge() {
		n.addEvent(events.NewEdgeDeleted(n.metadata.BfGid, n.metadata.BfOid, n.metadata.BfSid, n.metadata.BfTid, now))
		return
	}
	n.addEvent(events.NewNodeDeleted(n.metadata.BfGid, n.metadata.BfOid, n.metadata.ClassName, now))
}

// Reload replaces props and metadata with a fresh storage row
func (n *Node) Reload(item Item) {
	n.metadata = item.Metadata
	n.props = item.Props.Clone()
	n.savedProps = item.Props.Clone()
}

// ToItem converts the node into a storage row
func (n *Node) ToItem() Item {
	return Item{Props: n.props.Clone(), Metadata: n.metadata}
}

// String renders Class#gid⚡️oid
func (n *Node) String() string {
	return fmt.Sprintf("%s#%s⚡️%s", n.metadata.ClassName, n.metadata.BfGid, n.metadata.BfOid)
}

// GetUncommittedEvents returns events recorded since the last commit
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears recorded events
func (n *Node) MarkEventsAsCommitted() {
	n.events = nil
}

func (n *Node) addEvent(e events.DomainEvent) {
	n.events = append(n.events, e)
}
