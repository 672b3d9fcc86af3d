package queries

import (
	"bfdb/application/connection"
	"bfdb/domain/core/valueobjects"
	"bfdb/pkg/utils"
)

// GetNodeQuery loads one node of the viewer's org
type GetNodeQuery struct {
	Viewer valueobjects.CurrentViewer
	BfGid  valueobjects.BfGid `validate:"required"`
}

// Validate validates the GetNodeQuery
func (q GetNodeQuery) Validate() error {
	if err := q.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(q)
}

// QueryNodesQuery lists nodes matching a class and props filter
type QueryNodesQuery struct {
	Viewer    valueobjects.CurrentViewer
	ClassName string `validate:"omitempty,classname"`
	Props     valueobjects.Props
	BfGids    []valueobjects.BfGid
}

// Validate validates the QueryNodesQuery
func (q QueryNodesQuery) Validate() error {
	if err := q.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(q)
}

// NodeConnectionQuery pages through nodes matching a class and props filter
type NodeConnectionQuery struct {
	Viewer    valueobjects.CurrentViewer
	ClassName string `validate:"omitempty,classname"`
	Props     valueobjects.Props
	Args      connection.Args
}

// Validate validates the NodeConnectionQuery
func (q NodeConnectionQuery) Validate() error {
	if err := q.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(q)
}

// QueryAncestorsQuery finds nodes of ClassName that reach BfGid through
// edges. Depth zero means the default depth.
type QueryAncestorsQuery struct {
	Viewer    valueobjects.CurrentViewer
	BfGid     valueobjects.BfGid `validate:"required"`
	ClassName string             `validate:"required,classname"`
	Depth     int                `validate:"gte=0,lte=64"`
}

// Validate validates the QueryAncestorsQuery
func (q QueryAncestorsQuery) Validate() error {
	if err := q.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(q)
}

// QueryDescendantsQuery finds nodes of ClassName reachable from BfGid
type QueryDescendantsQuery struct {
	Viewer    valueobjects.CurrentViewer
	BfGid     valueobjects.BfGid `validate:"required"`
	ClassName string             `validate:"required,classname"`
	Depth     int                `validate:"gte=0,lte=64"`
}

// Validate validates the QueryDescendantsQuery
func (q QueryDescendantsQuery) Validate() error {
	if err := q.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(q)
}
