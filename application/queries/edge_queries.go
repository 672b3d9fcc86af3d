package queries

import (
	"bfdb/domain/core/valueobjects"
	"bfdb/pkg/utils"
)

// QuerySourceInstancesQuery lists the nodes with an edge pointing at
// TargetID. An empty SourceClassName accepts any class.
type QuerySourceInstancesQuery struct {
	Viewer          valueobjects.CurrentViewer
	TargetID        valueobjects.BfGid `validate:"required"`
	SourceClassName string             `validate:"omitempty,classname"`
	NodeProps       valueobjects.Props
	EdgeProps       valueobjects.Props
}

// Validate validates the QuerySourceInstancesQuery
func (q QuerySourceInstancesQuery) Validate() error {
	if err := q.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(q)
}

// QueryTargetInstancesQuery lists the nodes SourceID has an edge to
type QueryTargetInstancesQuery struct {
	Viewer          valueobjects.CurrentViewer
	SourceID        valueobjects.BfGid `validate:"required"`
	TargetClassName string             `validate:"omitempty,classname"`
	NodeProps       valueobjects.Props
	EdgeProps       valueobjects.Props
}

// Validate validates the QueryTargetInstancesQuery
func (q QueryTargetInstancesQuery) Validate() error {
	if err := q.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(q)
}
