package commands

import (
	"bfdb/domain/core/valueobjects"
	"bfdb/pkg/utils"
)

// CreateEdgeCommand links two existing nodes of the viewer's org
type CreateEdgeCommand struct {
	EdgeID    valueobjects.BfGid         `json:"edgeId" validate:"required"`
	Viewer    valueobjects.CurrentViewer `json:"-"`
	SourceID  valueobjects.BfGid         `json:"sourceId" validate:"required"`
	TargetID  valueobjects.BfGid         `json:"targetId" validate:"required"`
	Role      string                     `json:"role" validate:"max=128"`
	ClassName string                     `json:"className" validate:"omitempty,classname"`
	Props     valueobjects.Props         `json:"props"`
}

// Validate validates the command
func (cmd CreateEdgeCommand) Validate() error {
	if err := cmd.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(cmd)
}

// DeleteEdgeCommand removes an edge. Cascade also removes the target when
// no other edge points at it, recursively.
type DeleteEdgeCommand struct {
	EdgeID  valueobjects.BfGid         `json:"edgeId" validate:"required"`
	Viewer  valueobjects.CurrentViewer `json:"-"`
	Cascade bool                       `json:"cascade"`
}

// Validate validates the command
func (cmd DeleteEdgeCommand) Validate() error {
	if err := cmd.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(cmd)
}
