package commands

import (
	"bfdb/domain/core/valueobjects"
	"bfdb/pkg/utils"
)

// CreateNodeCommand creates an unattached node. BfGid is assigned by the
// caller so the new node can be read back by id.
type CreateNodeCommand struct {
	BfGid     valueobjects.BfGid         `json:"bfGid" validate:"required"`
	Viewer    valueobjects.CurrentViewer `json:"-"`
	ClassName string                     `json:"className" validate:"required,classname"`
	Props     valueobjects.Props         `json:"props"`
}

// Validate validates the command
func (cmd CreateNodeCommand) Validate() error {
	if err := cmd.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(cmd)
}

// UpdateNodeCommand merges Props into a node, or replaces them when
// Replace is set.
type UpdateNodeCommand struct {
	BfGid   valueobjects.BfGid         `json:"bfGid" validate:"required"`
	Viewer  valueobjects.CurrentViewer `json:"-"`
	Props   valueobjects.Props         `json:"props" validate:"required"`
	Replace bool                       `json:"replace"`
}

// Validate validates the command
func (cmd UpdateNodeCommand) Validate() error {
	if err := cmd.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(cmd)
}

// DeleteNodeCommand removes a node and every edge touching it. With
// Cascade set, targets left without incoming edges are removed too.
type DeleteNodeCommand struct {
	BfGid   valueobjects.BfGid         `json:"bfGid" validate:"required"`
	Viewer  valueobjects.CurrentViewer `json:"-"`
	Cascade bool                       `json:"cascade"`
}

// Validate validates the command
func (cmd DeleteNodeCommand) Validate() error {
	if err := cmd.Viewer.Validate(); err != nil {
		return err
	}
	return utils.ValidateStruct(cmd)
}
