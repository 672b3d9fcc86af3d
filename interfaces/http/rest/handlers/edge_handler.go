package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bfdb/application/commands"
	"bfdb/application/commands/bus"
	"bfdb/domain/core/valueobjects"
	"bfdb/pkg/common"
	pkgerrors "bfdb/pkg/errors"
	"bfdb/pkg/utils"
)

// EdgeHandler handles edge-related HTTP requests
type EdgeHandler struct {
	commandBus *bus.CommandBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(commandBus *bus.CommandBus, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{
		commandBus: commandBus,
		errors:     errors,
		logger:     logger,
	}
}

// CreateEdgeRequest represents the request body for creating an edge
type CreateEdgeRequest struct {
	EdgeID    string             `json:"edgeId,omitempty" validate:"omitempty,max=128"`
	SourceID  string             `json:"sourceId" validate:"required"`
	TargetID  string             `json:"targetId" validate:"required"`
	Role      string             `json:"role,omitempty" validate:"max=128"`
	ClassName string             `json:"className,omitempty" validate:"omitempty,classname"`
	Props     valueobjects.Props `json:"props,omitempty"`
}

// EdgeResponse identifies a created edge
type EdgeResponse struct {
	EdgeID    valueobjects.BfGid `json:"edgeId"`
	SourceID  valueobjects.BfGid `json:"sourceId"`
	TargetID  valueobjects.BfGid `json:"targetId"`
	Role      string             `json:"role,omitempty"`
	ClassName string             `json:"className"`
}

// CreateEdge handles POST /edges
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req CreateEdgeRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	edgeID := valueobjects.BfGid(req.EdgeID)
	if edgeID.IsZero() {
		edgeID = valueobjects.NewBfGid()
	}
	className := req.ClassName
	if className == "" {
		className = valueobjects.DefaultEdgeClassName
	}

	cmd := commands.CreateEdgeCommand{
		EdgeID:    edgeID,
		Viewer:    viewer,
		SourceID:  valueobjects.BfGid(req.SourceID),
		TargetID:  valueobjects.BfGid(req.TargetID),
		Role:      req.Role,
		ClassName: className,
		Props:     req.Props,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Debug("Edge created via API",
		zap.String("edgeId", edgeID.String()),
		zap.String("viewer", viewer.String()),
	)
	common.RespondJSON(w, http.StatusCreated, EdgeResponse{
		EdgeID:    edgeID,
		SourceID:  cmd.SourceID,
		TargetID:  cmd.TargetID,
		Role:      cmd.Role,
		ClassName: className,
	})
}

// DeleteEdge handles DELETE /edges/{edgeID}. ?cascade=true also removes
// the target when nothing else points at it.
func (h *EdgeHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.DeleteEdgeCommand{
		EdgeID:  valueobjects.BfGid(chi.URLParam(r, "edgeID")),
		Viewer:  viewer,
		Cascade: common.BoolParam(r, "cascade"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
