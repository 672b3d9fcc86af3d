package handlers

import (
	"context"

	"go.uber.org/zap"

	"bfdb/application/commands"
	"bfdb/application/ports"
	"bfdb/application/services"
	"bfdb/domain/core/entities"
)

// CreateEdgeHandler handles edge creation commands
type CreateEdgeHandler struct {
	backend ports.Backend
	edges   *services.EdgeService
	caches  ports.NodeCacheFactory
	logger  *zap.Logger
}

// NewCreateEdgeHandler creates a new create edge handler
func NewCreateEdgeHandler(
	backend ports.Backend,
	edges *services.EdgeService,
	caches ports.NodeCacheFactory,
	logger *zap.Logger,
) *CreateEdgeHandler {
	return &CreateEdgeHandler{
		backend: backend,
		edges:   edges,
		caches:  caches,
		logger:  logger,
	}
}

// Handle executes the create edge command
func (h *CreateEdgeHandler) Handle(ctx context.Context, cmd commands.CreateEdgeCommand) error {
	if err := ensureUnused(ctx, h.backend, cmd.EdgeID); err != nil {
		return err
	}

	opts := []services.EdgeOption{services.WithEdgeID(cmd.EdgeID)}
	if cmd.ClassName != "" {
		opts = append(opts, services.WithEdgeClassName(cmd.ClassName))
	}

	props := cmd.Props.Clone()
	props[entities.RoleKey] = cmd.Role

	edge, err := h.edges.CreateBetweenIDs(ctx, cmd.Viewer, cmd.SourceID, cmd.TargetID, props, h.caches.NewCache(), opts...)
	if err != nil {
		return err
	}

	h.logger.Info("Edge created",
		zap.String("bfGid", edge.ID().String()),
		zap.String("sourceId", edge.SourceID().String()),
		zap.String("targetId", edge.TargetID().String()),
		zap.String("role", edge.Role()),
	)
	return nil
}

// DeleteEdgeHandler handles edge deletion commands
type DeleteEdgeHandler struct {
	edges  *services.EdgeService
	logger *zap.Logger
}

// NewDeleteEdgeHandler creates a new delete edge handler
func NewDeleteEdgeHandler(edges *services.EdgeService, logger *zap.Logger) *DeleteEdgeHandler {
	return &DeleteEdgeHandler{edges: edges, logger: logger}
}

// Handle executes the delete edge command
func (h *DeleteEdgeHandler) Handle(ctx context.Context, cmd commands.DeleteEdgeCommand) error {
	edge, err := h.edges.FindEdge(ctx, cmd.Viewer, cmd.EdgeID, nil)
	if err != nil {
		return err
	}

	if cmd.Cascade {
		err = h.edges.DeleteAndCheckForNetworkDelete(ctx, cmd.Viewer, edge)
	} else {
		err = h.edges.DeleteEdge(ctx, edge)
	}
	if err != nil {
		return err
	}

	h.logger.Info("Edge deleted",
		zap.String("bfGid", edge.ID().String()),
		zap.Bool("cascade", cmd.Cascade),
	)
	return nil
}
