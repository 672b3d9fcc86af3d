package handlers

import (
	"context"

	"go.uber.org/zap"

	"bfdb/application/ports"
	"bfdb/application/queries"
	"bfdb/application/services"
	"bfdb/domain/core/entities"
)

// EdgeQueryHandler answers queries that follow edges one hop
type EdgeQueryHandler struct {
	edges  *services.EdgeService
	caches ports.NodeCacheFactory
	logger *zap.Logger
}

// NewEdgeQueryHandler creates a new edge query handler
func NewEdgeQueryHandler(edges *services.EdgeService, caches ports.NodeCacheFactory, logger *zap.Logger) *EdgeQueryHandler {
	return &EdgeQueryHandler{edges: edges, caches: caches, logger: logger}
}

// HandleSourceInstances lists the nodes pointing at the target
func (h *EdgeQueryHandler) HandleSourceInstances(ctx context.Context, q queries.QuerySourceInstancesQuery) ([]*entities.Node, error) {
	nodes, err := h.edges.QuerySourceInstances(ctx, q.Viewer, q.SourceClassName, q.TargetID, q.NodeProps, q.EdgeProps, h.caches.NewCache())
	if err != nil {
		return nil, err
	}
	h.logger.Debug("Queried source instances",
		zap.String("targetId", q.TargetID.String()),
		zap.Int("count", len(nodes)),
	)
	return nodes, nil
}

// HandleTargetInstances lists the nodes the source points at
func (h *EdgeQueryHandler) HandleTargetInstances(ctx context.Context, q queries.QueryTargetInstancesQuery) ([]*entities.Node, error) {
	nodes, err := h.edges.QueryTargetInstances(ctx, q.Viewer, q.TargetClassName, q.SourceID, q.NodeProps, q.EdgeProps, h.caches.NewCache())
	if err != nil {
		return nil, err
	}
	h.logger.Debug("Queried target instances",
		zap.String("sourceId", q.SourceID.String()),
		zap.Int("count", len(nodes)),
	)
	return nodes, nil
}
