package handlers

import (
	"context"

	"go.uber.org/zap"

	"bfdb/application/connection"
	"bfdb/application/ports"
	"bfdb/application/queries"
	"bfdb/application/services"
	"bfdb/domain/core/entities"
)

// NodeQueryHandler answers the node read queries
type NodeQueryHandler struct {
	nodes        *services.NodeService
	caches       ports.NodeCacheFactory
	logger       *zap.Logger
	defaultDepth int
}

// NewNodeQueryHandler creates a new node query handler
func NewNodeQueryHandler(nodes *services.NodeService, caches ports.NodeCacheFactory, logger *zap.Logger) *NodeQueryHandler {
	return &NodeQueryHandler{nodes: nodes, caches: caches, logger: logger, defaultDepth: ports.DefaultTraversalDepth}
}

// WithDefaultDepth sets the depth used when a traversal query leaves it at zero
func (h *NodeQueryHandler) WithDefaultDepth(depth int) *NodeQueryHandler {
	if depth > 0 {
		h.defaultDepth = depth
	}
	return h
}

func (h *NodeQueryHandler) depth(requested int) int {
	if requested > 0 {
		return requested
	}
	return h.defaultDepth
}

// HandleGetNode loads a single node
func (h *NodeQueryHandler) HandleGetNode(ctx context.Context, q queries.GetNodeQuery) (*entities.Node, error) {
	return h.nodes.FindX(ctx, q.Viewer, q.BfGid, nil)
}

// HandleQueryNodes lists matching nodes in sort order
func (h *NodeQueryHandler) HandleQueryNodes(ctx context.Context, q queries.QueryNodesQuery) ([]*entities.Node, error) {
	nodes, err := h.nodes.Query(ctx, q.Viewer, classFilter(q.ClassName), q.Props, q.BfGids, nil)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("Queried nodes",
		zap.String("className", q.ClassName),
		zap.Int("count", len(nodes)),
	)
	return nodes, nil
}

// HandleNodeConnection returns one page of matching nodes
func (h *NodeQueryHandler) HandleNodeConnection(ctx context.Context, q queries.NodeConnectionQuery) (*connection.Connection[*entities.Node], error) {
	return h.nodes.QueryConnection(ctx, q.Viewer, classFilter(q.ClassName), q.Props, q.Args, nil)
}

// HandleQueryAncestors walks edges backwards from the start node
func (h *NodeQueryHandler) HandleQueryAncestors(ctx context.Context, q queries.QueryAncestorsQuery) ([]*entities.Node, error) {
	cache := h.caches.NewCache()
	start, err := h.nodes.FindX(ctx, q.Viewer, q.BfGid, cache)
	if err != nil {
		return nil, err
	}
	return h.nodes.QueryAncestorsByClassName(ctx, start, q.ClassName, h.depth(q.Depth), cache)
}

// HandleQueryDescendants walks edges forwards from the start node
func (h *NodeQueryHandler) HandleQueryDescendants(ctx context.Context, q queries.QueryDescendantsQuery) ([]*entities.Node, error) {
	cache := h.caches.NewCache()
	start, err := h.nodes.FindX(ctx, q.Viewer, q.BfGid, cache)
	if err != nil {
		return nil, err
	}
	return h.nodes.QueryDescendantsByClassName(ctx, start, q.ClassName, h.depth(q.Depth), cache)
}

func classFilter(className string) ports.MetadataFilter {
	var f ports.MetadataFilter
	if className != "" {
		f.ClassName = ports.Ptr(className)
	}
	return f
}
