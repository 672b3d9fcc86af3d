package handlers

import (
	"context"

	"go.uber.org/zap"

	"bfdb/application/commands"
	"bfdb/application/ports"
	"bfdb/application/services"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	pkgerrors "bfdb/pkg/errors"
)

// CreateNodeHandler handles node creation commands
type CreateNodeHandler struct {
	backend ports.Backend
	nodes   *services.NodeService
	caches  ports.NodeCacheFactory
	logger  *zap.Logger
}

// NewCreateNodeHandler creates a new handler instance
func NewCreateNodeHandler(
	backend ports.Backend,
	nodes *services.NodeService,
	caches ports.NodeCacheFactory,
	logger *zap.Logger,
) *CreateNodeHandler {
	return &CreateNodeHandler{
		backend: backend,
		nodes:   nodes,
		caches:  caches,
		logger:  logger,
	}
}

// Handle executes the create node command
func (h *CreateNodeHandler) Handle(ctx context.Context, cmd commands.CreateNodeCommand) error {
	if err := ensureUnused(ctx, h.backend, cmd.BfGid); err != nil {
		return err
	}

	node, err := h.nodes.CreateUnattached(ctx, cmd.Viewer, cmd.ClassName, cmd.Props,
		&entities.Metadata{BfGid: cmd.BfGid}, h.caches.NewCache())
	if err != nil {
		return err
	}

	h.logger.Info("Node created",
		zap.String("bfGid", node.ID().String()),
		zap.String("className", node.ClassName()),
		zap.String("viewer", cmd.Viewer.String()),
	)
	return nil
}

// UpdateNodeHandler handles node update commands
type UpdateNodeHandler struct {
	nodes  *services.NodeService
	logger *zap.Logger
}

// NewUpdateNodeHandler creates a new update node handler
func NewUpdateNodeHandler(nodes *services.NodeService, logger *zap.Logger) *UpdateNodeHandler {
	return &UpdateNodeHandler{nodes: nodes, logger: logger}
}

// Handle executes the update node command
func (h *UpdateNodeHandler) Handle(ctx context.Context, cmd commands.UpdateNodeCommand) error {
	node, err := h.nodes.FindX(ctx, cmd.Viewer, cmd.BfGid, nil)
	if err != nil {
		return err
	}

	if cmd.Replace {
		node.ReplaceProps(cmd.Props)
	} else {
		node.SetProps(cmd.Props)
	}

	if !node.IsDirty() {
		h.logger.Debug("Update left node unchanged", zap.String("bfGid", node.ID().String()))
		return nil
	}

	changed := node.ChangedKeys()
	if err := h.nodes.Save(ctx, node); err != nil {
		return err
	}

	h.logger.Info("Node updated",
		zap.String("bfGid", node.ID().String()),
		zap.Strings("changedKeys", changed),
	)
	return nil
}

// DeleteNodeHandler handles node deletion commands
type DeleteNodeHandler struct {
	nodes  *services.NodeService
	edges  *services.EdgeService
	logger *zap.Logger
}

// NewDeleteNodeHandler creates a new delete node handler
func NewDeleteNodeHandler(nodes *services.NodeService, edges *services.EdgeService, logger *zap.Logger) *DeleteNodeHandler {
	return &DeleteNodeHandler{nodes: nodes, edges: edges, logger: logger}
}

// Handle executes the delete node command
func (h *DeleteNodeHandler) Handle(ctx context.Context, cmd commands.DeleteNodeCommand) error {
	node, err := h.nodes.FindX(ctx, cmd.Viewer, cmd.BfGid, nil)
	if err != nil {
		return err
	}
	if node.IsEdge() {
		return pkgerrors.NewValidationError("item is an edge; delete it through the edge API").
			WithCode(pkgerrors.CodeInvalidRequest)
	}

	if cmd.Cascade {
		if err := h.edges.DeleteNodeWithNetwork(ctx, node); err != nil {
			return err
		}
		h.logger.Info("Node deleted with network", zap.String("bfGid", node.ID().String()))
		return nil
	}

	removed, err := h.edges.DeleteEdgesTouchingNode(ctx, cmd.Viewer, node.ID())
	if err != nil {
		return err
	}
	if err := h.nodes.Delete(ctx, node); err != nil {
		return err
	}

	h.logger.Info("Node deleted",
		zap.String("bfGid", node.ID().String()),
		zap.Int("edgesDeleted", removed),
	)
	return nil
}

// ensureUnused fails with CONFLICT when gid is already stored in any org.
// Racing creates are settled by Backend.InsertItem when the node is saved.
func ensureUnused(ctx context.Context, backend ports.Backend, gid valueobjects.BfGid) error {
	_, err := backend.GetItemByBfGid(ctx, gid)
	switch {
	case err == nil:
		return pkgerrors.NewConflictError("bfGid already in use: " + gid.String())
	case pkgerrors.IsNotFound(err):
		return nil
	default:
		return err
	}
}
