package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"bfdb/application/connection"
	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	"bfdb/domain/events"
	pkgerrors "bfdb/pkg/errors"
)

// Hooks are lifecycle callbacks registered per class name. A non-nil
// error from BeforeCreate aborts creation before anything is stored.
type Hooks struct {
	BeforeCreate func(ctx context.Context, node *entities.Node) error
	AfterCreate  func(ctx context.Context, node *entities.Node) error
}

// PropsValidator checks a props bag before it is stored
type PropsValidator interface {
	Validate(props valueobjects.Props) error
}

// NodeService implements node lifecycle and lookup on top of a Backend
type NodeService struct {
	backend   ports.Backend
	publisher ports.EventPublisher
	validator PropsValidator
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.RWMutex
	hooks map[string]Hooks
}

// NewNodeService creates a new node service. publisher may be nil.
func NewNodeService(backend ports.Backend, publisher ports.EventPublisher, logger *zap.Logger) *NodeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeService{
		backend:   backend,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		hooks:     make(map[string]Hooks),
	}
}

// SetPropsValidator installs the check run by Save; nil disables it
func (s *NodeService) SetPropsValidator(v PropsValidator) {
	s.validator = v
}

// RegisterHooks installs lifecycle callbacks for className
func (s *NodeService) RegisterHooks(className string, hooks Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[className] = hooks
}

func (s *NodeService) hooksFor(className string) Hooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks[className]
}

// CreateUnattached creates and saves a node that no edge points to yet
func (s *NodeService) CreateUnattached(
	ctx context.Context,
	cv valueobjects.CurrentViewer,
	className string,
	props valueobjects.Props,
	override *entities.Metadata,
	cache ports.NodeCache,
) (*entities.Node, error) {
	node, err := entities.NewNode(cv, className, props, override)
	if err != nil {
		return nil, err
	}

	hooks := s.hooksFor(className)
	if hooks.BeforeCreate != nil {
		if err := hooks.BeforeCreate(ctx, node); err != nil {
			return nil, err
		}
	}

	if err := s.Save(ctx, node); err != nil {
		return nil, err
	}

	if hooks.AfterCreate != nil {
		if err := hooks.AfterCreate(ctx, node); err != nil {
			return nil, err
		}
	}

	if cache != nil {
		cache.Set(node.ID(), node)
	}

	s.logger.Debug("Created node",
		zap.String("node", node.String()),
		zap.Int64("sortValue", node.Metadata().SortValue),
	)
	return node, nil
}

// Save persists the node and publishes the events it recorded. The first
// save of a node fails with CONFLICT when its gid is already stored.
func (s *NodeService) Save(ctx context.Context, node *entities.Node) error {
	if s.validator != nil {
		if err := s.validator.Validate(node.Props()); err != nil {
			return err
		}
	}
	isNew := node.IsNew()
	node.PrepareSave(s.now())

	write := s.backend.PutItem
	if isNew {
		write = s.backend.InsertItem
	}
	if err := write(ctx, node.ToItem()); err != nil {
		return pkgerrors.Wrapf(err, "save %s", node)
	}
	node.MarkSaved()

	s.publish(ctx, node)
	return nil
}

// Find returns the node or nil when it does not exist in the viewer's org
func (s *NodeService) Find(ctx context.Context, cv valueobjects.CurrentViewer, gid valueobjects.BfGid, cache ports.NodeCache) (*entities.Node, error) {
	node, err := s.FindX(ctx, cv, gid, cache)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return node, nil
}

// FindX is Find that fails with a NOT_FOUND error for missing nodes
func (s *NodeService) FindX(ctx context.Context, cv valueobjects.CurrentViewer, gid valueobjects.BfGid, cache ports.NodeCache) (*entities.Node, error) {
	if cache != nil {
		if cached, ok := cache.Get(gid); ok && cached.OrgID() == cv.OrgBfOid {
			return cached, nil
		}
	}

	item, err := s.backend.GetItem(ctx, cv.OrgBfOid, gid)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewNodeNotFoundError(gid.String())
		}
		return nil, err
	}

	node := entities.NodeFromItem(cv, *item)
	if cache != nil {
		cache.Set(gid, node)
	}
	return node, nil
}

// Query returns the viewer's nodes matching metadata and props, in sort order
func (s *NodeService) Query(
	ctx context.Context,
	cv valueobjects.CurrentViewer,
	metadata ports.MetadataFilter,
	props valueobjects.Props,
	gids []valueobjects.BfGid,
	cache ports.NodeCache,
) ([]*entities.Node, error) {
	metadata.BfOid = ports.Ptr(cv.OrgBfOid)

	items, err := s.backend.QueryItems(ctx, ports.ItemQuery{Metadata: metadata, Props: props, BfGids: gids})
	if err != nil {
		return nil, err
	}
	return s.toNodes(cv, items, cache), nil
}

// Load replaces the node's props and metadata with the stored version
func (s *NodeService) Load(ctx context.Context, node *entities.Node) error {
	item, err := s.backend.GetItem(ctx, node.OrgID(), node.ID())
	if err != nil {
		return err
	}
	node.Reload(*item)
	return nil
}

// Touch bumps LastUpdated and persists the node
func (s *NodeService) Touch(ctx context.Context, node *entities.Node) error {
	return s.Save(ctx, node)
}

// Delete removes the node. Edges pointing at it are left alone; see
// EdgeService.DeleteEdgesTouchingNode.
func (s *NodeService) Delete(ctx context.Context, node *entities.Node) error {
	if err := s.backend.DeleteItem(ctx, node.OrgID(), node.ID()); err != nil {
		return pkgerrors.Wrapf(err, "delete %s", node)
	}
	node.MarkDeleted(s.now())
	s.publish(ctx, node)

	s.logger.Debug("Deleted node", zap.String("node", node.String()))
	return nil
}

// CreateTargetNode creates a node and an edge from source to it
func (s *NodeService) CreateTargetNode(
	ctx context.Context,
	source *entities.Node,
	className string,
	props valueobjects.Props,
	role string,
	cache ports.NodeCache,
) (*entities.Node, error) {
	cv := source.Viewer()
	target, err := s.CreateUnattached(ctx, cv, className, props, nil, cache)
	if err != nil {
		return nil, err
	}

	edge, err := entities.NewEdgeBetween(cv, source.Metadata(), target.Metadata(), valueobjects.Props{entities.RoleKey: role}, nil)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, edge.Node); err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Set(edge.ID(), edge.Node)
	}
	return target, nil
}

// QueryAncestorsByClassName returns nodes of className that reach node
// through at most depth edges. A depth of zero uses the default.
func (s *NodeService) QueryAncestorsByClassName(ctx context.Context, node *entities.Node, className string, depth int, cache ports.NodeCache) ([]*entities.Node, error) {
	items, err := s.backend.QueryAncestorsByClassName(ctx, node.Viewer().OrgBfOid, node.ID(), className, depth)
	if err != nil {
		return nil, err
	}
	return s.toNodes(node.Viewer(), items, cache), nil
}

// QueryDescendantsByClassName returns nodes of className reachable from node
func (s *NodeService) QueryDescendantsByClassName(ctx context.Context, node *entities.Node, className string, depth int, cache ports.NodeCache) ([]*entities.Node, error) {
	items, err := s.backend.QueryDescendantsByClassName(ctx, node.Viewer().OrgBfOid, node.ID(), className, depth)
	if err != nil {
		return nil, err
	}
	return s.toNodes(node.Viewer(), items, cache), nil
}

// QueryConnection pages through matching nodes at the backend. first and
// after page forwards, last and before page backwards; the page is always
// returned in ascending sort order. after and before may be combined to
// page within a window. A first or last of zero returns an empty page.
func (s *NodeService) QueryConnection(
	ctx context.Context,
	cv valueobjects.CurrentViewer,
	metadata ports.MetadataFilter,
	props valueobjects.Props,
	args connection.Args,
	gids []valueobjects.BfGid,
) (*connection.Connection[*entities.Node], error) {
	if args.First != nil && args.Last != nil {
		return nil, pkgerrors.NewValidationError("first and last cannot be combined").WithCode(pkgerrors.CodeUnsupportedOption)
	}
	if (args.First != nil && *args.First < 0) || (args.Last != nil && *args.Last < 0) {
		return nil, pkgerrors.NewValidationError("first and last must not be negative").WithCode(pkgerrors.CodeInvalidRequest)
	}
	after, err := cursorKey(args.After)
	if err != nil {
		return nil, err
	}
	before, err := cursorKey(args.Before)
	if err != nil {
		return nil, err
	}
	metadata.BfOid = ports.Ptr(cv.OrgBfOid)

	all, err := s.backend.QueryItems(ctx, ports.ItemQuery{Metadata: metadata, Props: props, BfGids: gids})
	if err != nil {
		return nil, err
	}
	count := len(all)

	q := ports.ItemQuery{Metadata: metadata, Props: props, BfGids: gids, Order: ports.SortAscending}
	backwards := args.Last != nil || (args.Before != nil && args.First == nil)
	var limit *int
	if backwards {
		q.Order = ports.SortDescending
		q.Cursor, q.Until = before, after
		limit = args.Last
	} else {
		q.Cursor, q.Until = after, before
		limit = args.First
	}
	if limit != nil {
		q.Limit = *limit + 1
	}

	items, err := s.backend.QueryItems(ctx, q)
	if err != nil {
		return nil, err
	}

	hasMore := limit != nil && len(items) > *limit
	if hasMore {
		items = items[:*limit]
	}
	// Both bounds came from existing cursors, so something lies past each.
	hasAhead := hasMore || q.Until != nil
	hasBehind := q.Cursor != nil

	if backwards {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}

	nodes := s.toNodes(cv, items, nil)
	if backwards {
		return connection.Build(nodes, hasBehind, hasAhead, count), nil
	}
	return connection.Build(nodes, hasAhead, hasBehind, count), nil
}

func cursorKey(cursor *string) (*ports.SortKey, error) {
	if cursor == nil {
		return nil, nil
	}
	v, gid, err := connection.FromCursor(*cursor)
	if err != nil {
		return nil, err
	}
	return &ports.SortKey{SortValue: v, BfGid: gid}, nil
}

func (s *NodeService) toNodes(cv valueobjects.CurrentViewer, items []entities.Item, cache ports.NodeCache) []*entities.Node {
	nodes := make([]*entities.Node, 0, len(items))
	for _, item := range items {
		node := entities.NodeFromItem(cv, item)
		if cache != nil {
			cache.Set(node.ID(), node)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func (s *NodeService) publish(ctx context.Context, node *entities.Node) {
	pending := node.GetUncommittedEvents()
	if len(pending) == 0 {
		return
	}
	node.MarkEventsAsCommitted()
	if s.publisher == nil {
		return
	}

	if err := s.publisher.PublishBatch(ctx, pending); err != nil {
		s.logger.Warn("Failed to publish events",
			zap.String("node", node.String()),
			zap.Strings("eventTypes", eventTypes(pending)),
			zap.Error(err),
		)
	}
}

func eventTypes(evts []events.DomainEvent) []string {
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.GetEventType()
	}
	return out
}
