package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	pkgerrors "bfdb/pkg/errors"
)

// DefaultResolveConcurrency bounds parallel node lookups per query
const DefaultResolveConcurrency = 8

// EdgeService creates, queries and deletes edges between nodes
type EdgeService struct {
	backend     ports.Backend
	nodes       *NodeService
	logger      *zap.Logger
	concurrency int
}

// EdgeOption customises an edge at creation
type EdgeOption func(*entities.Metadata)

// WithEdgeClassName creates the edge with a class other than BfEdge
func WithEdgeClassName(className string) EdgeOption {
	return func(md *entities.Metadata) {
		md.ClassName = className
	}
}

// WithEdgeID creates the edge under a caller-assigned gid
func WithEdgeID(gid valueobjects.BfGid) EdgeOption {
	return func(md *entities.Metadata) {
		md.BfGid = gid
	}
}

// NewEdgeService creates a new edge service
func NewEdgeService(backend ports.Backend, nodes *NodeService, logger *zap.Logger) *EdgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeService{
		backend:     backend,
		nodes:       nodes,
		logger:      logger,
		concurrency: DefaultResolveConcurrency,
	}
}

// SetConcurrency changes how many node lookups run in parallel
func (s *EdgeService) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// CreateBetweenNodes saves a new edge from source to target
func (s *EdgeService) CreateBetweenNodes(
	ctx context.Context,
	cv valueobjects.CurrentViewer,
	source, target *entities.Node,
	props valueobjects.Props,
	opts ...EdgeOption,
) (*entities.Edge, error) {
	var override *entities.Metadata
	if len(opts) > 0 {
		override = &entities.Metadata{}
		for _, opt := range opts {
			opt(override)
		}
	}

	edge, err := entities.NewEdgeBetween(cv, source.Metadata(), target.Metadata(), props, override)
	if err != nil {
		return nil, err
	}
	if err := s.nodes.Save(ctx, edge.Node); err != nil {
		return nil, err
	}

	s.logger.Debug("Created edge",
		zap.String("edge", edge.String()),
		zap.String("source", source.String()),
		zap.String("target", target.String()),
		zap.String("role", edge.Role()),
	)
	return edge, nil
}

// CreateBetweenIDs resolves both endpoints in the viewer's org before
// creating the edge, so dangling edges cannot be created by id.
func (s *EdgeService) CreateBetweenIDs(
	ctx context.Context,
	cv valueobjects.CurrentViewer,
	sid, tid valueobjects.BfGid,
	props valueobjects.Props,
	cache ports.NodeCache,
	opts ...EdgeOption,
) (*entities.Edge, error) {
	var source, target *entities.Node
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		source, err = s.nodes.FindX(gctx, cv, sid, cache)
		return err
	})
	g.Go(func() error {
		var err error
		target, err = s.nodes.FindX(gctx, cv, tid, cache)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.CreateBetweenNodes(ctx, cv, source, target, props, opts...)
}

// QuerySourceInstances returns the nodes with an edge pointing at
// targetID. sourceClassName may be empty to accept any class. Results
// follow edge order, each source once.
func (s *EdgeService) QuerySourceInstances(
	ctx context.Context,
	cv valueobjects.CurrentViewer,
	sourceClassName string,
	targetID valueobjects.BfGid,
	nodeProps, edgeProps valueobjects.Props,
	cache ports.NodeCache,
) ([]*entities.Node, error) {
	filter := ports.MetadataFilter{BfOid: ports.Ptr(cv.OrgBfOid), BfTid: ports.Ptr(targetID)}
	if sourceClassName != "" {
		filter.BfSClassName = ports.Ptr(sourceClassName)
	}

	edges, err := s.backend.QueryItems(ctx, ports.ItemQuery{Metadata: filter, Props: edgeProps})
	if err != nil {
		return nil, err
	}

	ids := uniqueIDs(edges, func(md entities.Metadata) valueobjects.BfGid { return md.BfSid })
	s.logger.Debug("querySourceInstances",
		zap.String("targetID", targetID.String()),
		zap.String("sourceClassName", sourceClassName),
		zap.Int("edges", len(edges)),
		zap.Int("sources", len(ids)),
	)
	return s.resolve(ctx, cv, ids, sourceClassName, nodeProps, cache)
}

// QueryTargetInstances returns the nodes that sourceID has edges to
func (s *EdgeService) QueryTargetInstances(
	ctx context.Context,
	cv valueobjects.CurrentViewer,
	targetClassName string,
	sourceID valueobjects.BfGid,
	nodeProps, edgeProps valueobjects.Props,
	cache ports.NodeCache,
) ([]*entities.Node, error) {
	filter := ports.MetadataFilter{BfOid: ports.Ptr(cv.OrgBfOid), BfSid: ports.Ptr(sourceID)}
	if targetClassName != "" {
		filter.BfTClassName = ports.Ptr(targetClassName)
	}

	edges, err := s.backend.QueryItems(ctx, ports.ItemQuery{Metadata: filter, Props: edgeProps})
	if err != nil {
		return nil, err
	}

	ids := uniqueIDs(edges, func(md entities.Metadata) valueobjects.BfGid { return md.BfTid })
	s.logger.Debug("queryTargetInstances",
		zap.String("sourceID", sourceID.String()),
		zap.String("targetClassName", targetClassName),
		zap.Int("edges", len(edges)),
		zap.Int("targets", len(ids)),
	)
	return s.resolve(ctx, cv, ids, targetClassName, nodeProps, cache)
}

// QuerySourceEdgesForNode returns the edges whose source is node
func (s *EdgeService) QuerySourceEdgesForNode(ctx context.Context, node *entities.Node) ([]*entities.Edge, error) {
	return s.queryEdges(ctx, node.Viewer(), ports.MetadataFilter{
		BfOid: ports.Ptr(node.OrgID()),
		BfSid: ports.Ptr(node.ID()),
	}, nil)
}

// QueryTargetEdgesForNode returns the edges whose target is node and
// caches each edge under its own gid
func (s *EdgeService) QueryTargetEdgesForNode(ctx context.Context, node *entities.Node, cache ports.NodeCache) ([]*entities.Edge, error) {
	return s.queryEdges(ctx, node.Viewer(), ports.MetadataFilter{
		BfOid: ports.Ptr(node.OrgID()),
		BfTid: ports.Ptr(node.ID()),
	}, cache)
}

func (s *EdgeService) queryEdges(ctx context.Context, cv valueobjects.CurrentViewer, filter ports.MetadataFilter, cache ports.NodeCache) ([]*entities.Edge, error) {
	items, err := s.backend.QueryItems(ctx, ports.ItemQuery{Metadata: filter})
	if err != nil {
		return nil, err
	}

	edges := make([]*entities.Edge, 0, len(items))
	for _, item := range items {
		node := entities.NodeFromItem(cv, item)
		edge, err := entities.EdgeFromNode(node)
		if err != nil {
			continue
		}
		if cache != nil {
			cache.Set(edge.ID(), edge.Node)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// FindEdge loads an edge by id
func (s *EdgeService) FindEdge(ctx context.Context, cv valueobjects.CurrentViewer, gid valueobjects.BfGid, cache ports.NodeCache) (*entities.Edge, error) {
	node, err := s.nodes.FindX(ctx, cv, gid, cache)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewEdgeNotFoundError(gid.String())
		}
		return nil, err
	}
	edge, err := entities.EdgeFromNode(node)
	if err != nil {
		return nil, pkgerrors.NewEdgeNotFoundError(gid.String())
	}
	return edge, nil
}

// SaveEdge persists prop changes on an edge
func (s *EdgeService) SaveEdge(ctx context.Context, edge *entities.Edge) error {
	return s.nodes.Save(ctx, edge.Node)
}

// DeleteEdge removes an edge without touching its endpoints
func (s *EdgeService) DeleteEdge(ctx context.Context, edge *entities.Edge) error {
	return s.nodes.Delete(ctx, edge.Node)
}

// DeleteEdgesTouchingNode removes every edge whose source or target is gid
// and returns how many were removed
func (s *EdgeService) DeleteEdgesTouchingNode(ctx context.Context, cv valueobjects.CurrentViewer, gid valueobjects.BfGid) (int, error) {
	outgoing, err := s.queryEdges(ctx, cv, ports.MetadataFilter{BfOid: ports.Ptr(cv.OrgBfOid), BfSid: ports.Ptr(gid)}, nil)
	if err != nil {
		return 0, err
	}
	incoming, err := s.queryEdges(ctx, cv, ports.MetadataFilter{BfOid: ports.Ptr(cv.OrgBfOid), BfTid: ports.Ptr(gid)}, nil)
	if err != nil {
		return 0, err
	}

	deleted := 0
	seen := make(map[valueobjects.BfGid]struct{}, len(outgoing)+len(incoming))
	for _, edge := range append(outgoing, incoming...) {
		if _, dup := seen[edge.ID()]; dup {
			continue
		}
		seen[edge.ID()] = struct{}{}
		if err := s.DeleteEdge(ctx, edge); err != nil {
			return deleted, err
		}
		deleted++
	}

	s.logger.Debug("Deleted edges touching node", zap.String("bfGid", gid.String()), zap.Int("edges", deleted))
	return deleted, nil
}

// DeleteAndCheckForNetworkDelete deletes edge and then its target if no
// other edge points at the target any more. The check repeats through the
// target's outgoing edges, so an orphaned subtree goes with it. Each node
// is considered once, which ends the walk on cycles.
func (s *EdgeService) DeleteAndCheckForNetworkDelete(ctx context.Context, cv valueobjects.CurrentViewer, edge *entities.Edge) error {
	return s.networkDelete(ctx, cv, edge, newNetworkWalk())
}

// DeleteNodeWithNetwork deletes node, the edges pointing at it, and
// cascades through its outgoing edges the same way as
// DeleteAndCheckForNetworkDelete.
func (s *EdgeService) DeleteNodeWithNetwork(ctx context.Context, node *entities.Node) error {
	cv := node.Viewer()
	walk := newNetworkWalk()
	walk.visited[node.ID()] = struct{}{}

	incoming, err := s.QueryTargetEdgesForNode(ctx, node, nil)
	if err != nil {
		return err
	}
	for _, edge := range incoming {
		if err := s.DeleteEdge(ctx, edge); err != nil {
			return err
		}
		walk.deleted[edge.ID()] = struct{}{}
	}

	if err := s.cascadeOutgoing(ctx, cv, node, walk); err != nil {
		return err
	}
	return s.nodes.Delete(ctx, node)
}

// networkWalk is the state of one network delete. Index reads may still
// return edges listed in deleted.
type networkWalk struct {
	visited map[valueobjects.BfGid]struct{}
	deleted map[valueobjects.BfGid]struct{}
}

func newNetworkWalk() *networkWalk {
	return &networkWalk{
		visited: make(map[valueobjects.BfGid]struct{}),
		deleted: make(map[valueobjects.BfGid]struct{}),
	}
}

func (w *networkWalk) isDeleted(gid valueobjects.BfGid) bool {
	_, ok := w.deleted[gid]
	return ok
}

func (s *EdgeService) networkDelete(ctx context.Context, cv valueobjects.CurrentViewer, edge *entities.Edge, walk *networkWalk) error {
	if walk.isDeleted(edge.ID()) {
		return nil
	}
	if err := s.DeleteEdge(ctx, edge); err != nil {
		return err
	}
	walk.deleted[edge.ID()] = struct{}{}

	targetID := edge.TargetID()
	if _, done := walk.visited[targetID]; done {
		return nil
	}

	referenced, err := s.hasLiveIncoming(ctx, cv, targetID, walk)
	if err != nil || referenced {
		return err
	}
	walk.visited[targetID] = struct{}{}

	target, err := s.nodes.Find(ctx, cv, targetID, nil)
	if err != nil || target == nil {
		return err
	}

	if err := s.cascadeOutgoing(ctx, cv, target, walk); err != nil {
		return err
	}

	s.logger.Debug("Network delete removing orphaned node", zap.String("node", target.String()))
	return s.nodes.Delete(ctx, target)
}

// hasLiveIncoming reports whether an edge not removed by walk still points
// at gid
func (s *EdgeService) hasLiveIncoming(ctx context.Context, cv valueobjects.CurrentViewer, gid valueobjects.BfGid, walk *networkWalk) (bool, error) {
	incoming, err := s.backend.QueryItems(ctx, ports.ItemQuery{
		Metadata: ports.MetadataFilter{BfOid: ports.Ptr(cv.OrgBfOid), BfTid: ports.Ptr(gid)},
	})
	if err != nil {
		return false, err
	}
	for _, item := range incoming {
		if !walk.isDeleted(item.Metadata.BfGid) {
			return true, nil
		}
	}
	return false, nil
}

func (s *EdgeService) cascadeOutgoing(ctx context.Context, cv valueobjects.CurrentViewer, node *entities.Node, walk *networkWalk) error {
	outgoing, err := s.QuerySourceEdgesForNode(ctx, node)
	if err != nil {
		return err
	}
	for _, out := range outgoing {
		if err := s.networkDelete(ctx, cv, out, walk); err != nil {
			return err
		}
	}
	return nil
}

// resolve loads ids concurrently, keeping their order. Missing nodes,
// nodes of another class and nodes failing nodeProps are dropped.
func (s *EdgeService) resolve(
	ctx context.Context,
	cv valueobjects.CurrentViewer,
	ids []valueobjects.BfGid,
	className string,
	nodeProps valueobjects.Props,
	cache ports.NodeCache,
) ([]*entities.Node, error) {
	found := make([]*entities.Node, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if cache != nil {
				if cached, ok := cache.Get(id); ok && cached.OrgID() == cv.OrgBfOid &&
					(className == "" || cached.ClassName() == className) {
					found[i] = cached
					return nil
				}
			}

			item, err := s.backend.GetItem(gctx, cv.OrgBfOid, id)
			if err != nil {
				if pkgerrors.IsNotFound(err) {
					return nil
				}
				return err
			}
			node := entities.NodeFromItem(cv, *item)
			if cache != nil {
				cache.Set(id, node)
			}
			found[i] = node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*entities.Node, 0, len(found))
	for _, node := range found {
		if node == nil {
			continue
		}
		if className != "" && node.ClassName() != className {
			continue
		}
		if !node.Props().Matches(nodeProps) {
			continue
		}
		out = append(out, node)
	}
	return out, nil
}

func uniqueIDs(edges []entities.Item, pick func(entities.Metadata) valueobjects.BfGid) []valueobjects.BfGid {
	seen := make(map[valueobjects.BfGid]struct{}, len(edges))
	ids := make([]valueobjects.BfGid, 0, len(edges))
	for _, edge := range edges {
		id := pick(edge.Metadata)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
