package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bfdb/application/connection"
	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/validators"
	"bfdb/domain/core/valueobjects"
	"bfdb/domain/events"
	"bfdb/infrastructure/cache"
	"bfdb/infrastructure/persistence/memory"
	pkgerrors "bfdb/pkg/errors"
	"bfdb/tests/mocks"
)

var (
	viewer      = valueobjects.CurrentViewer{OrgBfOid: "org-1", PersonBfGid: "person-1"}
	otherViewer = valueobjects.CurrentViewer{OrgBfOid: "org-2", PersonBfGid: "person-2"}
)

type fixture struct {
	backend   *memory.Adapter
	publisher *mocks.RecordingPublisher
	nodes     *NodeService
	edges     *EdgeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := memory.NewAdapter(nil)
	require.NoError(t, backend.Initialize(context.Background()))
	publisher := &mocks.RecordingPublisher{}
	nodes := NewNodeService(backend, publisher, nil)
	return &fixture{
		backend:   backend,
		publisher: publisher,
		nodes:     nodes,
		edges:     NewEdgeService(backend, nodes, nil),
	}
}

func (f *fixture) create(t *testing.T, className string, props valueobjects.Props) *entities.Node {
	t.Helper()
	n, err := f.nodes.CreateUnattached(context.Background(), viewer, className, props, nil, nil)
	require.NoError(t, err)
	return n
}

func names(nodes []*entities.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Props().String("name")
	}
	return out
}

func TestNodeService_CreateUnattached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := cache.NewNodeCache()

	node, err := f.nodes.CreateUnattached(ctx, viewer, "BfPerson", valueobjects.Props{"name": "Ada"}, nil, c)
	require.NoError(t, err)

	assert.False(t, node.IsNew())
	assert.False(t, node.IsDirty())
	cached, ok := c.Get(node.ID())
	require.True(t, ok)
	assert.Same(t, node, cached)

	stored, err := f.backend.GetItem(ctx, viewer.OrgBfOid, node.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.Props.String("name"))
	assert.Equal(t, []string{events.TypeNodeCreated}, f.publisher.Types())
}

func TestNodeService_CreateUnattached_Hooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var calls []string
	f.nodes.RegisterHooks("BfPerson", Hooks{
		BeforeCreate: func(ctx context.Context, node *entities.Node) error {
			calls = append(calls, "before")
			assert.True(t, node.IsNew())
			node.SetProps(valueobjects.Props{"slug": "ada"})
			return nil
		},
		AfterCreate: func(ctx context.Context, node *entities.Node) error {
			calls = append(calls, "after")
			assert.False(t, node.IsNew())
			return nil
		},
	})

	node, err := f.nodes.CreateUnattached(ctx, viewer, "BfPerson", valueobjects.Props{"name": "Ada"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, calls)
	assert.Equal(t, "ada", node.Props().String("slug"))

	f.nodes.RegisterHooks("BfLocked", Hooks{
		BeforeCreate: func(ctx context.Context, node *entities.Node) error {
			return pkgerrors.NewForbiddenError("locked")
		},
	})
	_, err = f.nodes.CreateUnattached(ctx, viewer, "BfLocked", nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, f.backend.Len(), "aborted create must not store anything")
}

func TestNodeService_CreateUnattached_InvalidClass(t *testing.T) {
	f := newFixture(t)
	_, err := f.nodes.CreateUnattached(context.Background(), viewer, "", nil, nil, nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNodeService_FindAndFindX(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := f.create(t, "BfDoc", valueobjects.Props{"name": "doc"})

	found, err := f.nodes.Find(ctx, viewer, node.ID(), nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, node.Metadata(), found.Metadata())

	missing, err := f.nodes.Find(ctx, viewer, "nope", nil)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = f.nodes.FindX(ctx, viewer, "nope", nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, pkgerrors.CodeNodeNotFound, pkgerrors.GetAppError(err).Code)

	other, err := f.nodes.Find(ctx, otherViewer, node.ID(), nil)
	require.NoError(t, err)
	assert.Nil(t, other, "nodes are scoped to the viewer's org")
}

func TestNodeService_FindUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := f.create(t, "BfDoc", nil)
	c := cache.NewNodeCache()

	first, err := f.nodes.FindX(ctx, viewer, node.ID(), c)
	require.NoError(t, err)
	second, err := f.nodes.FindX(ctx, viewer, node.ID(), c)
	require.NoError(t, err)
	assert.Same(t, first, second)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	_, err = f.nodes.FindX(ctx, otherViewer, node.ID(), c)
	assert.True(t, pkgerrors.IsNotFound(err), "cached node from another org must not leak")
}

func TestNodeService_FindPropagatesBackendErrors(t *testing.T) {
	backend := new(mocks.MockBackend)
	svc := NewNodeService(backend, nil, nil)
	ctx := context.Background()
	boom := pkgerrors.NewDatabaseError("GetItem", errors.New("boom"))
	backend.On("GetItem", ctx, viewer.OrgBfOid, valueobjects.BfGid("n1")).Return(nil, boom)

	node, err := svc.Find(ctx, viewer, "n1", nil)
	assert.Nil(t, node)
	assert.ErrorIs(t, err, boom)
	backend.AssertExpectations(t)
}

func TestNodeService_SaveAndLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := f.create(t, "BfDoc", valueobjects.Props{"title": "draft"})
	before := node.Metadata().LastUpdated

	node.SetProps(valueobjects.Props{"title": "final"})
	assert.True(t, node.IsDirty())
	require.NoError(t, f.nodes.Save(ctx, node))
	assert.False(t, node.IsDirty())
	assert.True(t, node.Metadata().LastUpdated.After(before))

	copyNode, err := f.nodes.FindX(ctx, viewer, node.ID(), nil)
	require.NoError(t, err)
	assert.Equal(t, "final", copyNode.Props().String("title"))

	node.SetProps(valueobjects.Props{"title": "unsaved"})
	require.NoError(t, f.nodes.Load(ctx, node))
	assert.Equal(t, "final", node.Props().String("title"))
	assert.False(t, node.IsDirty())

	assert.Equal(t, []string{events.TypeNodeCreated, events.TypeNodeUpdated}, f.publisher.Types())
}

func TestNodeService_ConcurrentCreatesWithSameID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.nodes.CreateUnattached(ctx, viewer, "BfDoc", valueobjects.Props{"attempt": i},
				&entities.Metadata{BfGid: "same-id"}, nil)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.True(t, pkgerrors.IsConflict(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, created)
	assert.Len(t, f.publisher.Types(), 1)
}

func TestNodeService_SaveFailure(t *testing.T) {
	backend := new(mocks.MockBackend)
	publisher := new(mocks.MockEventPublisher)
	svc := NewNodeService(backend, publisher, nil)
	ctx := context.Background()
	backend.On("InsertItem", ctx, mock.AnythingOfType("entities.Item")).Return(pkgerrors.NewDatabaseError("InsertItem", errors.New("down")))

	_, err := svc.CreateUnattached(ctx, viewer, "BfDoc", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
	publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestNodeService_PublishFailureDoesNotFailSave(t *testing.T) {
	backend := memory.NewAdapter(nil)
	publisher := new(mocks.MockEventPublisher)
	svc := NewNodeService(backend, publisher, nil)
	ctx := context.Background()
	publisher.On("PublishBatch", ctx, mock.Anything).Return(errors.New("bus down"))

	node, err := svc.CreateUnattached(ctx, viewer, "BfDoc", nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, node.GetUncommittedEvents())
	publisher.AssertExpectations(t)
}

func TestNodeService_Touch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := f.create(t, "BfDoc", nil)
	before := node.Metadata().LastUpdated

	require.NoError(t, f.nodes.Touch(ctx, node))

	stored, err := f.backend.GetItem(ctx, viewer.OrgBfOid, node.ID())
	require.NoError(t, err)
	assert.True(t, stored.Metadata.LastUpdated.After(before))
}

func TestNodeService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := f.create(t, "BfDoc", nil)

	require.NoError(t, f.nodes.Delete(ctx, node))
	found, err := f.nodes.Find(ctx, viewer, node.ID(), nil)
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Equal(t, []string{events.TypeNodeCreated, events.TypeNodeDeleted}, f.publisher.Types())
}

func TestNodeService_Query(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "BfDoc", valueobjects.Props{"name": "a", "status": "draft"})
	f.create(t, "BfDoc", valueobjects.Props{"name": "b", "status": "published"})
	c := f.create(t, "BfDoc", valueobjects.Props{"name": "c", "status": "draft"})
	f.create(t, "BfPerson", valueobjects.Props{"name": "p", "status": "draft"})
	_, err := f.nodes.CreateUnattached(ctx, otherViewer, "BfDoc", valueobjects.Props{"name": "x", "status": "draft"}, nil, nil)
	require.NoError(t, err)

	drafts, err := f.nodes.Query(ctx, viewer, ports.MetadataFilter{ClassName: ports.Ptr("BfDoc")}, valueobjects.Props{"status": "draft"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names(drafts))

	byID, err := f.nodes.Query(ctx, viewer, ports.MetadataFilter{}, nil, []valueobjects.BfGid{c.ID(), a.ID()}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names(byID))

	spoofed, err := f.nodes.Query(ctx, viewer, ports.MetadataFilter{BfOid: ports.Ptr(otherViewer.OrgBfOid)}, nil, nil, nil)
	require.NoError(t, err)
	assert.Len(t, spoofed, 4, "org filter always comes from the viewer")
}

func TestNodeService_CreateTargetNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.create(t, "BfFolder", valueobjects.Props{"name": "root"})

	target, err := f.nodes.CreateTargetNode(ctx, source, "BfDoc", valueobjects.Props{"name": "child"}, "contains", nil)
	require.NoError(t, err)

	edges, err := f.edges.QuerySourceEdgesForNode(ctx, source)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, target.ID(), edges[0].TargetID())
	assert.Equal(t, "contains", edges[0].Role())
	assert.Equal(t, "BfDoc", edges[0].TargetClassName())

	assert.Equal(t, []string{events.TypeNodeCreated, events.TypeNodeCreated, events.TypeEdgeCreated}, f.publisher.Types())
}

func TestNodeService_AncestorsAndDescendants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.create(t, "BfNode", valueobjects.Props{"name": "Root Node"})
	middle, err := f.nodes.CreateTargetNode(ctx, root, "BfNode", valueobjects.Props{"name": "Middle Node"}, "r", nil)
	require.NoError(t, err)
	leaf, err := f.nodes.CreateTargetNode(ctx, middle, "BfNode", valueobjects.Props{"name": "Leaf Node"}, "r", nil)
	require.NoError(t, err)

	ancestors, err := f.nodes.QueryAncestorsByClassName(ctx, leaf, "BfNode", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Middle Node", "Root Node"}, names(ancestors))

	descendants, err := f.nodes.QueryDescendantsByClassName(ctx, root, "BfNode", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Middle Node"}, names(descendants))
}

func TestNodeService_QueryConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"n1", "n2", "n3", "n4", "n5"} {
		f.create(t, "BfDoc", valueobjects.Props{"name": name})
	}
	filter := ports.MetadataFilter{ClassName: ports.Ptr("BfDoc")}
	two := 2

	page1, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{First: &two}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, names(page1.Nodes()))
	assert.True(t, page1.PageInfo.HasNextPage)
	assert.False(t, page1.PageInfo.HasPreviousPage)
	assert.Equal(t, 5, page1.Count)

	page2, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{First: &two, After: page1.PageInfo.EndCursor}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n3", "n4"}, names(page2.Nodes()))
	assert.True(t, page2.PageInfo.HasNextPage)
	assert.True(t, page2.PageInfo.HasPreviousPage)

	page3, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{First: &two, After: page2.PageInfo.EndCursor}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n5"}, names(page3.Nodes()))
	assert.False(t, page3.PageInfo.HasNextPage)

	last, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{Last: &two}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n4", "n5"}, names(last.Nodes()))
	assert.True(t, last.PageInfo.HasPreviousPage)
	assert.False(t, last.PageInfo.HasNextPage)

	before, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{Last: &two, Before: last.PageInfo.StartCursor}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n2", "n3"}, names(before.Nodes()))
	assert.True(t, before.PageInfo.HasPreviousPage)
	assert.True(t, before.PageInfo.HasNextPage)

	all, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{}, nil)
	require.NoError(t, err)
	assert.Len(t, all.Edges, 5)
	assert.False(t, all.PageInfo.HasNextPage)
}

func TestNodeService_QueryConnection_InvalidArgs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	one := 1
	bad := "%%%"

	_, err := f.nodes.QueryConnection(ctx, viewer, ports.MetadataFilter{}, nil, connection.Args{First: &one, Last: &one}, nil)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.nodes.QueryConnection(ctx, viewer, ports.MetadataFilter{}, nil, connection.Args{After: &bad}, nil)
	assert.True(t, pkgerrors.IsValidation(err))

	negative := -1
	_, err = f.nodes.QueryConnection(ctx, viewer, ports.MetadataFilter{}, nil, connection.Args{First: &negative}, nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNodeService_QueryConnection_ZeroSizedPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"n1", "n2", "n3"} {
		f.create(t, "BfDoc", valueobjects.Props{"name": name})
	}
	filter := ports.MetadataFilter{ClassName: ports.Ptr("BfDoc")}
	zero := 0

	first, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{First: &zero}, nil)
	require.NoError(t, err)
	assert.Empty(t, first.Edges)
	assert.True(t, first.PageInfo.HasNextPage)
	assert.Equal(t, 3, first.Count)

	last, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{Last: &zero}, nil)
	require.NoError(t, err)
	assert.Empty(t, last.Edges)
	assert.True(t, last.PageInfo.HasPreviousPage)

	none, err := f.nodes.QueryConnection(ctx, viewer, ports.MetadataFilter{ClassName: ports.Ptr("BfMissing")}, nil, connection.Args{First: &zero}, nil)
	require.NoError(t, err)
	assert.Empty(t, none.Edges)
	assert.False(t, none.PageInfo.HasNextPage)
}

func TestNodeService_QueryConnection_AfterAndBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"n0", "n1", "n2", "n3", "n4"} {
		f.create(t, "BfDoc", valueobjects.Props{"name": name})
	}
	filter := ports.MetadataFilter{ClassName: ports.Ptr("BfDoc")}

	all, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{}, nil)
	require.NoError(t, err)
	require.Len(t, all.Edges, 5)
	after, before := all.Edges[0].Cursor, all.Edges[3].Cursor

	window, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{After: &after, Before: &before}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, names(window.Nodes()))
	assert.True(t, window.PageInfo.HasNextPage)
	assert.True(t, window.PageInfo.HasPreviousPage)

	one := 1
	head, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{First: &one, After: &after, Before: &before}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, names(head.Nodes()))

	tail, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{Last: &one, After: &after, Before: &before}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n2"}, names(tail.Nodes()))
}

func TestNodeService_QueryConnection_SharedSortValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, gid := range []valueobjects.BfGid{"c", "a", "b"} {
		_, err := f.nodes.CreateUnattached(ctx, viewer, "BfDoc", valueobjects.Props{"name": gid.String()},
			&entities.Metadata{BfGid: gid, SortValue: 1000}, nil)
		require.NoError(t, err)
	}
	filter := ports.MetadataFilter{ClassName: ports.Ptr("BfDoc")}
	one := 1

	var seen []string
	var after *string
	for i := 0; i < 5; i++ {
		page, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{First: &one, After: after}, nil)
		require.NoError(t, err)
		seen = append(seen, names(page.Nodes())...)
		if !page.PageInfo.HasNextPage {
			break
		}
		after = page.PageInfo.EndCursor
	}
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	var back []string
	var before *string
	for i := 0; i < 5; i++ {
		page, err := f.nodes.QueryConnection(ctx, viewer, filter, nil, connection.Args{Last: &one, Before: before}, nil)
		require.NoError(t, err)
		back = append(names(page.Nodes()), back...)
		if !page.PageInfo.HasPreviousPage {
			break
		}
		before = page.PageInfo.StartCursor
	}
	assert.Equal(t, []string{"a", "b", "c"}, back)
}

func TestNodeService_SaveRejectsInvalidProps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.nodes.SetPropsValidator(validators.NewPropsValidator(nil))

	_, err := f.nodes.CreateUnattached(ctx, viewer, "BfPerson", valueobjects.Props{"__gid": "forged"}, nil, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	items, err := f.backend.QueryItems(ctx, ports.ItemQuery{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, f.publisher.Events)

	node := f.create(t, "BfPerson", valueobjects.Props{"name": "Ada"})
	node.SetProps(valueobjects.Props{"": "blank"})
	err = f.nodes.Save(ctx, node)
	assert.True(t, pkgerrors.IsValidation(err))

	stored, err := f.backend.GetItem(ctx, viewer.OrgBfOid, node.ID())
	require.NoError(t, err)
	assert.NotContains(t, stored.Props, "")
}
