// Package backendtest holds the behavioural suite every ports.Backend
// implementation must pass.
package backendtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	pkgerrors "bfdb/pkg/errors"
)

// Factory returns a fresh, initialized backend
type Factory func(t *testing.T) ports.Backend

const (
	OrgA valueobjects.BfGid = "org-a"
	OrgB valueobjects.BfGid = "org-b"
)

// Node builds a plain item
func Node(oid, gid valueobjects.BfGid, className string, sortValue int64, props valueobjects.Props) entities.Item {
	now := time.UnixMilli(sortValue).UTC()
	return entities.Item{
		Props: props,
		Metadata: entities.Metadata{
			BfGid:       gid,
			BfOid:       oid,
			ClassName:   className,
			SortValue:   sortValue,
			BfCid:       "creator",
			CreatedAt:   now,
			LastUpdated: now,
		},
	}
}

// Edge builds an edge item between two plain items
func Edge(gid valueobjects.BfGid, source, target entities.Item, sortValue int64, role string) entities.Item {
	item := Node(source.Metadata.BfOid, gid, valueobjects.DefaultEdgeClassName, sortValue, valueobjects.Props{"role": role})
	item.Metadata.BfSid = source.Metadata.BfGid
	item.Metadata.BfSClassName = source.Metadata.ClassName
	item.Metadata.BfTid = target.Metadata.BfGid
	item.Metadata.BfTClassName = target.Metadata.ClassName
	return item
}

func put(t *testing.T, b ports.Backend, items ...entities.Item) {
	t.Helper()
	for _, item := range items {
		require.NoError(t, b.PutItem(context.Background(), item))
	}
}

func gids(items []entities.Item) []valueobjects.BfGid {
	out := make([]valueobjects.BfGid, len(items))
	for i, item := range items {
		out[i] = item.Metadata.BfGid
	}
	return out
}

// Run executes the suite against backends produced by newBackend
func Run(t *testing.T, newBackend Factory) {
	t.Run("GetItem", func(t *testing.T) { testGetItem(t, newBackend(t)) })
	t.Run("PutItemReplaces", func(t *testing.T) { testPutItemReplaces(t, newBackend(t)) })
	t.Run("InsertItem", func(t *testing.T) { testInsertItem(t, newBackend(t)) })
	t.Run("DeleteItem", func(t *testing.T) { testDeleteItem(t, newBackend(t)) })
	t.Run("GetItemsByBfGid", func(t *testing.T) { testGetItemsByBfGid(t, newBackend(t)) })
	t.Run("QueryItemsFilters", func(t *testing.T) { testQueryItemsFilters(t, newBackend(t)) })
	t.Run("QueryItemsPaging", func(t *testing.T) { testQueryItemsPaging(t, newBackend(t)) })
	t.Run("QueryItemsWindow", func(t *testing.T) { testQueryItemsWindow(t, newBackend(t)) })
	t.Run("QueryItemsSortTies", func(t *testing.T) { testQueryItemsSortTies(t, newBackend(t)) })
	t.Run("Traversal", func(t *testing.T) { testTraversal(t, newBackend(t)) })
	t.Run("TraversalCycle", func(t *testing.T) { testTraversalCycle(t, newBackend(t)) })
}

func testGetItem(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	item := Node(OrgA, "n1", "BfPerson", 1, valueobjects.Props{"name": "Ada", "age": 36})
	put(t, b, item)

	got, err := b.GetItem(ctx, OrgA, "n1")
	require.NoError(t, err)
	assert.Equal(t, item.Metadata.BfGid, got.Metadata.BfGid)
	assert.Equal(t, item.Metadata.ClassName, got.Metadata.ClassName)
	assert.Equal(t, item.Metadata.SortValue, got.Metadata.SortValue)
	assert.True(t, item.Metadata.CreatedAt.Equal(got.Metadata.CreatedAt))
	assert.True(t, got.Props.Equal(item.Props))

	_, err = b.GetItem(ctx, OrgB, "n1")
	assert.True(t, pkgerrors.IsNotFound(err), "other org must not see the item")

	_, err = b.GetItem(ctx, OrgA, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))

	byGid, err := b.GetItemByBfGid(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, OrgA, byGid.Metadata.BfOid)

	_, err = b.GetItemByBfGid(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func testPutItemReplaces(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	put(t, b, Node(OrgA, "n1", "BfDoc", 1, valueobjects.Props{"v": 1}))
	put(t, b, Node(OrgA, "n1", "BfDoc", 1, valueobjects.Props{"v": 2}))

	got, err := b.GetItem(ctx, OrgA, "n1")
	require.NoError(t, err)
	assert.True(t, got.Props.Matches(valueobjects.Props{"v": 2}))

	all, err := b.QueryItems(ctx, ports.ItemQuery{Metadata: ports.MetadataFilter{BfOid: ports.Ptr(OrgA)}})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testInsertItem(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	require.NoError(t, b.InsertItem(ctx, Node(OrgA, "n1", "BfDoc", 1, valueobjects.Props{"v": 1})))

	err := b.InsertItem(ctx, Node(OrgA, "n1", "BfDoc", 2, valueobjects.Props{"v": 2}))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	got, err := b.GetItem(ctx, OrgA, "n1")
	require.NoError(t, err)
	assert.True(t, got.Props.Matches(valueobjects.Props{"v": 1}))
	assert.Equal(t, int64(1), got.Metadata.SortValue)

	require.NoError(t, b.PutItem(ctx, Node(OrgA, "n1", "BfDoc", 1, valueobjects.Props{"v": 3})))
}

func testDeleteItem(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	put(t, b, Node(OrgA, "n1", "BfDoc", 1, nil))

	require.NoError(t, b.DeleteItem(ctx, OrgB, "n1"))
	_, err := b.GetItem(ctx, OrgA, "n1")
	require.NoError(t, err, "delete from another org is a no-op")

	require.NoError(t, b.DeleteItem(ctx, OrgA, "n1"))
	_, err = b.GetItem(ctx, OrgA, "n1")
	assert.True(t, pkgerrors.IsNotFound(err))

	assert.NoError(t, b.DeleteItem(ctx, OrgA, "n1"), "deleting twice is not an error")
}

func testGetItemsByBfGid(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	put(t, b,
		Node(OrgA, "n1", "BfDoc", 1, nil),
		Node(OrgA, "n2", "BfDoc", 2, nil),
		Node(OrgA, "n3", "BfDoc", 3, nil),
	)

	items, err := b.GetItemsByBfGid(ctx, []valueobjects.BfGid{"n3", "missing", "n1"})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"n3", "n1"}, gids(items))

	items, err = b.GetItemsByBfGid(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testQueryItemsFilters(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	person := Node(OrgA, "p1", "BfPerson", 10, valueobjects.Props{"name": "Ada"})
	doc1 := Node(OrgA, "d1", "BfDoc", 20, valueobjects.Props{"status": "draft"})
	doc2 := Node(OrgA, "d2", "BfDoc", 30, valueobjects.Props{"status": "published"})
	foreign := Node(OrgB, "x1", "BfDoc", 5, valueobjects.Props{"status": "draft"})
	edge1 := Edge("e1", person, doc1, 40, "author")
	edge2 := Edge("e2", person, doc2, 50, "reviewer")
	put(t, b, doc2, person, doc1, foreign, edge2, edge1)

	tests := []struct {
		name string
		q    ports.ItemQuery
		want []valueobjects.BfGid
	}{
		{
			name: "org scoped, sort order",
			q:    ports.ItemQuery{Metadata: ports.MetadataFilter{BfOid: ports.Ptr(OrgA)}},
			want: []valueobjects.BfGid{"p1", "d1", "d2", "e1", "e2"},
		},
		{
			name: "by class",
			q:    ports.ItemQuery{Metadata: ports.MetadataFilter{BfOid: ports.Ptr(OrgA), ClassName: ports.Ptr("BfDoc")}},
			want: []valueobjects.BfGid{"d1", "d2"},
		},
		{
			name: "by props",
			q:    ports.ItemQuery{Metadata: ports.MetadataFilter{ClassName: ports.Ptr("BfDoc")}, Props: valueobjects.Props{"status": "draft"}},
			want: []valueobjects.BfGid{"x1", "d1"},
		},
		{
			name: "edges by source",
			q:    ports.ItemQuery{Metadata: ports.MetadataFilter{BfOid: ports.Ptr(OrgA), BfSid: ports.Ptr[valueobjects.BfGid]("p1")}},
			want: []valueobjects.BfGid{"e1", "e2"},
		},
		{
			name: "edges by target and role",
			q: ports.ItemQuery{
				Metadata: ports.MetadataFilter{BfOid: ports.Ptr(OrgA), BfTid: ports.Ptr[valueobjects.BfGid]("d2")},
				Props:    valueobjects.Props{"role": "reviewer"},
			},
			want: []valueobjects.BfGid{"e2"},
		},
		{
			name: "edges by target class",
			q:    ports.ItemQuery{Metadata: ports.MetadataFilter{BfOid: ports.Ptr(OrgA), BfTClassName: ports.Ptr("BfDoc")}},
			want: []valueobjects.BfGid{"e1", "e2"},
		},
		{
			name: "restricted to ids",
			q:    ports.ItemQuery{Metadata: ports.MetadataFilter{BfOid: ports.Ptr(OrgA)}, BfGids: []valueobjects.BfGid{"d2", "p1", "x1"}},
			want: []valueobjects.BfGid{"p1", "d2"},
		},
		{
			name: "no match",
			q:    ports.ItemQuery{Props: valueobjects.Props{"missing": true}},
			want: []valueobjects.BfGid{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := b.QueryItems(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, gids(items))
		})
	}
}

func testQueryItemsPaging(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	for i, gid := range []valueobjects.BfGid{"a", "b", "c", "d", "e"} {
		put(t, b, Node(OrgA, gid, "BfDoc", int64(100+i), nil))
	}
	base := ports.MetadataFilter{BfOid: ports.Ptr(OrgA)}

	items, err := b.QueryItems(ctx, ports.ItemQuery{Metadata: base, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"a", "b"}, gids(items))

	items, err = b.QueryItems(ctx, ports.ItemQuery{Metadata: base, Cursor: &ports.SortKey{SortValue: 101, BfGid: "b"}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"c", "d"}, gids(items))

	items, err = b.QueryItems(ctx, ports.ItemQuery{Metadata: base, Order: ports.SortDescending, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"e", "d"}, gids(items))

	items, err = b.QueryItems(ctx, ports.ItemQuery{Metadata: base, Order: ports.SortDescending, Cursor: &ports.SortKey{SortValue: 102, BfGid: "c"}})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"b", "a"}, gids(items))
}

func testQueryItemsWindow(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	for i, gid := range []valueobjects.BfGid{"a", "b", "c", "d", "e"} {
		put(t, b, Node(OrgA, gid, "BfDoc", int64(100+i), nil))
	}
	base := ports.MetadataFilter{BfOid: ports.Ptr(OrgA)}
	lo := &ports.SortKey{SortValue: 100, BfGid: "a"}
	hi := &ports.SortKey{SortValue: 103, BfGid: "d"}

	items, err := b.QueryItems(ctx, ports.ItemQuery{Metadata: base, Cursor: lo, Until: hi})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"b", "c"}, gids(items))

	items, err = b.QueryItems(ctx, ports.ItemQuery{Metadata: base, Order: ports.SortDescending, Cursor: hi, Until: lo})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"c", "b"}, gids(items))

	items, err = b.QueryItems(ctx, ports.ItemQuery{Metadata: base, Until: lo})
	require.NoError(t, err)
	assert.Empty(t, items)
}

// Items sharing a sort value page by gid without skipping any.
func testQueryItemsSortTies(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	put(t, b,
		Node(OrgA, "c", "BfDoc", 1000, nil),
		Node(OrgA, "a", "BfDoc", 1000, nil),
		Node(OrgA, "b", "BfDoc", 1000, nil),
		Node(OrgA, "z", "BfDoc", 999, nil),
	)
	base := ports.MetadataFilter{BfOid: ports.Ptr(OrgA)}

	var seen []valueobjects.BfGid
	var cursor *ports.SortKey
	for i := 0; i < 5; i++ {
		items, err := b.QueryItems(ctx, ports.ItemQuery{Metadata: base, Cursor: cursor, Limit: 1})
		require.NoError(t, err)
		if len(items) == 0 {
			break
		}
		seen = append(seen, items[0].Metadata.BfGid)
		cursor = ports.Ptr(ports.KeyOf(items[0].Metadata))
	}
	assert.Equal(t, []valueobjects.BfGid{"z", "a", "b", "c"}, seen)

	items, err := b.QueryItems(ctx, ports.ItemQuery{
		Metadata: base,
		Order:    ports.SortDescending,
		Cursor:   &ports.SortKey{SortValue: 1000, BfGid: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"a", "z"}, gids(items))
}

// root -> middle -> leaf, root -> doc, middle -> doc2
func testTraversal(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	root := Node(OrgA, "root", "BfFolder", 1, nil)
	middle := Node(OrgA, "middle", "BfFolder", 2, nil)
	leaf := Node(OrgA, "leaf", "BfDoc", 3, nil)
	doc := Node(OrgA, "doc", "BfDoc", 4, nil)
	doc2 := Node(OrgA, "doc2", "BfDoc", 5, nil)
	put(t, b, root, middle, leaf, doc, doc2,
		Edge("e1", root, middle, 10, ""),
		Edge("e2", middle, leaf, 11, ""),
		Edge("e3", root, doc, 12, ""),
		Edge("e4", middle, doc2, 13, ""),
	)

	ancestors, err := b.QueryAncestorsByClassName(ctx, OrgA, "leaf", "BfFolder", 0)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"middle", "root"}, gids(ancestors))

	ancestors, err = b.QueryAncestorsByClassName(ctx, OrgA, "leaf", "BfFolder", 1)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"middle"}, gids(ancestors))

	descendants, err := b.QueryDescendantsByClassName(ctx, OrgA, "root", "BfDoc", 10)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"doc", "leaf", "doc2"}, gids(descendants))

	none, err := b.QueryDescendantsByClassName(ctx, OrgB, "root", "BfDoc", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testTraversalCycle(t *testing.T, b ports.Backend) {
	ctx := context.Background()
	a := Node(OrgA, "a", "BfNode", 1, nil)
	bNode := Node(OrgA, "b", "BfNode", 2, nil)
	c := Node(OrgA, "c", "BfNode", 3, nil)
	put(t, b, a, bNode, c,
		Edge("e1", a, bNode, 10, ""),
		Edge("e2", bNode, c, 11, ""),
		Edge("e3", c, a, 12, ""),
	)

	descendants, err := b.QueryDescendantsByClassName(ctx, OrgA, "a", "BfNode", 50)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.BfGid{"b", "c", "a"}, gids(descendants))
}
