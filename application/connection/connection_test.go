package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	pkgerrors "bfdb/pkg/errors"
)

func nodesWithSortValues(t *testing.T, values ...int64) []*entities.Node {
	t.Helper()
	cv := valueobjects.CurrentViewer{OrgBfOid: "org", PersonBfGid: "p"}
	out := make([]*entities.Node, len(values))
	for i, v := range values {
		n, err := entities.NewNode(cv, "BfDoc", nil, &entities.Metadata{SortValue: v})
		require.NoError(t, err)
		out[i] = n
	}
	return out
}

func TestCursorRoundTrip(t *testing.T) {
	tests := []struct {
		sortValue int64
		gid       valueobjects.BfGid
	}{
		{0, "a"},
		{1_700_000_000_123, "5f0c2a9e-0d7e-4a59-9d0e-4d2b7a1c9e11"},
		{-5, "with:colon"},
	}
	for _, tt := range tests {
		v, gid, err := FromCursor(ToCursor(tt.sortValue, tt.gid))
		require.NoError(t, err)
		assert.Equal(t, tt.sortValue, v)
		assert.Equal(t, tt.gid, gid)
	}

	assert.Equal(t, "MTIzOmE=", ToCursor(123, "a"))
}

func TestFromCursor_Invalid(t *testing.T) {
	for _, cursor := range []string{"!!!", "bm90LWEtbnVtYmVyOng=", "MTIz", "MTIzOg=="} {
		_, _, err := FromCursor(cursor)
		require.Error(t, err, cursor)
		assert.True(t, pkgerrors.IsValidation(err))
	}
}

func TestFromNodes_NoArgs(t *testing.T) {
	nodes := nodesWithSortValues(t, 10, 20, 30)

	conn, err := FromNodes(nodes, Args{})
	require.NoError(t, err)

	assert.Equal(t, 3, conn.Count)
	require.Len(t, conn.Edges, 3)
	assert.Equal(t, nodes, conn.Nodes())
	assert.False(t, conn.PageInfo.HasNextPage)
	assert.False(t, conn.PageInfo.HasPreviousPage)
	require.NotNil(t, conn.PageInfo.StartCursor)
	assert.Equal(t, ToCursor(10, nodes[0].ID()), *conn.PageInfo.StartCursor)
	assert.Equal(t, ToCursor(30, nodes[2].ID()), *conn.PageInfo.EndCursor)
}

func TestFromNodes_Empty(t *testing.T) {
	conn, err := FromNodes(nil, Args{})
	require.NoError(t, err)
	assert.Empty(t, conn.Edges)
	assert.Nil(t, conn.PageInfo.StartCursor)
	assert.Nil(t, conn.PageInfo.EndCursor)
	assert.Equal(t, 0, conn.Count)
}

func TestFromNodes_PaginationNotImplemented(t *testing.T) {
	one := 1
	cursor := "MTA="
	tests := []struct {
		name string
		args Args
	}{
		{name: "first", args: Args{First: &one}},
		{name: "last", args: Args{Last: &one}},
		{name: "after", args: Args{After: &cursor}},
		{name: "before", args: Args{Before: &cursor}},
	}

	nodes := nodesWithSortValues(t, 1, 2)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.args.HasPagination())
			_, err := FromNodes(nodes, tt.args)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsNotImplemented(err))
			assert.Equal(t, 501, pkgerrors.GetAppError(err).HTTPStatus)
		})
	}
}

func TestMap(t *testing.T) {
	nodes := nodesWithSortValues(t, 5, 6)
	conn := Build(nodes, true, false, 9)

	mapped := Map(conn, func(n *entities.Node) string { return n.ID().String() })
	assert.Equal(t, []string{nodes[0].ID().String(), nodes[1].ID().String()}, mapped.Nodes())
	assert.Equal(t, conn.PageInfo, mapped.PageInfo)
	assert.Equal(t, 9, mapped.Count)
	assert.Equal(t, conn.Edges[1].Cursor, mapped.Edges[1].Cursor)
}
