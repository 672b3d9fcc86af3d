// Package connection builds cursor-paginated envelopes over node lists.
package connection

import (
	"encoding/base64"
	"strconv"
	"strings"

	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	pkgerrors "bfdb/pkg/errors"
)

// Args are the cursor pagination arguments of a connection request
type Args struct {
	First  *int    `json:"first,omitempty" validate:"omitempty,min=0"`
	Last   *int    `json:"last,omitempty" validate:"omitempty,min=0"`
	After  *string `json:"after,omitempty"`
	Before *string `json:"before,omitempty"`
}

// HasPagination reports whether any of first, last, after or before is set
func (a Args) HasPagination() bool {
	return a.First != nil || a.Last != nil || a.After != nil || a.Before != nil
}

// PageInfo describes the position of a page within the full result
type PageInfo struct {
	HasNextPage     bool    `json:"hasNextPage"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
	StartCursor     *string `json:"startCursor"`
	EndCursor       *string `json:"endCursor"`
}

// Edge pairs a node with its cursor
type Edge[T any] struct {
	Cursor string `json:"cursor"`
	Node   T      `json:"node"`
}

// Connection is a page of nodes plus paging state
type Connection[T any] struct {
	Edges    []Edge[T] `json:"edges"`
	PageInfo PageInfo  `json:"pageInfo"`
	Count    int       `json:"count"`
}

// Nodes returns the page's nodes in order
func (c *Connection[T]) Nodes() []T {
	out := make([]T, len(c.Edges))
	for i, e := range c.Edges {
		out[i] = e.Node
	}
	return out
}

// ToCursor encodes a node's position in sort order as an opaque cursor.
// The gid breaks ties between nodes sharing a sort value.
func ToCursor(sortValue int64, gid valueobjects.BfGid) string {
	raw := strconv.FormatInt(sortValue, 10) + ":" + gid.String()
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// FromCursor decodes a cursor produced by ToCursor
func FromCursor(cursor string) (int64, valueobjects.BfGid, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, "", pkgerrors.NewInvalidCursorError(cursor)
	}
	value, gid, ok := strings.Cut(string(raw), ":")
	if !ok || gid == "" {
		return 0, "", pkgerrors.NewInvalidCursorError(cursor)
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, "", pkgerrors.NewInvalidCursorError(cursor)
	}
	return v, valueobjects.BfGid(gid), nil
}

// FromNodes wraps an already loaded list. It supports only the
// unpaginated form; any pagination argument is rejected with a
// NOT_IMPLEMENTED error, use NodeService.QueryConnection for paging.
func FromNodes(nodes []*entities.Node, args Args) (*Connection[*entities.Node], error) {
	if args.HasPagination() {
		return nil, pkgerrors.NewNotImplementedError("pagination over in-memory node lists")
	}
	return Build(nodes, false, false, len(nodes)), nil
}

// Build assembles a connection from a page that is already ordered
func Build(nodes []*entities.Node, hasNext, hasPrevious bool, count int) *Connection[*entities.Node] {
	conn := &Connection[*entities.Node]{
		Edges: make([]Edge[*entities.Node], 0, len(nodes)),
		PageInfo: PageInfo{
			HasNextPage:     hasNext,
			HasPreviousPage: hasPrevious,
		},
		Count: count,
	}
	for _, n := range nodes {
		conn.Edges = append(conn.Edges, Edge[*entities.Node]{
			Cursor: ToCursor(n.Metadata().SortValue, n.ID()),
			Node:   n,
		})
	}
	if len(conn.Edges) > 0 {
		start := conn.Edges[0].Cursor
		end := conn.Edges[len(conn.Edges)-1].Cursor
		conn.PageInfo.StartCursor = &start
		conn.PageInfo.EndCursor = &end
	}
	return conn
}

// Map converts the nodes of a connection, keeping cursors and page info
func Map[T, U any](c *Connection[T], fn func(T) U) *Connection[U] {
	out := &Connection[U]{
		Edges:    make([]Edge[U], len(c.Edges)),
		PageInfo: c.PageInfo,
		Count:    c.Count,
	}
	for i, e := range c.Edges {
		out.Edges[i] = Edge[U]{Cursor: e.Cursor, Node: fn(e.Node)}
	}
	return out
}
