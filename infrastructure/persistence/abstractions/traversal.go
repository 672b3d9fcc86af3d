// Package abstractions holds storage logic shared by every backend
// adapter, expressed only in terms of the Backend port.
package abstractions

import (
	"context"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	pkgerrors "bfdb/pkg/errors"
)

// Direction selects which end of an edge a traversal follows
type Direction int

const (
	// Backward follows edges from target to source (ancestors)
	Backward Direction = iota
	// Forward follows edges from source to target (descendants)
	Forward
)

// ItemSource is the subset of ports.Backend a traversal needs
type ItemSource interface {
	QueryItems(ctx context.Context, q ports.ItemQuery) ([]entities.Item, error)
	GetItemByBfGid(ctx context.Context, gid valueobjects.BfGid) (*entities.Item, error)
}

// TraverseByClassName walks edges breadth first from start, at most depth
// levels, and returns the nodes of className it reaches. Every node is
// expanded once no matter its class, so cycles terminate and each result
// appears once, in level order.
func TraverseByClassName(ctx context.Context, src ItemSource, oid, start valueobjects.BfGid, className string, depth int, dir Direction) ([]entities.Item, error) {
	if depth <= 0 {
		depth = ports.DefaultTraversalDepth
	}

	var results []entities.Item
	processed := map[valueobjects.BfGid]struct{}{}
	frontier := []valueobjects.BfGid{start}

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []valueobjects.BfGid

		for _, current := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			edges, err := src.QueryItems(ctx, edgeQuery(oid, current, dir))
			if err != nil {
				return nil, err
			}

			for _, edge := range edges {
				otherID, otherClass := edge.Metadata.BfSid, edge.Metadata.BfSClassName
				if dir == Forward {
					otherID, otherClass = edge.Metadata.BfTid, edge.Metadata.BfTClassName
				}
				if _, seen := processed[otherID]; seen {
					continue
				}
				processed[otherID] = struct{}{}
				next = append(next, otherID)

				if otherClass != className {
					continue
				}
				item, err := src.GetItemByBfGid(ctx, otherID)
				if err != nil {
					if pkgerrors.IsNotFound(err) {
						continue
					}
					return nil, err
				}
				if item.Metadata.BfOid == oid && item.Metadata.ClassName == className {
					results = append(results, *item)
				}
			}
		}

		frontier = next
	}

	return results, nil
}

func edgeQuery(oid, current valueobjects.BfGid, dir Direction) ports.ItemQuery {
	filter := ports.MetadataFilter{BfOid: ports.Ptr(oid)}
	if dir == Forward {
		filter.BfSid = ports.Ptr(current)
	} else {
		filter.BfTid = ports.Ptr(current)
	}
	return ports.ItemQuery{Metadata: filter}
}
