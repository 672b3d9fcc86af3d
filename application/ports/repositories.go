package ports

import (
	"context"

	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	"bfdb/domain/events"
)

// DefaultTraversalDepth bounds ancestor and descendant walks when the
// caller does not pass a depth.
const DefaultTraversalDepth = 10

// Backend is the storage contract every database adapter fulfils.
// This is a port in hexagonal architecture: services never see the driver.
type Backend interface {
	// Initialize prepares the store (tables, indexes, empty maps)
	Initialize(ctx context.Context) error

	// Close releases the store
	Close(ctx context.Context) error

	// GetItem loads one item owned by oid. Missing items yield a NOT_FOUND error.
	GetItem(ctx context.Context, oid, gid valueobjects.BfGid) (*entities.Item, error)

	// GetItemByBfGid loads one item regardless of owner
	GetItemByBfGid(ctx context.Context, gid valueobjects.BfGid) (*entities.Item, error)

	// GetItemsByBfGid loads several items in input order, skipping missing ids
	GetItemsByBfGid(ctx context.Context, gids []valueobjects.BfGid) ([]entities.Item, error)

	// PutItem creates or replaces the item keyed by its gid
	PutItem(ctx context.Context, item entities.Item) error

	// InsertItem stores an item whose gid is not yet stored. An existing
	// item yields a CONFLICT error and is left untouched.
	InsertItem(ctx context.Context, item entities.Item) error

	// DeleteItem removes an item; deleting a missing item is not an error
	DeleteItem(ctx context.Context, oid, gid valueobjects.BfGid) error

	// QueryItems returns items matching q ordered by sort value then gid
	QueryItems(ctx context.Context, q ItemQuery) ([]entities.Item, error)

	// QueryAncestorsByClassName walks edges backwards from gid and returns
	// source nodes of className found within depth hops
	QueryAncestorsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error)

	// QueryDescendantsByClassName walks edges forwards from gid
	QueryDescendantsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error)
}

// NodeCache is a read-through cache of loaded nodes and edges keyed by gid.
// Implementations are scoped to a request or a CLI invocation.
type NodeCache interface {
	Get(gid valueobjects.BfGid) (*entities.Node, bool)
	Set(gid valueobjects.BfGid, node *entities.Node)
	Delete(gid valueobjects.BfGid)
}

// NodeCacheFactory opens a fresh cache for one unit of work
type NodeCacheFactory func() NodeCache

// NewCache calls f, tolerating a nil factory
func (f NodeCacheFactory) NewCache() NodeCache {
	if f == nil {
		return nil
	}
	return f()
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
