// Package memory provides a map-backed storage adapter for tests and
// ephemeral processes. Items live for the lifetime of the adapter.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	"bfdb/infrastructure/persistence/abstractions"
	pkgerrors "bfdb/pkg/errors"
)

// Adapter implements ports.Backend over a map keyed by gid
type Adapter struct {
	mu     sync.RWMutex
	store  map[valueobjects.BfGid]entities.Item
	order  []valueobjects.BfGid
	logger *zap.Logger
}

var _ ports.Backend = (*Adapter)(nil)

// NewAdapter creates an empty adapter
func NewAdapter(logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		store:  make(map[valueobjects.BfGid]entities.Item),
		logger: logger.Named("memory"),
	}
}

// Initialize clears the store
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.Debug("initialize: clearing store", zap.Int("size", len(a.store)))
	a.reset()
	return nil
}

// Close clears the store
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.Debug("close: clearing store", zap.Int("size", len(a.store)))
	a.reset()
	return nil
}

// Clear drops every item
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
}

func (a *Adapter) reset() {
	a.store = make(map[valueobjects.BfGid]entities.Item)
	a.order = nil
}

// Snapshot returns a copy of every stored item in insertion order
func (a *Adapter) Snapshot() []entities.Item {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]entities.Item, 0, len(a.order))
	for _, gid := range a.order {
		out = append(out, a.store[gid].Clone())
	}
	return out
}

// Len returns the number of stored items
func (a *Adapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.store)
}

func (a *Adapter) GetItem(ctx context.Context, oid, gid valueobjects.BfGid) (*entities.Item, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	item, ok := a.store[gid]
	a.logger.Debug("getItem", zap.String("bfOid", oid.String()), zap.String("bfGid", gid.String()), zap.Bool("found", ok))
	if !ok || item.Metadata.BfOid != oid {
		return nil, pkgerrors.NewNodeNotFoundError(gid.String())
	}
	out := item.Clone()
	return &out, nil
}

func (a *Adapter) GetItemByBfGid(ctx context.Context, gid valueobjects.BfGid) (*entities.Item, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	item, ok := a.store[gid]
	a.logger.Debug("getItemByBfGid", zap.String("bfGid", gid.String()), zap.Bool("found", ok))
	if !ok {
		return nil, pkgerrors.NewNodeNotFoundError(gid.String())
	}
	out := item.Clone()
	return &out, nil
}

func (a *Adapter) GetItemsByBfGid(ctx context.Context, gids []valueobjects.BfGid) ([]entities.Item, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]entities.Item, 0, len(gids))
	for _, gid := range gids {
		if item, ok := a.store[gid]; ok {
			out = append(out, item.Clone())
		}
	}
	a.logger.Debug("getItemsByBfGid", zap.Int("requested", len(gids)), zap.Int("rows", len(out)))
	return out, nil
}

func (a *Adapter) PutItem(ctx context.Context, item entities.Item) error {
	return a.put(item, true)
}

func (a *Adapter) InsertItem(ctx context.Context, item entities.Item) error {
	return a.put(item, false)
}

func (a *Adapter) put(item entities.Item, replace bool) error {
	if item.Metadata.BfGid.IsZero() {
		return pkgerrors.NewValidationError("item bfGid is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	gid := item.Metadata.BfGid
	if _, exists := a.store[gid]; exists && !replace {
		return pkgerrors.NewConflictError("bfGid already in use: " + gid.String())
	} else if !exists {
		a.order = append(a.order, gid)
	}
	a.store[gid] = item.Clone()
	a.logger.Debug("putItem",
		zap.String("bfGid", gid.String()),
		zap.String("className", item.Metadata.ClassName),
		zap.Any("props", item.Props),
	)
	return nil
}

func (a *Adapter) DeleteItem(ctx context.Context, oid, gid valueobjects.BfGid) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	item, ok := a.store[gid]
	if !ok || item.Metadata.BfOid != oid {
		return nil
	}
	delete(a.store, gid)
	for i, id := range a.order {
		if id == gid {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	a.logger.Debug("deleteItem", zap.String("bfGid", gid.String()))
	return nil
}

func (a *Adapter) QueryItems(ctx context.Context, q ports.ItemQuery) ([]entities.Item, error) {
	a.mu.RLock()
	candidates := make([]entities.Item, 0, len(a.order))
	for _, gid := range a.order {
		candidates = append(candidates, a.store[gid])
	}
	result := abstractions.ApplyQuery(candidates, q)
	a.mu.RUnlock()

	a.logger.Debug("queryItems", zap.Int("rows", len(result)))
	return result, nil
}

func (a *Adapter) QueryAncestorsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	return abstractions.TraverseByClassName(ctx, a, oid, gid, className, depth, abstractions.Backward)
}

func (a *Adapter) QueryDescendantsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	return abstractions.TraverseByClassName(ctx, a, oid, gid, className, depth, abstractions.Forward)
}
