// Package decorators wraps a ports.Backend with cross-cutting behaviour:
// metrics, tracing and a circuit breaker.
package decorators

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	pkgerrors "bfdb/pkg/errors"
	"bfdb/pkg/observability"
)

// Recorder receives one observation per backend call
type Recorder interface {
	RecordBackendOperation(backend, operation, status string, duration time.Duration)
}

// InstrumentedBackend times every call, records it and, when tracing is
// enabled, wraps it in an X-Ray subsegment.
type InstrumentedBackend struct {
	next     ports.Backend
	name     string
	recorder Recorder
	tracer   *observability.Tracer
	logger   *zap.Logger
}

var _ ports.Backend = (*InstrumentedBackend)(nil)

// NewInstrumentedBackend wraps next. name labels the metrics ("dynamodb",
// "badger", ...). tracer may be nil.
func NewInstrumentedBackend(next ports.Backend, name string, recorder Recorder, tracer *observability.Tracer, logger *zap.Logger) *InstrumentedBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedBackend{
		next:     next,
		name:     name,
		recorder: recorder,
		tracer:   tracer,
		logger:   logger,
	}
}

func (b *InstrumentedBackend) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := b.tracer.TraceFunction(ctx, "backend."+op, fn)
	elapsed := time.Since(start)

	status := operationStatus(err)
	if b.recorder != nil {
		b.recorder.RecordBackendOperation(b.name, op, status, elapsed)
	}
	b.logger.Debug("Backend operation",
		zap.String("backend", b.name),
		zap.String("operation", op),
		zap.String("status", status),
		zap.Duration("duration", elapsed),
	)
	return err
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case pkgerrors.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}

func (b *InstrumentedBackend) Initialize(ctx context.Context) error {
	return b.observe(ctx, "Initialize", b.next.Initialize)
}

func (b *InstrumentedBackend) Close(ctx context.Context) error {
	return b.observe(ctx, "Close", b.next.Close)
}

func (b *InstrumentedBackend) GetItem(ctx context.Context, oid, gid valueobjects.BfGid) (*entities.Item, error) {
	var item *entities.Item
	err := b.observe(ctx, "GetItem", func(ctx context.Context) (err error) {
		item, err = b.next.GetItem(ctx, oid, gid)
		return err
	})
	return item, err
}

func (b *InstrumentedBackend) GetItemByBfGid(ctx context.Context, gid valueobjects.BfGid) (*entities.Item, error) {
	var item *entities.Item
	err := b.observe(ctx, "GetItemByBfGid", func(ctx context.Context) (err error) {
		item, err = b.next.GetItemByBfGid(ctx, gid)
		return err
	})
	return item, err
}

func (b *InstrumentedBackend) GetItemsByBfGid(ctx context.Context, gids []valueobjects.BfGid) ([]entities.Item, error) {
	var items []entities.Item
	err := b.observe(ctx, "GetItemsByBfGid", func(ctx context.Context) (err error) {
		items, err = b.next.GetItemsByBfGid(ctx, gids)
		return err
	})
	return items, err
}

func (b *InstrumentedBackend) PutItem(ctx context.Context, item entities.Item) error {
	return b.observe(ctx, "PutItem", func(ctx context.Context) error {
		return b.next.PutItem(ctx, item)
	})
}

func (b *InstrumentedBackend) InsertItem(ctx context.Context, item entities.Item) error {
	return b.observe(ctx, "InsertItem", func(ctx context.Context) error {
		return b.next.InsertItem(ctx, item)
	})
}

func (b *InstrumentedBackend) DeleteItem(ctx context.Context, oid, gid valueobjects.BfGid) error {
	return b.observe(ctx, "DeleteItem", func(ctx context.Context) error {
		return b.next.DeleteItem(ctx, oid, gid)
	})
}

func (b *InstrumentedBackend) QueryItems(ctx context.Context, q ports.ItemQuery) ([]entities.Item, error) {
	var items []entities.Item
	err := b.observe(ctx, "QueryItems", func(ctx context.Context) (err error) {
		items, err = b.next.QueryItems(ctx, q)
		return err
	})
	return items, err
}

func (b *InstrumentedBackend) QueryAncestorsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	var items []entities.Item
	err := b.observe(ctx, "QueryAncestorsByClassName", func(ctx context.Context) (err error) {
		b.tracer.AddAnnotation(ctx, "className", className)
		items, err = b.next.QueryAncestorsByClassName(ctx, oid, gid, className, depth)
		return err
	})
	return items, err
}

func (b *InstrumentedBackend) QueryDescendantsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	var items []entities.Item
	err := b.observe(ctx, "QueryDescendantsByClassName", func(ctx context.Context) (err error) {
		b.tracer.AddAnnotation(ctx, "className", className)
		items, err = b.next.QueryDescendantsByClassName(ctx, oid, gid, className, depth)
		return err
	})
	return items, err
}
