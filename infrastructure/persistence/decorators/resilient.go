package decorators

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	pkgerrors "bfdb/pkg/errors"
)

// BreakerConfig holds configuration for the circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration

	// The breaker trips once MinRequests have been seen in an interval
	// and the failure ratio reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for circuit breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// ResilientBackend stops calling a failing store for a while once the
// failure ratio crosses the threshold. Lookups that miss, invalid input
// and conflicts are answers from a healthy store and never trip it.
type ResilientBackend struct {
	next ports.Backend
	cb   *gobreaker.CircuitBreaker
}

var _ ports.Backend = (*ResilientBackend)(nil)

// NewResilientBackend wraps next in a circuit breaker
func NewResilientBackend(next ports.Backend, cfg BreakerConfig, logger *zap.Logger) *ResilientBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isHealthy,
	})
	return &ResilientBackend{next: next, cb: cb}
}

// State reports the breaker state
func (b *ResilientBackend) State() gobreaker.State {
	return b.cb.State()
}

func isHealthy(err error) bool {
	return err == nil ||
		pkgerrors.IsNotFound(err) ||
		pkgerrors.IsValidation(err) ||
		pkgerrors.IsConflict(err) ||
		errors.Is(err, context.Canceled)
}

func guard[T any](b *ResilientBackend, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, pkgerrors.NewUnavailableError("storage backend").
			WithCode(pkgerrors.CodeCircuitOpen).
			WithCause(err)
	}
	v, _ := out.(T)
	return v, err
}

func (b *ResilientBackend) guardErr(fn func() error) error {
	_, err := guard(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Initialize and Close bypass the breaker so startup and shutdown always
// reach the store.
func (b *ResilientBackend) Initialize(ctx context.Context) error {
	return b.next.Initialize(ctx)
}

func (b *ResilientBackend) Close(ctx context.Context) error {
	return b.next.Close(ctx)
}

func (b *ResilientBackend) GetItem(ctx context.Context, oid, gid valueobjects.BfGid) (*entities.Item, error) {
	return guard(b, func() (*entities.Item, error) {
		return b.next.GetItem(ctx, oid, gid)
	})
}

func (b *ResilientBackend) GetItemByBfGid(ctx context.Context, gid valueobjects.BfGid) (*entities.Item, error) {
	return guard(b, func() (*entities.Item, error) {
		return b.next.GetItemByBfGid(ctx, gid)
	})
}

func (b *ResilientBackend) GetItemsByBfGid(ctx context.Context, gids []valueobjects.BfGid) ([]entities.Item, error) {
	return guard(b, func() ([]entities.Item, error) {
		return b.next.GetItemsByBfGid(ctx, gids)
	})
}

func (b *ResilientBackend) PutItem(ctx context.Context, item entities.Item) error {
	return b.guardErr(func() error {
		return b.next.PutItem(ctx, item)
	})
}

func (b *ResilientBackend) InsertItem(ctx context.Context, item entities.Item) error {
	return b.guardErr(func() error {
		return b.next.InsertItem(ctx, item)
	})
}

func (b *ResilientBackend) DeleteItem(ctx context.Context, oid, gid valueobjects.BfGid) error {
	return b.guardErr(func() error {
		return b.next.DeleteItem(ctx, oid, gid)
	})
}

func (b *ResilientBackend) QueryItems(ctx context.Context, q ports.ItemQuery) ([]entities.Item, error) {
	return guard(b, func() ([]entities.Item, error) {
		return b.next.QueryItems(ctx, q)
	})
}

func (b *ResilientBackend) QueryAncestorsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	return guard(b, func() ([]entities.Item, error) {
		return b.next.QueryAncestorsByClassName(ctx, oid, gid, className, depth)
	})
}

func (b *ResilientBackend) QueryDescendantsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	return guard(b, func() ([]entities.Item, error) {
		return b.next.QueryDescendantsByClassName(ctx, oid, gid, className, depth)
	})
}
