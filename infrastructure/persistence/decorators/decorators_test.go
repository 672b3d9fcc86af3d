package decorators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	pkgerrors "bfdb/pkg/errors"
	"bfdb/pkg/observability"
	"bfdb/tests/mocks"
)

const org = valueobjects.BfGid("org-1")

func TestInstrumentedBackendRecordsStatus(t *testing.T) {
	ctx := context.Background()
	next := new(mocks.MockBackend)
	collector := observability.NewCollector("bfdb")
	b := NewInstrumentedBackend(next, "memory", collector, observability.NewTracer("bfdb", true), zaptest.NewLogger(t))

	item := &entities.Item{Metadata: entities.Metadata{BfGid: "a", BfOid: org}}
	next.On("GetItem", mock.Anything, org, valueobjects.BfGid("a")).Return(item, nil)
	next.On("GetItem", mock.Anything, org, valueobjects.BfGid("missing")).
		Return(nil, pkgerrors.NewNodeNotFoundError("missing"))
	next.On("PutItem", mock.Anything, mock.Anything).Return(pkgerrors.NewDatabaseError("PutItem", errors.New("throttled")))

	got, err := b.GetItem(ctx, org, "a")
	require.NoError(t, err)
	assert.Same(t, item, got)

	_, err = b.GetItem(ctx, org, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))

	err = b.PutItem(ctx, *item)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))

	ops := collector.BackendOperations
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("memory", "GetItem", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("memory", "GetItem", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("memory", "PutItem", "error")))
	next.AssertExpectations(t)
}

func TestInstrumentedBackendWithoutRecorder(t *testing.T) {
	next := new(mocks.MockBackend)
	next.On("QueryDescendantsByClassName", mock.Anything, org, valueobjects.BfGid("a"), "BfDoc", 2).
		Return([]entities.Item{{}}, nil)

	b := NewInstrumentedBackend(next, "memory", nil, nil, nil)
	items, err := b.QueryDescendantsByClassName(context.Background(), org, "a", "BfDoc", 2)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func testBreaker() BreakerConfig {
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 2
	cfg.FailureThreshold = 0.5
	cfg.Timeout = time.Hour
	return cfg
}

func TestResilientBackendTripsOnFailures(t *testing.T) {
	ctx := context.Background()
	next := new(mocks.MockBackend)
	dbErr := pkgerrors.NewDatabaseError("GetItemByBfGid", errors.New("timeout"))
	next.On("GetItemByBfGid", mock.Anything, valueobjects.BfGid("a")).Return(nil, dbErr).Twice()

	b := NewResilientBackend(next, testBreaker(), zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		_, err := b.GetItemByBfGid(ctx, "a")
		require.ErrorIs(t, err, dbErr)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.GetItemByBfGid(ctx, "a")
	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.ErrorTypeUnavailable, appErr.Type)
	assert.Equal(t, pkgerrors.CodeCircuitOpen, appErr.Code)
	next.AssertNumberOfCalls(t, "GetItemByBfGid", 2)
}

func TestResilientBackendIgnoresDomainErrors(t *testing.T) {
	ctx := context.Background()
	next := new(mocks.MockBackend)
	next.On("GetItem", mock.Anything, org, mock.Anything).Return(nil, pkgerrors.NewNodeNotFoundError("x"))
	next.On("PutItem", mock.Anything, mock.Anything).Return(pkgerrors.NewConflictError("exists"))
	next.On("DeleteItem", mock.Anything, org, mock.Anything).Return(pkgerrors.NewValidationError("bad gid"))

	b := NewResilientBackend(next, testBreaker(), nil)
	for i := 0; i < 5; i++ {
		_, err := b.GetItem(ctx, org, "x")
		assert.True(t, pkgerrors.IsNotFound(err))
		assert.True(t, pkgerrors.IsConflict(b.PutItem(ctx, entities.Item{})))
		assert.True(t, pkgerrors.IsValidation(b.DeleteItem(ctx, org, "x")))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestResilientBackendPassesResults(t *testing.T) {
	ctx := context.Background()
	next := new(mocks.MockBackend)
	items := []entities.Item{{Metadata: entities.Metadata{BfGid: "a"}}}
	next.On("GetItemsByBfGid", mock.Anything, []valueobjects.BfGid{"a"}).Return(items, nil)
	next.On("Initialize", mock.Anything).Return(nil)

	b := NewResilientBackend(next, DefaultBreakerConfig("test"), nil)
	require.NoError(t, b.Initialize(ctx))
	got, err := b.GetItemsByBfGid(ctx, []valueobjects.BfGid{"a"})
	require.NoError(t, err)
	assert.Equal(t, items, got)
}
