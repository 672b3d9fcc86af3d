package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bfdb/domain/events"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector("bfdb")

	c.RecordHTTPRequest(http.MethodGet, "/api/v1/nodes/{id}", 404, 5*time.Millisecond)
	c.RecordBackendOperation("memory", "GetItem", "ok", time.Millisecond)
	c.RecordBackendOperation("memory", "GetItem", "error", time.Millisecond)
	c.RecordCacheHit()
	c.RecordCacheMiss()
	c.RecordCacheMiss()
	c.RecordEvent(events.NodeCreated{BaseEvent: events.BaseEvent{EventType: events.TypeNodeCreated}})
	c.RecordEvent(events.BaseEvent{EventType: events.TypeEdgeDeleted})
	c.RecordEvent(events.BaseEvent{EventType: "something.else"})
	c.Increment("query_count", "GetNodeQuery")
	c.StartTimer("query_duration", "GetNodeQuery").Stop()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/v1/nodes/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BackendOperations.WithLabelValues("memory", "GetItem", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NodesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EdgesDeleted))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.EdgesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BusEvents.WithLabelValues("query_count", "GetNodeQuery")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.BusDuration))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("bfdb")
	b := NewCollector("bfdb")
	a.RecordCacheHit()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheHits))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector("bfdb")
	c.RecordCacheHit()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bfdb_cache_hits_total 1")
}

func TestTraceFunctionWithoutSegment(t *testing.T) {
	boom := errors.New("boom")

	for _, tracer := range []*Tracer{nil, NewTracer("bfdb", false), NewTracer("bfdb", true)} {
		called := false
		err := tracer.TraceFunction(context.Background(), "GetItem", func(context.Context) error {
			called = true
			return boom
		})
		assert.True(t, called)
		assert.ErrorIs(t, err, boom)
	}
}
