package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bfdb/domain/events"
	"bfdb/tests/mocks"
)

type recorder struct {
	types []string
}

func (r *recorder) RecordEvent(e events.DomainEvent) {
	r.types = append(r.types, e.GetEventType())
}

func TestPublisherLogsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewPublisher(zap.New(core))

	ts := time.Now()
	require.NoError(t, p.PublishBatch(context.Background(), []events.DomainEvent{
		events.NewNodeCreated("n1", "org-1", "BfPerson", "p1", ts),
		events.NewEdgeDeleted("e1", "org-1", "n1", "n2", ts),
	}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "events", entries[0].LoggerName)
	assert.Equal(t, events.TypeNodeCreated, entries[0].ContextMap()["eventType"])
	assert.Equal(t, "e1", entries[1].ContextMap()["aggregateId"])
}

func TestCountingPublisher(t *testing.T) {
	ctx := context.Background()
	ts := time.Now()
	created := events.NewNodeCreated("n1", "org-1", "BfPerson", "p1", ts)
	deleted := events.NewNodeDeleted("n1", "org-1", "BfPerson", ts)

	next := new(mocks.MockEventPublisher)
	next.On("Publish", mock.Anything, created).Return(nil)
	next.On("Publish", mock.Anything, deleted).Return(errors.New("bus down"))
	next.On("PublishBatch", mock.Anything, mock.Anything).Return(nil)

	rec := &recorder{}
	p := NewCountingPublisher(next, rec)

	require.NoError(t, p.Publish(ctx, created))
	assert.Error(t, p.Publish(ctx, deleted))
	require.NoError(t, p.PublishBatch(ctx, []events.DomainEvent{created, created}))

	assert.Equal(t, []string{events.TypeNodeCreated, events.TypeNodeCreated, events.TypeNodeCreated}, rec.types)
}
