// Package mocks provides testify mocks of the application ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	"bfdb/domain/events"
)

// MockBackend is a testify mock of ports.Backend
type MockBackend struct {
	mock.Mock
}

var _ ports.Backend = (*MockBackend)(nil)

func (m *MockBackend) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) GetItem(ctx context.Context, oid, gid valueobjects.BfGid) (*entities.Item, error) {
	args := m.Called(ctx, oid, gid)
	item, _ := args.Get(0).(*entities.Item)
	return item, args.Error(1)
}

func (m *MockBackend) GetItemByBfGid(ctx context.Context, gid valueobjects.BfGid) (*entities.Item, error) {
	args := m.Called(ctx, gid)
	item, _ := args.Get(0).(*entities.Item)
	return item, args.Error(1)
}

func (m *MockBackend) GetItemsByBfGid(ctx context.Context, gids []valueobjects.BfGid) ([]entities.Item, error) {
	args := m.Called(ctx, gids)
	items, _ := args.Get(0).([]entities.Item)
	return items, args.Error(1)
}

func (m *MockBackend) PutItem(ctx context.Context, item entities.Item) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockBackend) InsertItem(ctx context.Context, item entities.Item) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockBackend) DeleteItem(ctx context.Context, oid, gid valueobjects.BfGid) error {
	return m.Called(ctx, oid, gid).Error(0)
}

func (m *MockBackend) QueryItems(ctx context.Context, q ports.ItemQuery) ([]entities.Item, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]entities.Item)
	return items, args.Error(1)
}

func (m *MockBackend) QueryAncestorsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	args := m.Called(ctx, oid, gid, className, depth)
	items, _ := args.Get(0).([]entities.Item)
	return items, args.Error(1)
}

func (m *MockBackend) QueryDescendantsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	args := m.Called(ctx, oid, gid, className, depth)
	items, _ := args.Get(0).([]entities.Item)
	return items, args.Error(1)
}

// MockEventPublisher is a testify mock of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

var _ ports.EventPublisher = (*MockEventPublisher)(nil)

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	return m.Called(ctx, evts).Error(0)
}

// RecordingPublisher keeps every published event, for assertions on order
type RecordingPublisher struct {
	Events []events.DomainEvent
}

func (p *RecordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.Events = append(p.Events, event)
	return nil
}

func (p *RecordingPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	p.Events = append(p.Events, evts...)
	return nil
}

// Types returns the event types published so far
func (p *RecordingPublisher) Types() []string {
	out := make([]string, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.GetEventType()
	}
	return out
}
