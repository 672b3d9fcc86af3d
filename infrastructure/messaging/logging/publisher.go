// Package logging writes domain events to the application log. It stands
// in for EventBridge on local runs and in the CLI.
package logging

import (
	"context"

	"go.uber.org/zap"

	"bfdb/application/ports"
	"bfdb/domain/events"
)

// Publisher logs each event at info level
type Publisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger.Named("events")}
}

func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateId", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
		zap.Any("event", event),
	)
	return nil
}

func (p *Publisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for _, e := range evts {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// EventRecorder is notified of each event that was published successfully
type EventRecorder interface {
	RecordEvent(event events.DomainEvent)
}

// CountingPublisher forwards to next and reports delivered events to a
// recorder, typically the metrics collector.
type CountingPublisher struct {
	next     ports.EventPublisher
	recorder EventRecorder
}

var _ ports.EventPublisher = (*CountingPublisher)(nil)

func NewCountingPublisher(next ports.EventPublisher, recorder EventRecorder) *CountingPublisher {
	return &CountingPublisher{next: next, recorder: recorder}
}

func (p *CountingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	if err := p.next.Publish(ctx, event); err != nil {
		return err
	}
	p.recorder.RecordEvent(event)
	return nil
}

func (p *CountingPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	if err := p.next.PublishBatch(ctx, evts); err != nil {
		return err
	}
	for _, e := range evts {
		p.recorder.RecordEvent(e)
	}
	return nil
}
