package ports

import (
	"context"
	"time"

	"github.com/kondrei/TalkieMartin-BE/domain/events"
)

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Metrics records coordinator outcomes
type Metrics interface {
	// RecordOperation records one coordinator call and its error type, empty on success
	RecordOperation(ctx context.Context, operation, outcome string, duration time.Duration)

	// RecordObjects counts objects uploaded or deleted
	RecordObjects(ctx context.Context, action string, count int)
}
