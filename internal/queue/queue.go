// Package queue publishes report batch events to RabbitMQ.
package queue

import "context"

const (
	// ExchangeName is the durable topic exchange batch events are published to.
	ExchangeName = "report-dispatch.events"
	// AuditQueueName collects every batch event for later inspection.
	AuditQueueName = "report-dispatch.batches"

	RoutingKeyBatchCompleted = "report.batch.completed"
	RoutingKeyBatchPartial   = "report.batch.partial"
	RoutingKeyBatchFailed    = "report.batch.failed"

	auditBindingKey = "report.batch.#"
)

// Publisher publishes batch events.
type Publisher interface {
	Publish(ctx context.Context, event BatchEvent) error
	Close() error
}
