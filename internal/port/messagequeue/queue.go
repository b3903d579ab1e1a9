// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a durable handler for messages on the given subject.
	// The returned function stops the subscription.
	Subscribe(ctx context.Context, durable, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject roots. Deliveries go to {prefix}.{eventType}; block emissions
// go to blocks.{blockID}.events. Dead letters get their own root so no
// consumer filter on the other roots can pick them up again.
const (
	SubjectBlocks      = "blocks"
	SubjectBlockEvents = "events"
	SubjectDeadLetter  = "dlq"
)

// DeliverySubject returns the subject for a batch of eventType deliveries.
func DeliverySubject(prefix, eventType string) string {
	return prefix + "." + eventType
}

// BlockSubject returns the subject a block emits its projected events on.
func BlockSubject(blockID string) string {
	return SubjectBlocks + "." + blockID + "." + SubjectBlockEvents
}

// DeadLetterSubject returns where a message that failed on subject is parked.
func DeadLetterSubject(subject string) string {
	return SubjectDeadLetter + "." + subject
}
