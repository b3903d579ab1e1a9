// Package subscriber defines the ports for the subscriber block registry and
// for delivering events to registered blocks.
package subscriber

import (
	"context"
	"time"

	"github.com/Strob0t/clickbridge/internal/domain/webhook"
)

// Block is one registered subscriber. EventType is its declared type and
// must match an inbound event name exactly.
type Block struct {
	ID        string    `json:"id"`
	EventType string    `json:"eventType"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry is queried by event type on every supported inbound event.
type Registry interface {
	ListByEventType(ctx context.Context, installationID, eventType string) ([]Block, error)
	List(ctx context.Context, installationID string) ([]Block, error)
	// Add returns domain.ErrConflict if the block id is already registered.
	Add(ctx context.Context, installationID string, b Block) error
	// Remove returns domain.ErrNotFound if the block id is unknown.
	Remove(ctx context.Context, installationID, blockID string) error
}

// Deliverer hands one event to a batch of blocks in a single call.
type Deliverer interface {
	Deliver(ctx context.Context, eventType string, blockIDs []string, d webhook.Delivery) error
}
