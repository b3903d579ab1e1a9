package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Strob0t/clickbridge/internal/domain/webhook"
	"github.com/Strob0t/clickbridge/internal/port/messagequeue"
	"github.com/Strob0t/clickbridge/internal/port/subscriber"
)

var _ subscriber.Deliverer = (*QueueDeliverer)(nil)

// QueueDeliverer delivers webhook batches by publishing them to the queue
// on {prefix}.{eventType}.
type QueueDeliverer struct {
	installationID string
	prefix         string
	queue          messagequeue.Queue
}

// NewQueueDeliverer creates a QueueDeliverer.
func NewQueueDeliverer(installationID, prefix string, queue messagequeue.Queue) *QueueDeliverer {
	return &QueueDeliverer{installationID: installationID, prefix: prefix, queue: queue}
}

// Deliver publishes one batch addressed to blockIDs.
func (d *QueueDeliverer) Deliver(ctx context.Context, eventType string, blockIDs []string, del webhook.Delivery) error {
	data, err := json.Marshal(messagequeue.DeliveryBatchPayload{
		InstallationID: d.installationID,
		EventType:      eventType,
		BlockIDs:       blockIDs,
		Headers:        del.Headers,
		Payload:        del.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal delivery batch: %w", err)
	}
	if err := d.queue.Publish(ctx, messagequeue.DeliverySubject(d.prefix, eventType), data); err != nil {
		return fmt.Errorf("publish delivery batch: %w", err)
	}
	return nil
}

// SubscriptionService consumes delivery batches and emits, for every
// addressed block, the payload projected for the block's event type.
type SubscriptionService struct {
	prefix string
	queue  messagequeue.Queue
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(prefix string, queue messagequeue.Queue) *SubscriptionService {
	return &SubscriptionService{prefix: prefix, queue: queue}
}

// ConsumerName is the durable consumer of delivery batches.
const ConsumerName = "clickbridge-projection"

// Start subscribes to all delivery subjects. The returned func stops it.
func (s *SubscriptionService) Start(ctx context.Context) (func(), error) {
	return s.queue.Subscribe(ctx, ConsumerName, s.prefix+".>", s.HandleBatch)
}

// HandleBatch projects one batch. Malformed batches are rejected so the
// queue can dead-letter them.
func (s *SubscriptionService) HandleBatch(ctx context.Context, _ string, data []byte) error {
	batch, err := messagequeue.ValidateDelivery(data)
	if err != nil {
		return err
	}
	payload, err := webhook.ParsePayload(batch.Payload)
	if err != nil {
		return fmt.Errorf("delivery batch: %w", err)
	}

	proj, ok := webhook.Project(batch.EventType, payload)
	if !ok {
		slog.Debug("payload does not match batch event type",
			"event_type", batch.EventType, "event", payload.Event)
		return nil
	}
	event, err := json.Marshal(proj)
	if err != nil {
		return fmt.Errorf("marshal projection: %w", err)
	}

	for _, id := range batch.BlockIDs {
		msg, err := json.Marshal(messagequeue.BlockEventPayload{
			InstallationID: batch.InstallationID,
			BlockID:        id,
			Event:          event,
		})
		if err != nil {
			return fmt.Errorf("marshal block event: %w", err)
		}
		if err := s.queue.Publish(ctx, messagequeue.BlockSubject(id), msg); err != nil {
			return fmt.Errorf("emit to block %s: %w", id, err)
		}
	}
	return nil
}
