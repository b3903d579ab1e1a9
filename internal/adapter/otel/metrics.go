package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "clickbridge"

// Metrics holds all clickbridge metric instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	WebhooksReceived metric.Int64Counter
	WebhooksRejected metric.Int64Counter
	WebhooksIgnored  metric.Int64Counter
	BlocksNotified   metric.Int64Counter
	DeliveryFailures metric.Int64Counter
	Syncs            metric.Int64Counter
	SyncDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.WebhooksReceived, err = meter.Int64Counter("clickbridge.webhooks.received",
		metric.WithDescription("Number of webhook POSTs received"))
	if err != nil {
		return nil, err
	}

	m.WebhooksRejected, err = meter.Int64Counter("clickbridge.webhooks.rejected",
		metric.WithDescription("Number of webhooks rejected, by reason"))
	if err != nil {
		return nil, err
	}

	m.WebhooksIgnored, err = meter.Int64Counter("clickbridge.webhooks.ignored",
		metric.WithDescription("Number of webhooks with an unsupported event type"))
	if err != nil {
		return nil, err
	}

	m.BlocksNotified, err = meter.Int64Counter("clickbridge.blocks.notified",
		metric.WithDescription("Number of subscriber blocks an event was delivered to"))
	if err != nil {
		return nil, err
	}

	m.DeliveryFailures, err = meter.Int64Counter("clickbridge.delivery.failures",
		metric.WithDescription("Number of fan-out deliveries that failed"))
	if err != nil {
		return nil, err
	}

	m.Syncs, err = meter.Int64Counter("clickbridge.syncs",
		metric.WithDescription("Number of lifecycle syncs, by state and resulting status"))
	if err != nil {
		return nil, err
	}

	m.SyncDuration, err = meter.Float64Histogram("clickbridge.sync.duration_seconds",
		metric.WithDescription("Lifecycle sync duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// WebhookReceived counts an inbound webhook.
func (m *Metrics) WebhookReceived(ctx context.Context) {
	if m == nil {
		return
	}
	m.WebhooksReceived.Add(ctx, 1)
}

// WebhookRejected counts a webhook that failed a pipeline check.
func (m *Metrics) WebhookRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.WebhooksRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// WebhookIgnored counts a webhook whose event type is not supported.
func (m *Metrics) WebhookIgnored(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.WebhooksIgnored.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// Delivered counts the blocks an event fanned out to.
func (m *Metrics) Delivered(ctx context.Context, event string, blocks int) {
	if m == nil || blocks == 0 {
		return
	}
	m.BlocksNotified.Add(ctx, int64(blocks), metric.WithAttributes(attribute.String("event", event)))
}

// DeliveryFailed counts a failed fan-out.
func (m *Metrics) DeliveryFailed(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.DeliveryFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// SyncFinished records one sync outcome.
func (m *Metrics) SyncFinished(ctx context.Context, state, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("installation_state", state),
		attribute.String("status", status),
	)
	m.Syncs.Add(ctx, 1, attrs)
	m.SyncDuration.Record(ctx, d.Seconds(), attrs)
}
