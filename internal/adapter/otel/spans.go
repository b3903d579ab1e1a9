package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "clickbridge"

// StartSyncSpan starts a span for a lifecycle sync.
func StartSyncSpan(ctx context.Context, installationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "installation.sync",
		trace.WithAttributes(attribute.String("installation.id", installationID)),
	)
}

// StartWebhookSpan starts a span for one inbound webhook.
func StartWebhookSpan(ctx context.Context, installationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "webhook.handle",
		trace.WithAttributes(attribute.String("installation.id", installationID)),
	)
}

// StartDeliverySpan starts a span for fan-out to subscriber blocks.
func StartDeliverySpan(ctx context.Context, eventType string, blocks int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "webhook.deliver",
		trace.WithAttributes(
			attribute.String("webhook.event", eventType),
			attribute.Int("delivery.blocks", blocks),
		),
	)
}
