package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	cbotel "github.com/Strob0t/clickbridge/internal/adapter/otel"
	"github.com/Strob0t/clickbridge/internal/domain/webhook"
	"github.com/Strob0t/clickbridge/internal/port/signalstore"
	"github.com/Strob0t/clickbridge/internal/port/subscriber"
)

// Webhook pipeline rejections. Verification failures wrap the
// webhook.Err* values.
var (
	ErrSignatureHeaderMissing = errors.New("missing required webhook header (X-Signature)")
	ErrWebhookNotConfigured   = errors.New("webhook secret not configured")
	ErrVerificationFailed     = errors.New("webhook verification failed")
)

// WebhookInput is one inbound webhook request.
type WebhookInput struct {
	Signature string
	Headers   map[string]string
	Body      []byte
}

// WebhookOutcome is the result of a webhook that passed every check.
type WebhookOutcome struct {
	EventType      string
	Supported      bool
	BlocksNotified int
}

// WebhookService verifies inbound webhooks and fans them out to subscribers.
type WebhookService struct {
	installationID string
	signals        signalstore.Store
	registry       subscriber.Registry
	deliverer      subscriber.Deliverer
	metrics        *cbotel.Metrics
}

// NewWebhookService creates a WebhookService.
func NewWebhookService(installationID string, signals signalstore.Store, registry subscriber.Registry, deliverer subscriber.Deliverer) *WebhookService {
	return &WebhookService{
		installationID: installationID,
		signals:        signals,
		registry:       registry,
		deliverer:      deliverer,
	}
}

// SetMetrics attaches metric instruments.
func (s *WebhookService) SetMetrics(m *cbotel.Metrics) {
	s.metrics = m
}

// Handle runs the checks in order and stops at the first failure:
// signature header, configured secret, HMAC, payload structure, event
// type. Supported events are delivered to every block declared for that
// type. Delivery failures are logged and do not fail the call.
func (s *WebhookService) Handle(ctx context.Context, in WebhookInput) (WebhookOutcome, error) {
	ctx, span := cbotel.StartWebhookSpan(ctx, s.installationID)
	defer span.End()
	s.metrics.WebhookReceived(ctx)

	if in.Signature == "" {
		s.metrics.WebhookRejected(ctx, "missing_signature")
		return WebhookOutcome{}, ErrSignatureHeaderMissing
	}

	signals, err := s.signals.Load(ctx, s.installationID)
	if err != nil {
		return WebhookOutcome{}, fmt.Errorf("load signals: %w", err)
	}
	if signals.WebhookSecret == "" {
		s.metrics.WebhookRejected(ctx, "not_configured")
		return WebhookOutcome{}, ErrWebhookNotConfigured
	}

	if err := webhook.Verify(in.Signature, in.Body, signals.WebhookSecret); err != nil {
		s.metrics.WebhookRejected(ctx, "signature")
		slog.Warn("webhook signature rejected", "installation_id", s.installationID, "error", err)
		return WebhookOutcome{}, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	payload, err := webhook.ParsePayload(in.Body)
	if err != nil {
		s.metrics.WebhookRejected(ctx, "payload")
		return WebhookOutcome{}, err
	}

	slog.Info("webhook event received", "installation_id", s.installationID, "event", payload.Event)

	if !webhook.IsSupported(payload.Event) {
		s.metrics.WebhookIgnored(ctx, payload.Event)
		return WebhookOutcome{EventType: payload.Event}, nil
	}

	blocks, err := s.registry.ListByEventType(ctx, s.installationID, payload.Event)
	if err != nil {
		return WebhookOutcome{}, fmt.Errorf("list subscribers: %w", err)
	}

	out := WebhookOutcome{EventType: payload.Event, Supported: true, BlocksNotified: len(blocks)}
	if len(blocks) == 0 {
		return out, nil
	}

	ids := make([]string, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}
	delivery := webhook.Delivery{Headers: in.Headers, Payload: json.RawMessage(in.Body)}

	dctx, dspan := cbotel.StartDeliverySpan(ctx, payload.Event, len(ids))
	err = s.deliverer.Deliver(dctx, payload.Event, ids, delivery)
	dspan.End()
	if err != nil {
		s.metrics.DeliveryFailed(ctx, payload.Event)
		slog.Error("failed to deliver webhook to blocks",
			"installation_id", s.installationID, "event", payload.Event, "blocks", len(ids), "error", err)
		return out, nil
	}
	s.metrics.Delivered(ctx, payload.Event, len(ids))
	return out, nil
}
