// Package service implements the connector use cases on top of ports: the
// installation lifecycle, the OAuth flow, webhook ingestion and delivery.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	cbotel "github.com/Strob0t/clickbridge/internal/adapter/otel"
	"github.com/Strob0t/clickbridge/internal/domain"
	"github.com/Strob0t/clickbridge/internal/domain/installation"
	"github.com/Strob0t/clickbridge/internal/domain/webhook"
	"github.com/Strob0t/clickbridge/internal/port/kvstore"
	"github.com/Strob0t/clickbridge/internal/port/promptstore"
	"github.com/Strob0t/clickbridge/internal/port/remoteapi"
	"github.com/Strob0t/clickbridge/internal/port/signalstore"
)

// InstallationConfig holds what the lifecycle needs from configuration.
type InstallationConfig struct {
	InstallationID string
	// StartURL is the authorization-start endpoint the prompt redirects to.
	StartURL string
	// WebhookEndpoint is the URL the remote system posts events to.
	WebhookEndpoint string
	// CheckExisting removes webhooks already registered for WebhookEndpoint
	// before creating a new one.
	CheckExisting bool
}

type stateHandler func(ctx context.Context, snap installation.Snapshot) (installation.SyncResult, error)

// InstallationService drives the installation lifecycle: every Sync
// classifies the installation and performs the action of that state.
type InstallationService struct {
	cfg          InstallationConfig
	clientSecret func() string
	signals      signalstore.Store
	prompts      promptstore.Store
	kv           kvstore.Store
	api          remoteapi.Client
	metrics      *cbotel.Metrics
	now          func() time.Time

	mu       sync.Mutex
	flight   singleflight.Group
	handlers map[installation.State]stateHandler
}

// NewInstallationService creates an InstallationService. clientSecret
// returns the currently configured OAuth client secret and is read on
// every sync so a rotated secret is picked up without a restart.
func NewInstallationService(
	cfg InstallationConfig,
	clientSecret func() string,
	signals signalstore.Store,
	prompts promptstore.Store,
	kv kvstore.Store,
	api remoteapi.Client,
) *InstallationService {
	s := &InstallationService{
		cfg:          cfg,
		clientSecret: clientSecret,
		signals:      signals,
		prompts:      prompts,
		kv:           kv,
		api:          api,
		now:          time.Now,
	}
	s.handlers = map[installation.State]stateHandler{
		installation.StateConfigChanged:     s.handleConfigChanged,
		installation.StateAwaitingUserAuth:  s.handleAwaitingUserAuth,
		installation.StateReady:             s.handleReady,
		installation.StateNeedsWebhookSetup: s.handleWebhookSetup,
		installation.StateNeedsAuth:         s.handleNeedsAuth,
	}
	return s
}

// SetMetrics attaches metric instruments.
func (s *InstallationService) SetMetrics(m *cbotel.Metrics) {
	s.metrics = m
}

// Sync classifies the installation, performs the action of its state and
// commits the resulting signal updates and status. Concurrent calls share
// one execution. A returned error means the state could not be read or the
// result could not be committed; remote API failures are reported as a
// failed status instead.
func (s *InstallationService) Sync(ctx context.Context) (installation.SyncResult, error) {
	v, err, shared := s.flight.Do(s.cfg.InstallationID, func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.sync(ctx)
	})
	if shared {
		slog.Debug("sync shared with concurrent caller", "installation_id", s.cfg.InstallationID)
	}
	if err != nil {
		return installation.SyncResult{}, err
	}
	return v.(installation.SyncResult), nil
}

func (s *InstallationService) sync(ctx context.Context) (installation.SyncResult, error) {
	ctx, span := cbotel.StartSyncSpan(ctx, s.cfg.InstallationID)
	defer span.End()
	start := s.now()

	drained, err := s.drained(ctx)
	if err != nil {
		span.RecordError(err)
		return installation.SyncResult{}, err
	}
	if drained {
		slog.Debug("installation drained, skipping sync", "installation_id", s.cfg.InstallationID)
		return installation.SyncResult{}, nil
	}

	snap, state, err := s.classify(ctx)
	if err != nil {
		span.RecordError(err)
		return installation.SyncResult{}, err
	}

	handler, ok := s.handlers[state]
	var result installation.SyncResult
	if ok {
		result, err = handler(ctx, snap)
		if err != nil {
			span.RecordError(err)
			return installation.SyncResult{}, fmt.Errorf("sync %s: %w", state, err)
		}
	} else {
		result = installation.SyncResult{
			NewStatus:               installation.StatusFailed,
			CustomStatusDescription: installation.DescUnknownError,
		}
	}

	if err := s.commit(ctx, result); err != nil {
		span.RecordError(err)
		return installation.SyncResult{}, err
	}

	s.metrics.SyncFinished(ctx, string(state), string(result.NewStatus), s.now().Sub(start))
	slog.Info("installation synced",
		"installation_id", s.cfg.InstallationID,
		"installation_state", string(state),
		"status", string(result.NewStatus),
		"signal_updates", result.SignalUpdates,
	)
	return result, nil
}

// drained reports whether Drain tore the installation down. Drained is
// terminal: nothing may re-provision or overwrite the record.
func (s *InstallationService) drained(ctx context.Context) (bool, error) {
	rec, err := s.signals.Status(ctx, s.cfg.InstallationID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load status: %w", err)
	}
	return rec.Status == installation.StatusDrained, nil
}

// classify assembles a snapshot and runs the classifier. Transient storage
// is only consulted when the signals alone do not settle the state.
func (s *InstallationService) classify(ctx context.Context) (installation.Snapshot, installation.State, error) {
	signals, err := s.signals.Load(ctx, s.cfg.InstallationID)
	if err != nil {
		return installation.Snapshot{}, "", fmt.Errorf("load signals: %w", err)
	}
	promptExists, err := s.prompts.Exists(ctx, s.cfg.InstallationID, installation.AuthPromptKey)
	if err != nil {
		return installation.Snapshot{}, "", fmt.Errorf("check prompt: %w", err)
	}

	snap := installation.Snapshot{
		ClientSecret: s.clientSecret(),
		Signals:      signals,
		PromptExists: promptExists,
	}
	state := installation.Classify(snap)
	if state != installation.StateNeedsAuth {
		return snap, state, nil
	}

	token, found, err := s.kv.Get(ctx, installation.KeyAccessToken)
	if err != nil {
		return installation.Snapshot{}, "", fmt.Errorf("load pending token: %w", err)
	}
	if found {
		snap.PendingAccessToken = string(token)
		state = installation.Classify(snap)
	}
	return snap, state, nil
}

// commit applies a non-empty result. Status is only written when it changed.
func (s *InstallationService) commit(ctx context.Context, result installation.SyncResult) error {
	if result.Empty() {
		return nil
	}
	if len(result.SignalUpdates) > 0 {
		if err := s.signals.Apply(ctx, s.cfg.InstallationID, result.SignalUpdates); err != nil {
			return fmt.Errorf("apply signal updates: %w", err)
		}
	}
	if result.NewStatus == "" {
		return nil
	}

	rec := installation.StatusRecord{Status: result.NewStatus, Description: result.CustomStatusDescription}
	prev, err := s.signals.Status(ctx, s.cfg.InstallationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load status: %w", err)
	}
	if err == nil && prev == rec {
		return nil
	}
	if err := s.signals.SaveStatus(ctx, s.cfg.InstallationID, rec); err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}

// handleConfigChanged resets authorization after a client secret rotation.
// clientSecret, webhookId and webhookSecret are cleared along with the token
// so the next sync does not classify as changed again, can reach webhook
// setup, and the old registration stops authenticating deliveries.
func (s *InstallationService) handleConfigChanged(ctx context.Context, snap installation.Snapshot) (installation.SyncResult, error) {
	slog.Warn("client secret changed, resetting authorization", "installation_id", s.cfg.InstallationID)

	if err := s.prompts.Delete(ctx, s.cfg.InstallationID, installation.AuthPromptKey); err != nil {
		return installation.SyncResult{}, fmt.Errorf("delete prompt: %w", err)
	}
	if err := s.kv.Delete(ctx, installation.TransientKeys...); err != nil {
		return installation.SyncResult{}, fmt.Errorf("clear transient state: %w", err)
	}

	result, err := s.handleNeedsAuth(ctx, snap)
	if err != nil {
		return installation.SyncResult{}, err
	}
	result.SignalUpdates.
		Clear(installation.SignalClientSecret).
		Clear(installation.SignalWebhookID).
		Clear(installation.SignalWebhookSecret)
	return result, nil
}

func (s *InstallationService) handleAwaitingUserAuth(context.Context, installation.Snapshot) (installation.SyncResult, error) {
	return installation.SyncResult{}, nil
}

func (s *InstallationService) handleReady(context.Context, installation.Snapshot) (installation.SyncResult, error) {
	return installation.SyncResult{NewStatus: installation.StatusReady}, nil
}

func (s *InstallationService) handleNeedsAuth(ctx context.Context, _ installation.Snapshot) (installation.SyncResult, error) {
	p := installation.AuthorizationPrompt(s.cfg.StartURL)
	p.CreatedAt = s.now().UTC()
	if err := s.prompts.Create(ctx, s.cfg.InstallationID, p); err != nil {
		return installation.SyncResult{}, fmt.Errorf("create prompt: %w", err)
	}

	return installation.SyncResult{
		NewStatus:               installation.StatusInProgress,
		CustomStatusDescription: installation.DescProceedWithAuth,
		SignalUpdates:           installation.SignalUpdates{}.Clear(installation.SignalAccessToken),
	}, nil
}

// handleWebhookSetup provisions the webhook on the single authorized team
// and publishes all signals in one update.
func (s *InstallationService) handleWebhookSetup(ctx context.Context, snap installation.Snapshot) (installation.SyncResult, error) {
	token := snap.AccessToken()

	teams, err := s.api.ListTeams(ctx, token)
	if err != nil {
		return s.webhookFailed("list teams", err), nil
	}
	if len(teams) != 1 {
		slog.Warn("unexpected number of authorized teams",
			"installation_id", s.cfg.InstallationID, "count", len(teams))
		return installation.SyncResult{
			NewStatus:               installation.StatusFailed,
			CustomStatusDescription: fmt.Sprintf("Unexpected number of authorized teams - %d.", len(teams)),
		}, nil
	}
	teamID := teams[0].ID

	if s.cfg.CheckExisting {
		if err := s.removeExisting(ctx, token, teamID); err != nil {
			return s.webhookFailed("remove existing webhooks", err), nil
		}
	}

	wh, err := s.api.CreateWebhook(ctx, token, teamID, s.cfg.WebhookEndpoint, webhook.Events())
	if err != nil {
		return s.webhookFailed("create webhook", err), nil
	}

	// The webhook exists now; losing its secret would be worse than a
	// leftover token, which the bucket TTL expires anyway.
	if err := s.kv.Delete(ctx, installation.KeyOAuthComplete, installation.KeyAccessToken); err != nil {
		slog.Warn("clear transient state after provisioning", "installation_id", s.cfg.InstallationID, "error", err)
	}

	slog.Info("webhook provisioned",
		"installation_id", s.cfg.InstallationID, "team_id", teamID, "webhook_id", wh.ID)

	return installation.SyncResult{
		NewStatus: installation.StatusReady,
		SignalUpdates: installation.SignalUpdates{}.
			Set(installation.SignalAccessToken, token).
			Set(installation.SignalClientSecret, snap.ClientSecret).
			Set(installation.SignalTeamID, teamID).
			Set(installation.SignalWebhookID, wh.ID).
			Set(installation.SignalWebhookSecret, wh.Secret),
	}, nil
}

// removeExisting deletes webhooks already registered for our endpoint. The
// remote only reveals a signing secret at creation, so a registration we
// hold no secret for is useless.
func (s *InstallationService) removeExisting(ctx context.Context, token, teamID string) error {
	hooks, err := s.api.ListWebhooks(ctx, token, teamID)
	if err != nil {
		return err
	}
	for _, h := range hooks {
		if h.Endpoint != s.cfg.WebhookEndpoint {
			continue
		}
		slog.Info("removing stale webhook", "installation_id", s.cfg.InstallationID, "webhook_id", h.ID)
		if err := s.api.DeleteWebhook(ctx, token, h.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *InstallationService) webhookFailed(step string, err error) installation.SyncResult {
	slog.Error("webhook setup failed", "installation_id", s.cfg.InstallationID, "step", step, "error", err)
	return installation.SyncResult{
		NewStatus:               installation.StatusFailed,
		CustomStatusDescription: installation.DescWebhookFailed,
	}
}

// Drain tears the installation down: the drained status stops later syncs,
// the remote webhook is deleted, and the webhook signals and authorization
// prompt are cleared. Every step is best effort; Drain always reports
// drained.
func (s *InstallationService) Drain(ctx context.Context) installation.SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.cfg.InstallationID
	if err := s.signals.SaveStatus(ctx, id, installation.StatusRecord{Status: installation.StatusDrained}); err != nil {
		slog.Debug("drain: save status", "installation_id", id, "error", err)
	}

	signals, err := s.signals.Load(ctx, id)
	if err != nil {
		slog.Debug("drain: load signals", "installation_id", id, "error", err)
	} else if signals.WebhookID != "" && signals.AccessToken != "" {
		if err := s.api.DeleteWebhook(ctx, signals.AccessToken, signals.WebhookID); err != nil {
			slog.Debug("drain: delete webhook", "installation_id", id, "error", err)
		}
	}

	teardown := installation.SignalUpdates{}.
		Clear(installation.SignalWebhookID).
		Clear(installation.SignalWebhookSecret)
	if err := s.signals.Apply(ctx, id, teardown); err != nil {
		slog.Debug("drain: clear webhook signals", "installation_id", id, "error", err)
	}
	if err := s.prompts.Delete(ctx, id, installation.AuthPromptKey); err != nil {
		slog.Debug("drain: delete prompt", "installation_id", id, "error", err)
	}
	return installation.SyncResult{NewStatus: installation.StatusDrained}
}

// StatusReport is what operators see: the last sync outcome, the current
// signals and any prompt still waiting for the user.
type StatusReport struct {
	Record  installation.StatusRecord
	Signals installation.Signals
	Prompts []installation.Prompt
}

// Status returns the last persisted sync outcome, the current signals and
// the outstanding prompts. The record is zero until the first sync reports.
func (s *InstallationService) Status(ctx context.Context) (StatusReport, error) {
	signals, err := s.signals.Load(ctx, s.cfg.InstallationID)
	if err != nil {
		return StatusReport{}, fmt.Errorf("load signals: %w", err)
	}
	rec, err := s.signals.Status(ctx, s.cfg.InstallationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return StatusReport{}, fmt.Errorf("load status: %w", err)
	}
	prompts, err := s.prompts.List(ctx, s.cfg.InstallationID)
	if err != nil {
		return StatusReport{}, fmt.Errorf("list prompts: %w", err)
	}
	return StatusReport{Record: rec, Signals: signals, Prompts: prompts}, nil
}
