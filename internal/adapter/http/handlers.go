package http

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/clickbridge/internal/domain/installation"
	"github.com/Strob0t/clickbridge/internal/domain/webhook"
	"github.com/Strob0t/clickbridge/internal/logger"
	"github.com/Strob0t/clickbridge/internal/service"
)

// HealthCheck reports whether one backing service is usable.
type HealthCheck func(ctx context.Context) error

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	InstallationID string
	Installation   *service.InstallationService
	OAuth          *service.OAuthService
	Webhooks       *service.WebhookService
	// Checks are run by /healthz, keyed by the name reported.
	Checks map[string]HealthCheck
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

const pageInvalidState = "<h1>Error</h1><p>Invalid state parameter. Please try again.</p>"

// AuthStart handles GET /auth/start.
func (h *Handlers) AuthStart(w http.ResponseWriter, r *http.Request) {
	target, err := h.OAuth.Start(r.Context())
	if err != nil {
		slog.Error("failed to start authorization", "installation_id", h.InstallationID, "error", err)
		writeHTML(w, http.StatusInternalServerError,
			"<h1>Error</h1><p>Could not start authorization. Please try again.</p>")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// AuthCallback handles GET /auth/callback.
func (h *Handlers) AuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dest, err := h.OAuth.Complete(r.Context(), q.Get("code"), q.Get("state"))
	switch {
	case errors.Is(err, service.ErrStateMismatch):
		slog.Warn("oauth callback rejected", "installation_id", h.InstallationID, "reason", "state mismatch")
		writeHTML(w, http.StatusBadRequest, pageInvalidState)
	case err != nil:
		slog.Error("oauth token exchange failed", "installation_id", h.InstallationID, "error", err)
		writeHTML(w, http.StatusBadRequest, fmt.Sprintf(`<h1>Authorization Failed</h1>
<p><strong>Error:</strong> %s</p>
<p><strong>Details:</strong> Check server logs for more information</p>
<p>Please try the authorization process again.</p>`, html.EscapeString(err.Error())))
	default:
		http.Redirect(w, r, dest, http.StatusFound)
	}
}

// ---------------------------------------------------------------------------
// Webhook receiver
// ---------------------------------------------------------------------------

type webhookAck struct {
	Message        string `json:"message"`
	EventType      string `json:"eventType"`
	BlocksNotified *int   `json:"blocksNotified,omitempty"`
}

// ReceiveWebhook handles POST /.
func (h *Handlers) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	out, err := h.Webhooks.Handle(r.Context(), service.WebhookInput{
		Signature: r.Header.Get(webhook.SignatureHeader),
		Headers:   flattenHeaders(r.Header),
		Body:      body,
	})
	if err != nil {
		writeWebhookError(w, r, err)
		return
	}

	if !out.Supported {
		writeJSON(w, http.StatusOK, webhookAck{Message: "Event type not supported", EventType: out.EventType})
		return
	}
	n := out.BlocksNotified
	writeJSON(w, http.StatusOK, webhookAck{Message: "ok", EventType: out.EventType, BlocksNotified: &n})
}

func writeWebhookError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrSignatureHeaderMissing):
		writeError(w, http.StatusBadRequest, "Missing required webhook header (X-Signature)")
	case errors.Is(err, service.ErrWebhookNotConfigured):
		writeError(w, http.StatusBadRequest, "Webhook secret not configured - please sync the app first")
	case errors.Is(err, service.ErrVerificationFailed):
		reason := strings.TrimPrefix(err.Error(), service.ErrVerificationFailed.Error()+": ")
		writeError(w, http.StatusUnauthorized, "Webhook verification failed: "+reason)
	case errors.Is(err, webhook.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, "Invalid webhook payload structure")
	default:
		slog.Error("webhook handling failed", "error", err, logger.RequestAttr(r.Context()))
		writeError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
	}
}

// flattenHeaders lower-cases header names and joins repeated values, which
// is the shape subscribers receive.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Sync handles POST /lifecycle/sync.
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.Installation.Sync(r.Context())
	if err != nil {
		writeInternalError(w, fmt.Errorf("sync: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Drain handles POST /lifecycle/drain. Teardown never fails.
func (h *Handlers) Drain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Installation.Drain(r.Context()))
}

type statusResponse struct {
	InstallationID string              `json:"installationId"`
	Status         installation.Status `json:"status,omitempty"`
	Description    string              `json:"description,omitempty"`
	TeamID         string              `json:"teamId,omitempty"`
	Ready          bool                `json:"ready"`
	Signals        map[string]bool     `json:"signals"`
	Prompts        []promptResponse    `json:"prompts"`
}

type promptResponse struct {
	Key            string `json:"key"`
	Label          string `json:"label"`
	RedirectURL    string `json:"redirectUrl"`
	RedirectMethod string `json:"redirectMethod"`
}

// Status handles GET /lifecycle/status. Sensitive signals are reported by
// presence only. Outstanding prompts carry the URL the user has to visit.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	report, err := h.Installation.Status(r.Context())
	if err != nil {
		writeInternalError(w, fmt.Errorf("status: %w", err))
		return
	}

	present := make(map[string]bool, len(installation.AllSignals))
	for _, name := range installation.AllSignals {
		present[string(name)] = report.Signals.Get(name) != ""
	}
	prompts := make([]promptResponse, 0, len(report.Prompts))
	for _, p := range report.Prompts {
		prompts = append(prompts, promptResponse{
			Key:            p.Key,
			Label:          p.Label,
			RedirectURL:    p.RedirectURL,
			RedirectMethod: p.RedirectMethod,
		})
	}
	writeJSON(w, http.StatusOK, statusResponse{
		InstallationID: h.InstallationID,
		Status:         report.Record.Status,
		Description:    report.Record.Description,
		TeamID:         report.Signals.TeamID,
		Ready:          report.Signals.Ready(),
		Signals:        present,
		Prompts:        prompts,
	})
}

const healthTimeout = 2 * time.Second

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /healthz. Any failing check answers 503; failures are
// logged, never echoed.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.Checks))}
	code := http.StatusOK
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			slog.Warn("health check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}
