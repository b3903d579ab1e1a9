package installation

import (
	"encoding/json"
	"log/slog"
)

// SignalName identifies one persisted installation signal.
type SignalName string

const (
	SignalAccessToken   SignalName = "accessToken"
	SignalClientSecret  SignalName = "clientSecret"
	SignalTeamID        SignalName = "teamId"
	SignalWebhookID     SignalName = "webhookId"
	SignalWebhookSecret SignalName = "webhookSecret"
)

// AllSignals lists every signal in a stable order.
var AllSignals = []SignalName{
	SignalAccessToken,
	SignalClientSecret,
	SignalTeamID,
	SignalWebhookID,
	SignalWebhookSecret,
}

// Sensitive reports whether the signal holds a secret. Sensitive values are
// encrypted at rest and never logged or returned over HTTP.
func (n SignalName) Sensitive() bool {
	return n != SignalTeamID
}

// Signals is the persisted installation record.
type Signals struct {
	AccessToken   string
	ClientSecret  string
	TeamID        string
	WebhookID     string
	WebhookSecret string
}

// Get returns the value of a named signal.
func (s Signals) Get(n SignalName) string {
	switch n {
	case SignalAccessToken:
		return s.AccessToken
	case SignalClientSecret:
		return s.ClientSecret
	case SignalTeamID:
		return s.TeamID
	case SignalWebhookID:
		return s.WebhookID
	case SignalWebhookSecret:
		return s.WebhookSecret
	}
	return ""
}

func (s *Signals) set(n SignalName, v string) {
	switch n {
	case SignalAccessToken:
		s.AccessToken = v
	case SignalClientSecret:
		s.ClientSecret = v
	case SignalTeamID:
		s.TeamID = v
	case SignalWebhookID:
		s.WebhookID = v
	case SignalWebhookSecret:
		s.WebhookSecret = v
	}
}

// Ready reports whether all fields required by the ready status are present.
func (s Signals) Ready() bool {
	return s.AccessToken != "" && s.TeamID != "" && s.WebhookID != "" && s.WebhookSecret != ""
}

// LogValue hides sensitive signals from structured logs.
func (s Signals) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("hasAccessToken", s.AccessToken != ""),
		slog.Bool("hasClientSecret", s.ClientSecret != ""),
		slog.String("teamId", s.TeamID),
		slog.Bool("hasWebhookId", s.WebhookID != ""),
		slog.Bool("hasWebhookSecret", s.WebhookSecret != ""),
	)
}

// SignalUpdates is a set of signal writes applied as one unit.
// A missing key leaves the signal untouched, a nil value clears it.
type SignalUpdates map[SignalName]*string

// Set records a write of v to n.
func (u SignalUpdates) Set(n SignalName, v string) SignalUpdates {
	u[n] = &v
	return u
}

// Clear records that n must be cleared.
func (u SignalUpdates) Clear(n SignalName) SignalUpdates {
	u[n] = nil
	return u
}

// Apply returns a copy of s with the updates applied.
func (u SignalUpdates) Apply(s Signals) Signals {
	for n, v := range u {
		if v == nil {
			s.set(n, "")
			continue
		}
		s.set(n, *v)
	}
	return s
}

// Names returns the updated signal names in stable order.
func (u SignalUpdates) Names() []string {
	names := make([]string, 0, len(u))
	for _, n := range AllSignals {
		if _, ok := u[n]; ok {
			names = append(names, string(n))
		}
	}
	return names
}

// LogValue lists only which signals change, never their values.
func (u SignalUpdates) LogValue() slog.Value {
	return slog.AnyValue(u.Names())
}

// Redacted returns a JSON-safe view of u with sensitive values masked.
func (u SignalUpdates) Redacted() map[string]any {
	out := make(map[string]any, len(u))
	for n, v := range u {
		switch {
		case v == nil:
			out[string(n)] = nil
		case n.Sensitive():
			out[string(n)] = "[set]"
		default:
			out[string(n)] = *v
		}
	}
	return out
}

// MarshalJSON masks sensitive values so an update can never be echoed verbatim.
func (u SignalUpdates) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Redacted())
}
