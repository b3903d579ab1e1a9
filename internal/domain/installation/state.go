// Package installation models the lifecycle of one configured connector
// instance: its persisted signals, the state classifier, and the result a
// sync reports back to the host.
package installation

// State is the classified position of an installation in its lifecycle.
type State string

// States in the order Classify evaluates them. The first match wins.
const (
	StateConfigChanged     State = "config_changed"
	StateAwaitingUserAuth  State = "awaiting_user_auth"
	StateReady             State = "ready"
	StateNeedsWebhookSetup State = "needs_webhook_setup"
	StateNeedsAuth         State = "needs_auth"
)

// Snapshot is everything the classifier looks at. It is assembled by the
// caller from configuration, signals, prompts and transient storage.
type Snapshot struct {
	// ClientSecret is the currently configured OAuth client secret.
	ClientSecret string
	Signals      Signals
	PromptExists bool
	// PendingAccessToken is the token left in transient storage by a
	// completed OAuth callback, if any.
	PendingAccessToken string
}

// Classify deduces exactly one state from s. It has no side effects.
func Classify(s Snapshot) State {
	// A rotated secret restarts authorization regardless of anything else.
	if s.Signals.ClientSecret != "" && s.Signals.ClientSecret != s.ClientSecret {
		return StateConfigChanged
	}
	if s.PromptExists {
		return StateAwaitingUserAuth
	}
	if s.Signals.AccessToken != "" && s.Signals.WebhookID != "" {
		return StateReady
	}
	if s.AccessToken() != "" && s.Signals.WebhookID == "" {
		return StateNeedsWebhookSetup
	}
	return StateNeedsAuth
}

// AccessToken returns the signal token, falling back to the pending one.
func (s Snapshot) AccessToken() string {
	if s.Signals.AccessToken != "" {
		return s.Signals.AccessToken
	}
	return s.PendingAccessToken
}
