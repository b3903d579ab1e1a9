package installation

// Status is the installation status reported to the host.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
	StatusDrained    Status = "drained"
)

// Prompt constants for the authorization call-to-action.
const (
	AuthPromptKey   = "authorization"
	AuthPromptLabel = "Click to authorize with ClickUp"
)

// Human-readable status descriptions.
const (
	DescProceedWithAuth = "⚠️ Proceed with ClickUp authorization"
	DescWebhookFailed   = "Failed to create webhook. Please try syncing again."
	DescUnknownError    = "An unknown error occurred during setup."
)

// SyncResult is what one sync reports back. The zero value means
// "no change": status and signals are left untouched.
type SyncResult struct {
	NewStatus               Status        `json:"newStatus,omitempty"`
	CustomStatusDescription string        `json:"customStatusDescription,omitempty"`
	SignalUpdates           SignalUpdates `json:"signalUpdates,omitempty"`
}

// Empty reports whether the result requests no change at all.
func (r SyncResult) Empty() bool {
	return r.NewStatus == "" && r.CustomStatusDescription == "" && len(r.SignalUpdates) == 0
}

// StatusRecord is the last non-empty sync outcome persisted for an installation.
type StatusRecord struct {
	Status      Status `json:"status"`
	Description string `json:"description,omitempty"`
}
