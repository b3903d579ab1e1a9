// Package remoteapi defines the port for the task-management API the
// connector provisions webhooks against.
package remoteapi

import "context"

// Team is a workspace reachable with an access token.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Webhook is a registered webhook. Secret is only returned on creation.
type Webhook struct {
	ID       string   `json:"id"`
	Endpoint string   `json:"endpoint"`
	Events   []string `json:"events,omitempty"`
	Secret   string   `json:"secret,omitempty"` //nolint:gosec // G117: remote field name
}

// Token is the result of an authorization code exchange.
type Token struct {
	AccessToken string `json:"access_token"` //nolint:gosec // G117: remote field name
	TokenType   string `json:"token_type,omitempty"`
}

// Client is the port interface for the remote API.
type Client interface {
	// ListTeams returns the workspaces the token is authorized for.
	ListTeams(ctx context.Context, accessToken string) ([]Team, error)

	// CreateWebhook registers endpoint for events on the team.
	CreateWebhook(ctx context.Context, accessToken, teamID, endpoint string, events []string) (Webhook, error)

	// ListWebhooks returns the webhooks registered on the team.
	ListWebhooks(ctx context.Context, accessToken, teamID string) ([]Webhook, error)

	// DeleteWebhook removes a webhook by id.
	DeleteWebhook(ctx context.Context, accessToken, webhookID string) error

	// ExchangeCode trades an OAuth authorization code for an access token.
	// The call is unauthenticated.
	ExchangeCode(ctx context.Context, clientID, clientSecret, code string) (Token, error)
}
