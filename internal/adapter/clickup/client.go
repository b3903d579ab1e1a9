// Package clickup provides an HTTP client for the ClickUp REST API.
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/clickbridge/internal/port/remoteapi"
	"github.com/Strob0t/clickbridge/internal/resilience"
)

// DefaultBaseURL is the public ClickUp API root.
const DefaultBaseURL = "https://api.clickup.com/api"

// ErrNoAccessToken is returned when a code exchange succeeds without a token.
var ErrNoAccessToken = errors.New("No access token in response") //nolint:staticcheck // ST1005: surfaced verbatim to the user

var _ remoteapi.Client = (*Client)(nil)

// Client talks to the ClickUp API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
	maxElapsed time.Duration
}

// NewClient creates a ClickUp client. A zero timeout falls back to 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls. Only
// retryable failures count against it.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b.CountOnly(IsRetryable)
}

// SetRetry bounds retries of idempotent reads. Zero disables retrying.
func (c *Client) SetRetry(maxElapsed time.Duration) {
	c.maxElapsed = maxElapsed
}

// Request issues an authenticated call and decodes the JSON response into
// out (which may be nil). body, when non-nil, is sent as JSON.
func (c *Client) Request(ctx context.Context, accessToken, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	return c.doRequest(ctx, method, endpoint, accessToken, payload, out, false)
}

// ListTeams returns the authorized workspaces.
func (c *Client) ListTeams(ctx context.Context, accessToken string) ([]remoteapi.Team, error) {
	var result struct {
		Teams []remoteapi.Team `json:"teams"`
	}
	err := c.retry(ctx, func() error {
		return c.Request(ctx, accessToken, http.MethodGet, "/v2/team", nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return result.Teams, nil
}

// CreateWebhook registers a webhook on the team. Never retried: a lost
// response would leave a duplicate registration behind.
func (c *Client) CreateWebhook(ctx context.Context, accessToken, teamID, endpoint string, events []string) (remoteapi.Webhook, error) {
	req := struct {
		Endpoint string   `json:"endpoint"`
		Events   []string `json:"events"`
	}{Endpoint: endpoint, Events: events}

	var result struct {
		ID      string            `json:"id"`
		Webhook remoteapi.Webhook `json:"webhook"`
	}
	path := "/v2/team/" + url.PathEscape(teamID) + "/webhook"
	if err := c.Request(ctx, accessToken, http.MethodPost, path, req, &result); err != nil {
		return remoteapi.Webhook{}, fmt.Errorf("create webhook: %w", err)
	}
	if result.Webhook.ID == "" {
		result.Webhook.ID = result.ID
	}
	return result.Webhook, nil
}

// ListWebhooks returns the team's webhooks.
func (c *Client) ListWebhooks(ctx context.Context, accessToken, teamID string) ([]remoteapi.Webhook, error) {
	var result struct {
		Webhooks []remoteapi.Webhook `json:"webhooks"`
	}
	err := c.retry(ctx, func() error {
		return c.Request(ctx, accessToken, http.MethodGet, "/v2/team/"+url.PathEscape(teamID)+"/webhook", nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return result.Webhooks, nil
}

// DeleteWebhook removes a webhook.
func (c *Client) DeleteWebhook(ctx context.Context, accessToken, webhookID string) error {
	if err := c.Request(ctx, accessToken, http.MethodDelete, "/v2/webhook/"+url.PathEscape(webhookID), nil, nil); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, clientID, clientSecret, code string) (remoteapi.Token, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
		"code":          code,
	})
	if err != nil {
		return remoteapi.Token{}, fmt.Errorf("marshal token request: %w", err)
	}

	var tok remoteapi.Token
	if err := c.doRequest(ctx, http.MethodPost, "/v2/oauth/token", "", payload, &tok, true); err != nil {
		return remoteapi.Token{}, err
	}
	if tok.AccessToken == "" {
		return remoteapi.Token{}, ErrNoAccessToken
	}
	return tok, nil
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	return resilience.Retry(ctx, c.maxElapsed, IsRetryable, op)
}

func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, body []byte, out any, oauth bool) error {
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if accessToken != "" {
			req.Header.Set("Authorization", accessToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &transportError{err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &transportError{err: fmt.Errorf("read response: %w", err)}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newAPIError(resp, data, oauth)
		}

		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	if c.breaker != nil {
		return c.breaker.Execute(call)
	}
	return call()
}

func newAPIError(resp *http.Response, data []byte, oauth bool) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Status:     strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "),
		oauth:      oauth,
	}
	if apiErr.Status == "" {
		apiErr.Status = http.StatusText(resp.StatusCode)
	}

	var body struct {
		Err   string `json:"err"`
		ECode string `json:"ECODE"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Err
		apiErr.Code = body.ECode
	}
	return apiErr
}
