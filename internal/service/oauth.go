package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/Strob0t/clickbridge/internal/domain/installation"
	"github.com/Strob0t/clickbridge/internal/port/kvstore"
	"github.com/Strob0t/clickbridge/internal/port/promptstore"
	"github.com/Strob0t/clickbridge/internal/port/remoteapi"
)

// ErrStateMismatch is returned when the callback state does not equal the
// persisted anti-forgery token.
var ErrStateMismatch = errors.New("invalid state parameter")

// OAuthConfig holds the OAuth application settings.
type OAuthConfig struct {
	InstallationID  string
	ClientID        string
	AuthorizeURL    string
	CallbackURL     string
	InstallationURL string
}

// OAuthService runs the authorization-code flow against the remote system.
type OAuthService struct {
	cfg          OAuthConfig
	clientSecret func() string
	kv           kvstore.Store
	prompts      promptstore.Store
	api          remoteapi.Client
	onComplete   func()
}

// NewOAuthService creates an OAuthService.
func NewOAuthService(cfg OAuthConfig, clientSecret func() string, kv kvstore.Store, prompts promptstore.Store, api remoteapi.Client) *OAuthService {
	return &OAuthService{cfg: cfg, clientSecret: clientSecret, kv: kv, prompts: prompts, api: api}
}

// OnComplete registers fn to run after a successful callback, typically to
// kick off the sync that provisions the webhook.
func (s *OAuthService) OnComplete(fn func()) {
	s.onComplete = fn
}

// Start persists a fresh anti-forgery token and returns the remote
// authorization URL to redirect the user to.
func (s *OAuthService) Start(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := s.kv.Set(ctx, installation.KeyOAuthState, []byte(state), 0); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	q := url.Values{}
	q.Set("client_id", s.cfg.ClientID)
	q.Set("redirect_uri", s.cfg.CallbackURL)
	q.Set("state", state)
	return s.cfg.AuthorizeURL + "?" + q.Encode(), nil
}

// Complete validates state, exchanges code and stores the resulting token
// for the next sync. It returns the URL to send the user back to.
// ErrStateMismatch is returned when state does not match.
func (s *OAuthService) Complete(ctx context.Context, code, state string) (string, error) {
	stored, found, err := s.kv.Get(ctx, installation.KeyOAuthState)
	if err != nil {
		return "", fmt.Errorf("load oauth state: %w", err)
	}
	if !found || state == "" || subtle.ConstantTimeCompare([]byte(state), stored) != 1 {
		slog.Warn("oauth callback with invalid state", "installation_id", s.cfg.InstallationID)
		return "", ErrStateMismatch
	}

	tok, err := s.api.ExchangeCode(ctx, s.cfg.ClientID, s.clientSecret(), code)
	if err != nil {
		slog.Error("token exchange failed", "installation_id", s.cfg.InstallationID, "error", err)
		return "", err
	}

	if err := s.kv.SetMany(ctx, []kvstore.Entry{
		{Key: installation.KeyAccessToken, Value: []byte(tok.AccessToken)},
		{Key: installation.KeyOAuthComplete, Value: []byte("true")},
	}); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	if err := s.kv.Delete(ctx, installation.KeyOAuthState); err != nil {
		return "", fmt.Errorf("delete oauth state: %w", err)
	}
	if err := s.prompts.Delete(ctx, s.cfg.InstallationID, installation.AuthPromptKey); err != nil {
		return "", fmt.Errorf("delete prompt: %w", err)
	}

	slog.Info("oauth completed", "installation_id", s.cfg.InstallationID)
	if s.onComplete != nil {
		s.onComplete()
	}
	return s.cfg.InstallationURL, nil
}
