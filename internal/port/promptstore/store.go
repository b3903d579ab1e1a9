// Package promptstore defines the port for user-facing authorization prompts.
package promptstore

import (
	"context"

	"github.com/Strob0t/clickbridge/internal/domain/installation"
)

// Store keeps at most one prompt per key and installation.
type Store interface {
	List(ctx context.Context, installationID string) ([]installation.Prompt, error)
	Exists(ctx context.Context, installationID, key string) (bool, error)
	// Create replaces any existing prompt with the same key.
	Create(ctx context.Context, installationID string, p installation.Prompt) error
	// Delete is a no-op when the prompt does not exist.
	Delete(ctx context.Context, installationID, key string) error
}
