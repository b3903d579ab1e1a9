// Package signalstore defines the port for persisted installation signals.
package signalstore

import (
	"context"

	"github.com/Strob0t/clickbridge/internal/domain/installation"
)

// Store persists the signal record and last status of each installation.
// Apply commits all updates of one SignalUpdates as a single unit.
type Store interface {
	// Load returns the current signals. An unknown installation yields the zero value.
	Load(ctx context.Context, installationID string) (installation.Signals, error)
	Apply(ctx context.Context, installationID string, updates installation.SignalUpdates) error
	SaveStatus(ctx context.Context, installationID string, rec installation.StatusRecord) error
	// Status returns domain.ErrNotFound when no sync has reported yet.
	Status(ctx context.Context, installationID string) (installation.StatusRecord, error)
}
