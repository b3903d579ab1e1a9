// Package kvstore defines the port for transient installation state: values
// that only live between the start of authorization and the end of
// webhook provisioning, and must survive a process restart in between.
package kvstore

import (
	"context"
	"time"
)

// Entry is one write in a SetMany batch. A zero TTL means the store default.
type Entry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// Store is the port interface for transient key-value state.
// Implementations scope every key to one installation.
type Store interface {
	// Get returns the value and whether it was found. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetMany(ctx context.Context, entries []Entry) error
	// Delete removes the keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
