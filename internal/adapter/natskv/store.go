// Package natskv implements the kvstore port on a NATS JetStream KV bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/clickbridge/internal/port/kvstore"
)

// Store wraps a JetStream KeyValue bucket. Keys are namespaced by
// installation so several installations can share one bucket.
type Store struct {
	kv     jetstream.KeyValue
	prefix string
}

var _ kvstore.Store = (*Store)(nil)

// New creates a Store scoped to installationID.
func New(kv jetstream.KeyValue, installationID string) *Store {
	return &Store{kv: kv, prefix: sanitize(installationID) + "."}
}

// sanitize maps characters NATS KV keys do not allow to '_'.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '=':
			return r
		default:
			return '_'
		}
	}, s)
}

func (s *Store) key(k string) string { return s.prefix + sanitize(k) }

// Get retrieves a value. A missing or deleted key is a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(ctx, s.key(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("natskv get %s: %w", key, err)
	}
	return entry.Value(), true, nil
}

// Set stores a value. TTL is managed at bucket level.
func (s *Store) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := s.kv.Put(ctx, s.key(key), value); err != nil {
		return fmt.Errorf("natskv put %s: %w", key, err)
	}
	return nil
}

// SetMany writes entries in order. JetStream KV has no multi-key
// transaction, so a failure leaves earlier entries written.
func (s *Store) SetMany(ctx context.Context, entries []kvstore.Entry) error {
	for _, e := range entries {
		if err := s.Set(ctx, e.Key, e.Value, e.TTL); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		err := s.kv.Delete(ctx, s.key(k))
		if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("natskv delete %s: %w", k, err)
		}
	}
	return nil
}
