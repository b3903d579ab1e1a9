// Package ristretto implements the kvstore port in process with
// dgraph-io/ristretto. Suitable for a single replica; state is lost on restart.
package ristretto

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/clickbridge/internal/port/kvstore"
)

var errRejected = errors.New("ristretto: set rejected")

// Store wraps a ristretto cache.
type Store struct {
	c      *ristretto.Cache[string, []byte]
	prefix string
}

var _ kvstore.Store = (*Store)(nil)

// New creates a ristretto-backed store for installationID. maxCostBytes
// bounds the total size of stored values.
func New(maxCostBytes int64, installationID string) (*Store, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/100*10, 1000), // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c, prefix: installationID + "/"}, nil
}

// Get retrieves a value.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := s.c.Get(s.prefix + key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value with the given TTL; zero means no expiry. Writes are
// flushed before returning so a following Get observes them.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.c.SetWithTTL(s.prefix+key, value, int64(len(value))+1, ttl) {
		return errRejected
	}
	s.c.Wait()
	return nil
}

// SetMany stores every entry.
func (s *Store) SetMany(ctx context.Context, entries []kvstore.Entry) error {
	for _, e := range entries {
		if err := s.Set(ctx, e.Key, e.Value, e.TTL); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the keys.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.c.Del(s.prefix + k)
	}
	s.c.Wait()
	return nil
}

// Close shuts down the cache and releases resources.
func (s *Store) Close() {
	s.c.Close()
}
