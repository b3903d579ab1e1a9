package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/clickbridge/internal/port/kvstore/kvstoretest"
)

func newStore(t *testing.T, id string) *Store {
	t.Helper()
	s, err := New(1<<20, id)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_Compliance(t *testing.T) {
	kvstoretest.Run(t, newStore(t, "inst"))
}

func TestStore_TTLExpiry(t *testing.T) {
	s := newStore(t, "inst")
	ctx := context.Background()

	if err := s.Set(ctx, "short", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if _, found, _ := s.Get(ctx, "short"); found {
		t.Fatal("expected key to expire")
	}
}

func TestStore_InstallationsIsolated(t *testing.T) {
	s := newStore(t, "a")
	other := &Store{c: s.c, prefix: "b/"}
	ctx := context.Background()

	_ = s.Set(ctx, "oauth_state", []byte("x"), 0)
	if _, found, _ := other.Get(ctx, "oauth_state"); found {
		t.Fatal("installations must not share keys")
	}
}
