// Package kvstoretest provides a behavioral test suite shared by every
// kvstore.Store implementation.
package kvstoretest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/clickbridge/internal/port/kvstore"
)

// Run exercises s against the kvstore.Store contract. s should be empty.
func Run(t *testing.T, s kvstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := s.Set(ctx, "set-get", []byte("v"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := s.Get(ctx, "set-get")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != "v" {
			t.Fatalf("expected v, got %q (found=%v)", val, found)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := s.Get(ctx, "never-set")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for unknown key")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = s.Set(ctx, "ow", []byte("v1"), time.Minute)
		_ = s.Set(ctx, "ow", []byte("v2"), time.Minute)
		val, _, err := s.Get(ctx, "ow")
		if err != nil {
			t.Fatal(err)
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2, got %q", val)
		}
	})

	t.Run("SetMany", func(t *testing.T) {
		err := s.SetMany(ctx, []kvstore.Entry{
			{Key: "many-a", Value: []byte("a")},
			{Key: "many-b", Value: []byte("b")},
		})
		if err != nil {
			t.Fatal(err)
		}
		for key, want := range map[string]string{"many-a": "a", "many-b": "b"} {
			val, found, err := s.Get(ctx, key)
			if err != nil {
				t.Fatal(err)
			}
			if !found || string(val) != want {
				t.Fatalf("%s: expected %q, got %q", key, want, val)
			}
		}
	})

	t.Run("DeleteMany", func(t *testing.T) {
		_ = s.Set(ctx, "del-a", []byte("a"), time.Minute)
		_ = s.Set(ctx, "del-b", []byte("b"), time.Minute)
		if err := s.Delete(ctx, "del-a", "del-b", "del-never-existed"); err != nil {
			t.Fatal(err)
		}
		for _, key := range []string{"del-a", "del-b"} {
			if _, found, _ := s.Get(ctx, key); found {
				t.Fatalf("expected %s deleted", key)
			}
		}
	})

	t.Run("BinarySafe", func(t *testing.T) {
		bin := []byte{0, 1, 2, 255}
		_ = s.Set(ctx, "bin", bin, time.Minute)
		val, found, err := s.Get(ctx, "bin")
		if err != nil || !found {
			t.Fatalf("get bin: found=%v err=%v", found, err)
		}
		if string(val) != string(bin) {
			t.Fatalf("binary value mangled: %v", val)
		}
	})
}
