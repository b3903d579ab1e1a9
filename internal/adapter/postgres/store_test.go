package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/clickbridge/internal/adapter/postgres"
	"github.com/Strob0t/clickbridge/internal/domain"
	"github.com/Strob0t/clickbridge/internal/domain/installation"
	"github.com/Strob0t/clickbridge/internal/port/subscriber"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store plus its pool. The pool is closed via t.Cleanup.
func setupStore(t *testing.T, key []byte) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool, key), pool
}

func testInstallation() string {
	return "test-" + uuid.New().String()[:8]
}

func testKey(t *testing.T) []byte {
	t.Helper()
	k, err := installation.DeriveKey("test-encryption-secret", "tests")
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestSignals_ApplyAndLoad(t *testing.T) {
	store, _ := setupStore(t, testKey(t))
	ctx := context.Background()
	id := testInstallation()

	sig, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if sig != (installation.Signals{}) {
		t.Fatalf("expected zero signals, got %+v", sig)
	}

	u := installation.SignalUpdates{}
	u.Set(installation.SignalAccessToken, "tok").
		Set(installation.SignalClientSecret, "cs").
		Set(installation.SignalTeamID, "123").
		Set(installation.SignalWebhookID, "wh").
		Set(installation.SignalWebhookSecret, "whs")
	if err := store.Apply(ctx, id, u); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	sig, err = store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !sig.Ready() || sig.TeamID != "123" || sig.WebhookSecret != "whs" {
		t.Fatalf("unexpected signals: %+v", sig)
	}

	reset := installation.SignalUpdates{}
	reset.Clear(installation.SignalAccessToken)
	if err := store.Apply(ctx, id, reset); err != nil {
		t.Fatalf("Apply clear: %v", err)
	}
	sig, _ = store.Load(ctx, id)
	if sig.AccessToken != "" || sig.WebhookID != "wh" {
		t.Fatalf("clear should only drop accessToken: %+v", sig)
	}
}

func TestSignals_SensitiveEncryptedAtRest(t *testing.T) {
	store, pool := setupStore(t, testKey(t))
	ctx := context.Background()
	id := testInstallation()

	u := installation.SignalUpdates{}
	u.Set(installation.SignalAccessToken, "plain-token").Set(installation.SignalTeamID, "42")
	if err := store.Apply(ctx, id, u); err != nil {
		t.Fatal(err)
	}

	var raw []byte
	var encrypted bool
	err := pool.QueryRow(ctx,
		`SELECT value, encrypted FROM installation_signals WHERE installation_id = $1 AND name = 'accessToken'`, id,
	).Scan(&raw, &encrypted)
	if err != nil {
		t.Fatal(err)
	}
	if !encrypted || string(raw) == "plain-token" {
		t.Fatal("access token must be encrypted at rest")
	}

	err = pool.QueryRow(ctx,
		`SELECT value, encrypted FROM installation_signals WHERE installation_id = $1 AND name = 'teamId'`, id,
	).Scan(&raw, &encrypted)
	if err != nil {
		t.Fatal(err)
	}
	if encrypted || string(raw) != "42" {
		t.Fatalf("team id should be stored in plaintext, got %q", raw)
	}
}

func TestStatus(t *testing.T) {
	store, _ := setupStore(t, nil)
	ctx := context.Background()
	id := testInstallation()

	if _, err := store.Status(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	rec := installation.StatusRecord{Status: installation.StatusFailed, Description: "x"}
	if err := store.SaveStatus(ctx, id, rec); err != nil {
		t.Fatal(err)
	}
	got, err := store.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got != rec {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
}

func TestPrompts(t *testing.T) {
	store, _ := setupStore(t, nil)
	ctx := context.Background()
	id := testInstallation()

	p := installation.AuthorizationPrompt("https://bridge.example.com/auth/start")
	if err := store.Create(ctx, id, p); err != nil {
		t.Fatal(err)
	}
	// Creating again replaces rather than failing.
	if err := store.Create(ctx, id, p); err != nil {
		t.Fatalf("re-create: %v", err)
	}

	ok, err := store.Exists(ctx, id, installation.AuthPromptKey)
	if err != nil || !ok {
		t.Fatalf("expected prompt to exist (err=%v)", err)
	}
	list, err := store.List(ctx, id)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one prompt, got %d (err=%v)", len(list), err)
	}
	if list[0].RedirectURL != p.RedirectURL {
		t.Errorf("redirect url = %q", list[0].RedirectURL)
	}

	if err := store.Delete(ctx, id, installation.AuthPromptKey); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, id, installation.AuthPromptKey); err != nil {
		t.Fatalf("deleting a missing prompt should not fail: %v", err)
	}
	if ok, _ := store.Exists(ctx, id, installation.AuthPromptKey); ok {
		t.Fatal("prompt should be gone")
	}
}

func TestSubscribers(t *testing.T) {
	store, _ := setupStore(t, nil)
	reg := store.Subscribers()
	ctx := context.Background()
	id := testInstallation()

	for _, b := range []subscriber.Block{
		{ID: "b1", EventType: "taskCreated"},
		{ID: "b2", EventType: "taskCreated"},
		{ID: "b3", EventType: "listCreated"},
	} {
		if err := reg.Add(ctx, id, b); err != nil {
			t.Fatalf("Add %s: %v", b.ID, err)
		}
	}
	if err := reg.Add(ctx, id, subscriber.Block{ID: "b1", EventType: "taskDeleted"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := reg.ListByEventType(ctx, id, "taskCreated")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 taskCreated subscribers, got %d", len(got))
	}
	if other, _ := reg.ListByEventType(ctx, testInstallation(), "taskCreated"); len(other) != 0 {
		t.Fatal("subscribers must be scoped to their installation")
	}

	if err := reg.Remove(ctx, id, "b1"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Remove(ctx, id, "b1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	all, _ := reg.List(ctx, id)
	if len(all) != 2 {
		t.Fatalf("expected 2 remaining subscribers, got %d", len(all))
	}
}

func TestStore_Ping(t *testing.T) {
	store, pool := setupStore(t, nil)
	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	pool.Close()
	if err := store.Ping(ctx); err == nil {
		t.Error("Ping on a closed pool must fail")
	}
}

func TestMigrations_VersionAndRollback(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}
	ctx := context.Background()

	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	latest, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if latest < 1 {
		t.Fatalf("expected at least version 1, got %d", latest)
	}

	if err := postgres.RollbackMigrations(ctx, dsn, 1); err != nil {
		t.Fatalf("RollbackMigrations: %v", err)
	}
	t.Cleanup(func() {
		if err := postgres.RunMigrations(ctx, dsn); err != nil {
			t.Errorf("restore migrations: %v", err)
		}
	})
	got, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if got != latest-1 {
		t.Errorf("version after rollback = %d, want %d", got, latest-1)
	}
}
