package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/clickbridge/internal/domain/installation"
	"github.com/Strob0t/clickbridge/internal/port/promptstore"
	"github.com/Strob0t/clickbridge/internal/port/signalstore"
)

var (
	_ signalstore.Store = (*Store)(nil)
	_ promptstore.Store = (*Store)(nil)
)

// Store implements the signal, prompt and subscriber ports on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	// key encrypts sensitive signals. Nil stores them in plaintext.
	key []byte
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, key []byte) *Store {
	return &Store{pool: pool, key: key}
}

// --- Signals ---

func (s *Store) Load(ctx context.Context, installationID string) (installation.Signals, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, value, encrypted FROM installation_signals WHERE installation_id = $1`, installationID)
	if err != nil {
		return installation.Signals{}, fmt.Errorf("load signals: %w", err)
	}
	defer rows.Close()

	updates := installation.SignalUpdates{}
	for rows.Next() {
		var (
			name      string
			value     []byte
			encrypted bool
		)
		if err := rows.Scan(&name, &value, &encrypted); err != nil {
			return installation.Signals{}, fmt.Errorf("scan signal: %w", err)
		}
		if encrypted {
			if s.key == nil {
				return installation.Signals{}, fmt.Errorf("signal %s is encrypted but no key is configured", name)
			}
			value, err = installation.Decrypt(value, s.key)
			if err != nil {
				return installation.Signals{}, fmt.Errorf("decrypt signal %s: %w", name, err)
			}
		}
		updates.Set(installation.SignalName(name), string(value))
	}
	if err := rows.Err(); err != nil {
		return installation.Signals{}, fmt.Errorf("load signals: %w", err)
	}
	return updates.Apply(installation.Signals{}), nil
}

// Apply commits every update in one transaction.
func (s *Store) Apply(ctx context.Context, installationID string, updates installation.SignalUpdates) error {
	if len(updates) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for name, v := range updates {
			if v == nil {
				if _, err := tx.Exec(ctx,
					`DELETE FROM installation_signals WHERE installation_id = $1 AND name = $2`,
					installationID, string(name)); err != nil {
					return fmt.Errorf("clear signal %s: %w", name, err)
				}
				continue
			}

			value, encrypted, err := s.seal(name, *v)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO installation_signals (installation_id, name, value, encrypted, updated_at)
				 VALUES ($1, $2, $3, $4, now())
				 ON CONFLICT (installation_id, name)
				 DO UPDATE SET value = EXCLUDED.value, encrypted = EXCLUDED.encrypted, updated_at = now()`,
				installationID, string(name), value, encrypted); err != nil {
				return fmt.Errorf("set signal %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Store) seal(name installation.SignalName, v string) ([]byte, bool, error) {
	if s.key == nil || !name.Sensitive() {
		return []byte(v), false, nil
	}
	ct, err := installation.Encrypt([]byte(v), s.key)
	if err != nil {
		return nil, false, fmt.Errorf("encrypt signal %s: %w", name, err)
	}
	return ct, true, nil
}

func (s *Store) SaveStatus(ctx context.Context, installationID string, rec installation.StatusRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO installation_status (installation_id, status, description, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (installation_id)
		 DO UPDATE SET status = EXCLUDED.status, description = EXCLUDED.description, updated_at = now()`,
		installationID, string(rec.Status), rec.Description)
	if err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}

func (s *Store) Status(ctx context.Context, installationID string) (installation.StatusRecord, error) {
	var rec installation.StatusRecord
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status, description FROM installation_status WHERE installation_id = $1`, installationID,
	).Scan(&status, &rec.Description)
	if err != nil {
		return installation.StatusRecord{}, mapErr(err, "get status "+installationID)
	}
	rec.Status = installation.Status(status)
	return rec, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres: no pool")
	}
	return s.pool.Ping(ctx)
}
