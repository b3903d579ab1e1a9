package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/clickbridge/internal/port/subscriber"
)

// --- Subscriber blocks ---

// Registry exposes the subscriber methods under the names the port expects.
// Store itself already uses List and Delete for prompts.
type Registry struct {
	s *Store
}

var _ subscriber.Registry = (*Registry)(nil)

// Subscribers returns the subscriber registry view of s.
func (s *Store) Subscribers() *Registry {
	return &Registry{s: s}
}

func (r *Registry) ListByEventType(ctx context.Context, installationID, eventType string) ([]subscriber.Block, error) {
	rows, err := r.s.pool.Query(ctx,
		`SELECT block_id, event_type, created_at FROM subscriber_blocks
		 WHERE installation_id = $1 AND event_type = $2 ORDER BY created_at ASC, block_id ASC`,
		installationID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list subscribers for %s: %w", eventType, err)
	}
	return collectBlocks(rows)
}

func (r *Registry) List(ctx context.Context, installationID string) ([]subscriber.Block, error) {
	rows, err := r.s.pool.Query(ctx,
		`SELECT block_id, event_type, created_at FROM subscriber_blocks
		 WHERE installation_id = $1 ORDER BY event_type ASC, block_id ASC`, installationID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return collectBlocks(rows)
}

func collectBlocks(rows pgx.Rows) ([]subscriber.Block, error) {
	blocks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (subscriber.Block, error) {
		var b subscriber.Block
		err := row.Scan(&b.ID, &b.EventType, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan subscribers: %w", err)
	}
	return blocks, nil
}

func (r *Registry) Add(ctx context.Context, installationID string, b subscriber.Block) error {
	_, err := r.s.pool.Exec(ctx,
		`INSERT INTO subscriber_blocks (installation_id, block_id, event_type) VALUES ($1, $2, $3)`,
		installationID, b.ID, b.EventType)
	if err != nil {
		return mapErr(err, "add subscriber "+b.ID)
	}
	return nil
}

func (r *Registry) Remove(ctx context.Context, installationID, blockID string) error {
	tag, err := r.s.pool.Exec(ctx,
		`DELETE FROM subscriber_blocks WHERE installation_id = $1 AND block_id = $2`,
		installationID, blockID)
	return mustAffect(tag, err, "remove subscriber "+blockID)
}
