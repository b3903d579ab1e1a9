package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/clickbridge/internal/domain/installation"
)

func (s *Store) List(ctx context.Context, installationID string) ([]installation.Prompt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, label, redirect_url, redirect_method, created_at
		 FROM installation_prompts WHERE installation_id = $1 ORDER BY created_at ASC`, installationID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	prompts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (installation.Prompt, error) {
		var p installation.Prompt
		err := row.Scan(&p.Key, &p.Label, &p.RedirectURL, &p.RedirectMethod, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	return prompts, nil
}

func (s *Store) Exists(ctx context.Context, installationID, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM installation_prompts WHERE installation_id = $1 AND key = $2)`,
		installationID, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("prompt exists %s: %w", key, err)
	}
	return exists, nil
}

func (s *Store) Create(ctx context.Context, installationID string, p installation.Prompt) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO installation_prompts (installation_id, key, label, redirect_url, redirect_method)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (installation_id, key)
		 DO UPDATE SET label = EXCLUDED.label, redirect_url = EXCLUDED.redirect_url,
		               redirect_method = EXCLUDED.redirect_method, created_at = now()`,
		installationID, p.Key, p.Label, p.RedirectURL, p.RedirectMethod)
	if err != nil {
		return fmt.Errorf("create prompt %s: %w", p.Key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, installationID, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM installation_prompts WHERE installation_id = $1 AND key = $2`,
		installationID, key); err != nil {
		return fmt.Errorf("delete prompt %s: %w", key, err)
	}
	return nil
}
