package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/clickbridge/internal/domain"
)

const pgUniqueViolation = "23505"

// mapErr prefixes err with op and translates no-rows and unique
// violations into the domain sentinels callers match on.
func mapErr(err error, op string) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// mustAffect is mapErr for Execs that have to touch a row.
func mustAffect(tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return mapErr(err, op)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
