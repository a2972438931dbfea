// Package repository is the PostgreSQL persistence gateway. Every multi-row
// write runs in a single transaction.
package repository

import (
	"context"
	"errors"

	"dispatch_bot_backend/platform/apperr"
	"dispatch_bot_backend/platform/db"
	"dispatch_bot_backend/platform/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func New(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

func (r *Repository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, r.log, fn)
}

// notFound maps pgx.ErrNoRows to an apperr NotFound carrying msg.
func notFound(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(msg)
	}
	return err
}

// isUniqueViolation reports a Postgres 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
