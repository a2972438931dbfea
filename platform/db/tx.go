package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxStarter is implemented by *pgxpool.Pool.
type TxStarter interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// RollbackLogger receives rollback failures. They never replace the error
// that caused the rollback.
type RollbackLogger interface {
	DatabaseError(operation string, err error)
}

// WithTx runs fn inside a transaction. Any error from fn rolls back; a nil
// return commits.
func WithTx(ctx context.Context, db TxStarter, log RollbackLogger, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(ctx, tx, log)
			panic(p)
		}
		if err != nil {
			rollback(ctx, tx, log)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx, log RollbackLogger) {
	rbErr := tx.Rollback(context.WithoutCancel(ctx))
	if rbErr == nil || errors.Is(rbErr, pgx.ErrTxClosed) {
		return
	}
	if log != nil {
		log.DatabaseError("rollback", rbErr)
	}
}
