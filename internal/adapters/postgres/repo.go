package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventcheckout/internal/domain"
	"eventcheckout/internal/observability"
)

const (
	lockNotAvailableCode = "55P03"
	queryCanceledCode    = "57014"
	uniqueViolationCode  = "23505"
)

type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

// WithTx runs fn inside a transaction with a bounded lock wait. A lock
// wait exceeding the bound surfaces as domain.ErrUnavailable so callers
// can retry with backoff instead of leaking a partial mutation.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Mark(err, domain.ErrUnavailable)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds()))
	if err != nil {
		return errors.Mark(err, domain.ErrUnavailable)
	}

	if err := fn(tx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == lockNotAvailableCode || pgErr.Code == queryCanceledCode) {
			return errors.Mark(err, domain.ErrUnavailable)
		}
		return err
	}

	return tx.Commit(ctx)
}
