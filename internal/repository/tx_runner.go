package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner runs episode writes in one transaction. Notifications sent inside it
// are delivered on commit only.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(episodes *EpisodeRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(&EpisodeRepository{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}
