package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Store bundles the repos that share one transaction.
type Store struct {
	Tours      TourRepo
	Events     EventRepo
	Deliveries WebhookDeliveryRepo
	SyncRuns   SyncRunRepo
}

// NewStore builds every repo on top of db.
func NewStore(db db) Store {
	return Store{
		Tours:      NewTourRepo(db),
		Events:     NewEventRepo(db),
		Deliveries: NewWebhookDeliveryRepo(db),
		SyncRuns:   NewSyncRunRepo(db),
	}
}

// beginner is satisfied by *pgxpool.Pool and pgx.Tx (nested savepoint).
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxRunner runs a function against a Store bound to a single transaction.
type TxRunner struct {
	db beginner
}

// NewTxRunner constructs a TxRunner on top of db.
func NewTxRunner(db beginner) *TxRunner {
	return &TxRunner{db: db}
}

// InTx commits when fn returns nil and rolls back otherwise.
func (r *TxRunner) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.TxRunner.InTx: begin: %w", err)
	}

	if err := fn(NewStore(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("repo.TxRunner.InTx: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.TxRunner.InTx: commit: %w", err)
	}
	return nil
}
