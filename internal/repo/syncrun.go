package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pkordes/tour-manager/internal/domain"
)

// SyncRunRepo records daily sync executions.
type SyncRunRepo interface {
	// Start inserts a running SyncRun for trigger and returns it.
	Start(ctx context.Context, trigger domain.SyncTrigger) (domain.SyncRun, error)

	// Finish stores the final status, counts and error of run.
	Finish(ctx context.Context, run domain.SyncRun) (domain.SyncRun, error)

	// Latest returns the most recently started run, or domain.ErrNotFound.
	Latest(ctx context.Context) (domain.SyncRun, error)
}

type pgSyncRunRepo struct {
	db db
}

// NewSyncRunRepo constructs a SyncRunRepo backed by db.
func NewSyncRunRepo(db db) SyncRunRepo {
	return &pgSyncRunRepo{db: db}
}

const syncRunColumns = `id, trigger, status, artists, events_upserted, error, started_at, finished_at`

func (r *pgSyncRunRepo) Start(ctx context.Context, trigger domain.SyncTrigger) (domain.SyncRun, error) {
	const q = `
		INSERT INTO sync_runs (id, trigger, status)
		VALUES (@id, @trigger, 'running')
		RETURNING ` + syncRunColumns

	args := pgx.NamedArgs{"id": uuid.New(), "trigger": string(trigger)}
	run, err := scanSyncRun(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.SyncRun{}, fmt.Errorf("repo.SyncRunRepo.Start: %w", err)
	}
	return run, nil
}

func (r *pgSyncRunRepo) Finish(ctx context.Context, run domain.SyncRun) (domain.SyncRun, error) {
	const q = `
		UPDATE sync_runs
		SET status          = @status,
		    artists         = @artists,
		    events_upserted = @events_upserted,
		    error           = @error,
		    finished_at     = now()
		WHERE id = @id
		RETURNING ` + syncRunColumns

	args := pgx.NamedArgs{
		"id":              run.ID,
		"status":          string(run.Status),
		"artists":         run.Artists,
		"events_upserted": run.EventsUpserted,
		"error":           run.Error,
	}
	result, err := scanSyncRun(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.SyncRun{}, fmt.Errorf("repo.SyncRunRepo.Finish: %w", err)
	}
	return result, nil
}

func (r *pgSyncRunRepo) Latest(ctx context.Context) (domain.SyncRun, error) {
	const q = `SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY started_at DESC LIMIT 1`

	run, err := scanSyncRun(r.db.QueryRow(ctx, q))
	if err != nil {
		return domain.SyncRun{}, fmt.Errorf("repo.SyncRunRepo.Latest: %w", err)
	}
	return run, nil
}

func scanSyncRun(s scanner) (domain.SyncRun, error) {
	var (
		run      domain.SyncRun
		trigger  string
		status   string
		finished *time.Time
	)

	err := s.Scan(&run.ID, &trigger, &status, &run.Artists, &run.EventsUpserted, &run.Error, &run.StartedAt, &finished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SyncRun{}, domain.ErrNotFound
		}
		return domain.SyncRun{}, err
	}
	run.Trigger = domain.SyncTrigger(trigger)
	run.Status = domain.SyncStatus(status)
	run.FinishedAt = finished
	return run, nil
}
