// Package repo contains all database access logic for the tour manager.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tour-manager/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Integration tests pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TourRepo defines the persistence operations for Tours.
type TourRepo interface {
	// Create inserts a new tour and returns the persisted record with the
	// DB-generated id, created_at and updated_at.
	Create(ctx context.Context, tour domain.Tour) (domain.Tour, error)

	// GetByID returns domain.ErrNotFound if no tour with that id exists.
	GetByID(ctx context.Context, id int64) (domain.Tour, error)

	// ListPaged returns one page of tours ordered by start_date descending
	// (undated tours last) plus the total count.
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Tour, int64, error)

	// Update overwrites the mutable fields. Returns domain.ErrNotFound if missing.
	Update(ctx context.Context, tour domain.Tour) (domain.Tour, error)

	// Delete returns domain.ErrNotFound if the tour does not exist.
	Delete(ctx context.Context, id int64) error

	// ListArtists returns the distinct non-empty artist names across all tours.
	ListArtists(ctx context.Context) ([]string, error)

	// FindForEvent returns the tour for artist whose date range contains at.
	// Returns domain.ErrNotFound when nothing matches.
	FindForEvent(ctx context.Context, artist string, at time.Time) (domain.Tour, error)
}

type pgTourRepo struct {
	db db
}

// NewTourRepo constructs a TourRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTourRepo(db db) TourRepo {
	return &pgTourRepo{db: db}
}

const tourColumns = `id, name, artist_name, start_date, end_date, notes, created_at, updated_at`

func (r *pgTourRepo) Create(ctx context.Context, tour domain.Tour) (domain.Tour, error) {
	const q = `
		INSERT INTO tours (name, artist_name, start_date, end_date, notes)
		VALUES (@name, @artist_name, @start_date, @end_date, @notes)
		RETURNING ` + tourColumns

	row := r.db.QueryRow(ctx, q, tourArgs(tour))
	result, err := scanTour(row)
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgTourRepo) GetByID(ctx context.Context, id int64) (domain.Tour, error) {
	const q = `SELECT ` + tourColumns + ` FROM tours WHERE id = @id`

	result, err := scanTour(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgTourRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Tour, int64, error) {
	const countQ = `SELECT count(*) FROM tours`
	var total int64
	if err := r.db.QueryRow(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.TourRepo.ListPaged: count: %w", err)
	}

	const q = `
		SELECT ` + tourColumns + `
		FROM tours
		ORDER BY start_date DESC NULLS LAST, id DESC
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TourRepo.ListPaged: %w", err)
	}
	defer rows.Close()

	tours := []domain.Tour{}
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.TourRepo.ListPaged: scan: %w", err)
		}
		tours = append(tours, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TourRepo.ListPaged: rows: %w", err)
	}
	return tours, total, nil
}

func (r *pgTourRepo) Update(ctx context.Context, tour domain.Tour) (domain.Tour, error) {
	const q = `
		UPDATE tours
		SET name        = @name,
		    artist_name = @artist_name,
		    start_date  = @start_date,
		    end_date    = @end_date,
		    notes       = @notes,
		    updated_at  = now()
		WHERE id = @id
		RETURNING ` + tourColumns

	args := tourArgs(tour)
	args["id"] = tour.ID

	result, err := scanTour(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgTourRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tours WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TourRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TourRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgTourRepo) ListArtists(ctx context.Context) ([]string, error) {
	const q = `
		SELECT DISTINCT artist_name
		FROM tours
		WHERE artist_name <> ''
		ORDER BY artist_name`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.TourRepo.ListArtists: %w", err)
	}
	artists, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("repo.TourRepo.ListArtists: collect: %w", err)
	}
	return artists, nil
}

func (r *pgTourRepo) FindForEvent(ctx context.Context, artist string, at time.Time) (domain.Tour, error) {
	const q = `
		SELECT ` + tourColumns + `
		FROM tours
		WHERE lower(artist_name) = lower(@artist)
		  AND (start_date IS NULL OR start_date <= @day)
		  AND (end_date IS NULL OR end_date >= @day)
		ORDER BY start_date DESC NULLS LAST, id
		LIMIT 1`

	args := pgx.NamedArgs{"artist": artist, "day": domain.TruncateDay(at)}
	result, err := scanTour(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Tour{}, fmt.Errorf("repo.TourRepo.FindForEvent: %w", err)
	}
	return result, nil
}

func tourArgs(t domain.Tour) pgx.NamedArgs {
	return pgx.NamedArgs{
		"name":        t.Name,
		"artist_name": t.ArtistName,
		"start_date":  t.StartDate, // nil becomes NULL
		"end_date":    t.EndDate,
		"notes":       t.Notes,
	}
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTour maps a single row into a domain.Tour, converting nullable dates.
func scanTour(s scanner) (domain.Tour, error) {
	var (
		t         domain.Tour
		startDate pgtype.Date
		endDate   pgtype.Date
	)

	err := s.Scan(&t.ID, &t.Name, &t.ArtistName, &startDate, &endDate, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tour{}, domain.ErrNotFound
		}
		return domain.Tour{}, err
	}

	t.StartDate = dateOrNil(startDate)
	t.EndDate = dateOrNil(endDate)
	return t, nil
}

func dateOrNil(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	v := d.Time
	return &v
}
