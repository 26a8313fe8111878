package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/tour-manager/internal/domain"
)

// EventRepo defines the persistence operations for Events.
type EventRepo interface {
	// Upsert inserts the event or, when external_id already exists, overwrites
	// its mutable fields. The returned record carries the DB id and timestamps.
	Upsert(ctx context.Context, e domain.Event) (domain.Event, error)

	// Cancel marks the event with externalID cancelled.
	// Returns domain.ErrNotFound if it does not exist.
	Cancel(ctx context.Context, externalID string) error

	// ListByTour returns a tour's events ordered by starts_at ascending.
	ListByTour(ctx context.Context, tourID int64) ([]domain.Event, error)
}

type pgEventRepo struct {
	db db
}

// NewEventRepo constructs an EventRepo backed by the provided db connection.
func NewEventRepo(db db) EventRepo {
	return &pgEventRepo{db: db}
}

const eventColumns = `id, external_id, tour_id, artist_name, venue_name, city, country, starts_at, url, status, created_at, updated_at`

func (r *pgEventRepo) Upsert(ctx context.Context, e domain.Event) (domain.Event, error) {
	const q = `
		INSERT INTO events (external_id, tour_id, artist_name, venue_name, city, country, starts_at, url, status)
		VALUES (@external_id, @tour_id, @artist_name, @venue_name, @city, @country, @starts_at, @url, @status)
		ON CONFLICT (external_id) DO UPDATE
		SET tour_id     = EXCLUDED.tour_id,
		    artist_name = EXCLUDED.artist_name,
		    venue_name  = EXCLUDED.venue_name,
		    city        = EXCLUDED.city,
		    country     = EXCLUDED.country,
		    starts_at   = EXCLUDED.starts_at,
		    url         = EXCLUDED.url,
		    status      = EXCLUDED.status,
		    updated_at  = now()
		RETURNING ` + eventColumns

	status := e.Status
	if status == "" {
		status = domain.EventScheduled
	}
	args := pgx.NamedArgs{
		"external_id": e.ExternalID,
		"tour_id":     e.TourID,
		"artist_name": e.ArtistName,
		"venue_name":  e.VenueName,
		"city":        e.City,
		"country":     e.Country,
		"starts_at":   e.StartsAt,
		"url":         e.URL,
		"status":      string(status),
	}

	result, err := scanEvent(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Event{}, fmt.Errorf("repo.EventRepo.Upsert: %w", err)
	}
	return result, nil
}

func (r *pgEventRepo) Cancel(ctx context.Context, externalID string) error {
	const q = `
		UPDATE events
		SET status = 'cancelled', updated_at = now()
		WHERE external_id = @external_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"external_id": externalID})
	if err != nil {
		return fmt.Errorf("repo.EventRepo.Cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.EventRepo.Cancel: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgEventRepo) ListByTour(ctx context.Context, tourID int64) ([]domain.Event, error) {
	const q = `
		SELECT ` + eventColumns + `
		FROM events
		WHERE tour_id = @tour_id
		ORDER BY starts_at`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"tour_id": tourID})
	if err != nil {
		return nil, fmt.Errorf("repo.EventRepo.ListByTour: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.EventRepo.ListByTour: scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.EventRepo.ListByTour: rows: %w", err)
	}
	return events, nil
}

func scanEvent(s scanner) (domain.Event, error) {
	var (
		e      domain.Event
		tourID pgtype.Int8
		status string
	)

	err := s.Scan(&e.ID, &e.ExternalID, &tourID, &e.ArtistName, &e.VenueName, &e.City,
		&e.Country, &e.StartsAt, &e.URL, &status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, err
	}

	if tourID.Valid {
		id := tourID.Int64
		e.TourID = &id
	}
	e.Status = domain.EventStatus(status)
	return e, nil
}
