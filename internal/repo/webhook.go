package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pkordes/tour-manager/internal/domain"
)

// WebhookDeliveryRepo stores authenticated webhook callbacks.
type WebhookDeliveryRepo interface {
	// Record inserts the delivery. It returns false without error when a
	// delivery with the same (provider, delivery_key) was already stored.
	Record(ctx context.Context, d domain.WebhookDelivery) (bool, error)
}

type pgWebhookDeliveryRepo struct {
	db db
}

// NewWebhookDeliveryRepo constructs a WebhookDeliveryRepo backed by db.
func NewWebhookDeliveryRepo(db db) WebhookDeliveryRepo {
	return &pgWebhookDeliveryRepo{db: db}
}

func (r *pgWebhookDeliveryRepo) Record(ctx context.Context, d domain.WebhookDelivery) (bool, error) {
	const q = `
		INSERT INTO webhook_deliveries (id, provider, delivery_key, event_type, external_id, payload)
		VALUES (@id, @provider, @delivery_key, @event_type, @external_id, @payload)
		ON CONFLICT (provider, delivery_key) DO NOTHING
		RETURNING id`

	id := d.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	args := pgx.NamedArgs{
		"id":           id,
		"provider":     d.Provider,
		"delivery_key": d.DeliveryKey,
		"event_type":   d.EventType,
		"external_id":  d.ExternalID,
		"payload":      []byte(d.Payload),
	}

	var inserted uuid.UUID
	err := r.db.QueryRow(ctx, q, args).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repo.WebhookDeliveryRepo.Record: %w", err)
	}
	return true, nil
}
