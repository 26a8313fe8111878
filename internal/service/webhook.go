package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pkordes/tour-manager/internal/bandsintown"
	"github.com/pkordes/tour-manager/internal/domain"
	"github.com/pkordes/tour-manager/internal/repo"
)

// TxRunner runs fn against repos that share one transaction.
// *repo.TxRunner satisfies it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(repo.Store) error) error
}

// WebhookRecorder counts processed deliveries by outcome.
type WebhookRecorder interface {
	IncrWebhook(provider, outcome string)
}

// WebhookService applies authenticated Bandsintown callbacks.
// The delivery record and its effect on events commit together, so a
// redelivery after a failure is processed again rather than dropped.
type WebhookService struct {
	tx      TxRunner
	metrics WebhookRecorder
	log     *slog.Logger
}

// NewWebhookService constructs a WebhookService. metrics may be nil.
func NewWebhookService(tx TxRunner, metrics WebhookRecorder, log *slog.Logger) *WebhookService {
	return &WebhookService{tx: tx, metrics: metrics, log: log}
}

// DeliveryKey returns deliveryID when set, otherwise the hex sha256 of body.
func DeliveryKey(deliveryID string, body []byte) string {
	if deliveryID != "" {
		return deliveryID
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// HandleBandsintown decodes body and applies it.
// Returns domain.ErrInvalidPayload when body is not a usable payload.
func (s *WebhookService) HandleBandsintown(ctx context.Context, deliveryID string, body []byte) (domain.WebhookOutcome, error) {
	var payload bandsintown.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("service.WebhookService.HandleBandsintown: %w: %v", domain.ErrInvalidPayload, err)
	}

	apply, err := s.planBandsintown(payload)
	if err != nil {
		return "", fmt.Errorf("service.WebhookService.HandleBandsintown: %w", err)
	}

	delivery := domain.WebhookDelivery{
		Provider:    domain.ProviderBandsintown,
		DeliveryKey: DeliveryKey(deliveryID, body),
		EventType:   payload.EventType,
		ExternalID:  payload.Data.ID.String(),
		Payload:     json.RawMessage(body),
	}

	outcome := domain.OutcomeProcessed
	if apply == nil {
		outcome = domain.OutcomeIgnored
	}
	err = s.tx.InTx(ctx, func(st repo.Store) error {
		inserted, err := st.Deliveries.Record(ctx, delivery)
		if err != nil {
			return err
		}
		if !inserted {
			outcome = domain.OutcomeDuplicate
			return nil
		}
		if apply == nil {
			return nil
		}
		return apply(ctx, st)
	})
	if err != nil {
		return "", fmt.Errorf("service.WebhookService.HandleBandsintown: %w", err)
	}

	s.log.InfoContext(ctx, "webhook handled",
		"provider", domain.ProviderBandsintown,
		"event_type", payload.EventType,
		"external_id", delivery.ExternalID,
		"outcome", string(outcome),
	)
	s.record(outcome)
	return outcome, nil
}

// planBandsintown validates payload and returns the change to apply, or nil
// for event types that are ignored.
func (s *WebhookService) planBandsintown(payload bandsintown.WebhookPayload) (func(context.Context, repo.Store) error, error) {
	switch payload.EventType {
	case domain.EventTypeCreated, domain.EventTypeUpdated:
		event, err := payload.Data.ToDomain("")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		if event.ArtistName == "" {
			return nil, fmt.Errorf("%w: event %s has no artist", domain.ErrInvalidPayload, event.ExternalID)
		}
		return func(ctx context.Context, st repo.Store) error {
			_, err := upsertEvent(ctx, st.Tours, st.Events, event)
			return err
		}, nil

	case domain.EventTypeDeleted, domain.EventTypeCancelled:
		externalID := payload.Data.ID.String()
		if externalID == "" {
			return nil, fmt.Errorf("%w: event without id", domain.ErrInvalidPayload)
		}
		return func(ctx context.Context, st repo.Store) error {
			err := st.Events.Cancel(ctx, externalID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}, nil
	}
	return nil, nil
}

func (s *WebhookService) record(outcome domain.WebhookOutcome) {
	if s.metrics != nil {
		s.metrics.IncrWebhook(domain.ProviderBandsintown, string(outcome))
	}
}

// upsertEvent links event to the matching tour, if any, and stores it.
func upsertEvent(ctx context.Context, tours repo.TourRepo, events repo.EventRepo, event domain.Event) (domain.Event, error) {
	tour, err := tours.FindForEvent(ctx, event.ArtistName, event.StartsAt)
	switch {
	case err == nil:
		event.TourID = &tour.ID
	case errors.Is(err, domain.ErrNotFound):
		event.TourID = nil
	default:
		return domain.Event{}, err
	}
	return events.Upsert(ctx, event)
}
