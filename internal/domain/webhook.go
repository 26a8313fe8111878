package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProviderBandsintown is the provider name stored with Bandsintown deliveries.
const ProviderBandsintown = "bandsintown"

// Bandsintown webhook event types.
const (
	EventTypeCreated   = "event.created"
	EventTypeUpdated   = "event.updated"
	EventTypeDeleted   = "event.deleted"
	EventTypeCancelled = "event.cancelled"
)

// WebhookDelivery is the stored record of one authenticated webhook callback.
// DeliveryKey is unique per provider and makes redelivery idempotent.
type WebhookDelivery struct {
	ID          uuid.UUID
	Provider    string
	DeliveryKey string
	EventType   string
	ExternalID  string
	Payload     json.RawMessage
	ReceivedAt  time.Time
}

// WebhookOutcome is what processing a webhook delivery did.
type WebhookOutcome string

const (
	OutcomeProcessed WebhookOutcome = "processed"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeDuplicate WebhookOutcome = "duplicate"
)
