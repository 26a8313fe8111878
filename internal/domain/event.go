package domain

import "time"

// EventStatus is the lifecycle state of an Event.
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventCancelled EventStatus = "cancelled"
)

// Event is a single show. Events are usually sourced from Bandsintown, either
// pushed through the webhook or pulled by the daily sync, and are keyed by
// ExternalID. TourID is nil when no tour matched the artist and date.
type Event struct {
	ID         int64
	ExternalID string
	TourID     *int64
	ArtistName string
	VenueName  string
	City       string
	Country    string
	StartsAt   time.Time
	URL        string
	Status     EventStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
