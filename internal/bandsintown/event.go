package bandsintown

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkordes/tour-manager/internal/domain"
)

// datetimeLayout is the venue-local timestamp format used by the API.
// It carries no zone; values are stored as UTC wall time.
const datetimeLayout = "2006-01-02T15:04:05"

// ID is an identifier the API sends either as a JSON string or a number.
type ID string

// UnmarshalJSON accepts "123", 123 and null. Any other JSON value is an error.
func (i *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("bandsintown: id must be a string or a number, got %s", b)
	}
	*i = ID(n.String())
	return nil
}

func (i ID) String() string { return string(i) }

// Event is one event as returned by the REST API and carried in webhook payloads.
type Event struct {
	ID       ID       `json:"id"`
	ArtistID ID       `json:"artist_id,omitempty"`
	Artist   *Artist  `json:"artist,omitempty"`
	URL      string   `json:"url"`
	Datetime string   `json:"datetime"`
	Venue    Venue    `json:"venue"`
	Lineup   []string `json:"lineup"`
}

// Artist is the optional artist block of an event.
type Artist struct {
	Name string `json:"name"`
}

// Venue is where an event takes place.
type Venue struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// ArtistName returns the artist block name, then the lineup headliner, then fallback.
func (e Event) ArtistName(fallback string) string {
	if e.Artist != nil && strings.TrimSpace(e.Artist.Name) != "" {
		return strings.TrimSpace(e.Artist.Name)
	}
	if len(e.Lineup) > 0 && strings.TrimSpace(e.Lineup[0]) != "" {
		return strings.TrimSpace(e.Lineup[0])
	}
	return fallback
}

// StartsAt parses Datetime. RFC 3339 values with an offset are accepted too.
func (e Event) StartsAt() (time.Time, error) {
	if t, err := time.Parse(datetimeLayout, e.Datetime); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, e.Datetime)
	if err != nil {
		return time.Time{}, fmt.Errorf("bandsintown: event %s: bad datetime %q", e.ID, e.Datetime)
	}
	return t.UTC(), nil
}

// ToDomain converts e into a scheduled domain.Event. TourID is left nil; the
// caller matches tours.
func (e Event) ToDomain(artistFallback string) (domain.Event, error) {
	if e.ID == "" {
		return domain.Event{}, fmt.Errorf("bandsintown: event without id")
	}
	startsAt, err := e.StartsAt()
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		ExternalID: e.ID.String(),
		ArtistName: e.ArtistName(artistFallback),
		VenueName:  e.Venue.Name,
		City:       e.Venue.City,
		Country:    e.Venue.Country,
		StartsAt:   startsAt,
		URL:        e.URL,
		Status:     domain.EventScheduled,
	}, nil
}

// WebhookPayload is the body of a webhook callback.
type WebhookPayload struct {
	EventType string `json:"event_type"`
	Data      Event  `json:"data"`
}
