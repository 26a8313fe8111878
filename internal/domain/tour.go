// Package domain contains the core data types for the tour manager.
// This package has zero external dependencies and is imported by every other
// internal package (repo, service, handler, web).
package domain

import "time"

// MaxTourNameLength bounds Tour.Name after trimming.
const MaxTourNameLength = 200

// Tour is a scheduled span of shows for one artist.
// StartDate and EndDate are calendar dates (midnight UTC) and are both optional.
type Tour struct {
	ID         int64
	Name       string
	ArtistName string
	StartDate  *time.Time
	EndDate    *time.Time
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Contains reports whether t falls within the tour's date range.
// An open bound matches everything on that side. Comparison is by calendar day.
func (t Tour) Contains(at time.Time) bool {
	day := TruncateDay(at)
	if t.StartDate != nil && day.Before(TruncateDay(*t.StartDate)) {
		return false
	}
	if t.EndDate != nil && day.After(TruncateDay(*t.EndDate)) {
		return false
	}
	return true
}

// TruncateDay returns midnight UTC of the calendar day of t.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
