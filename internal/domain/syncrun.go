package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncTrigger names what started a SyncRun.
type SyncTrigger string

const (
	TriggerWebhook  SyncTrigger = "webhook"
	TriggerSchedule SyncTrigger = "schedule"
	TriggerCLI      SyncTrigger = "cli"
)

// SyncStatus is the state of a SyncRun.
type SyncStatus string

const (
	SyncRunning   SyncStatus = "running"
	SyncSucceeded SyncStatus = "succeeded"
	SyncFailed    SyncStatus = "failed"
)

// SyncState is the answer to a request to start a sync.
type SyncState string

const (
	SyncStarted        SyncState = "started"
	SyncAlreadyRunning SyncState = "already_running"
	SyncDisabled       SyncState = "disabled"
)

// SyncRun records one execution of the daily Bandsintown sync.
// FinishedAt is nil while the run is in progress.
type SyncRun struct {
	ID             uuid.UUID
	Trigger        SyncTrigger
	Status         SyncStatus
	Artists        int
	EventsUpserted int
	Error          string
	StartedAt      time.Time
	FinishedAt     *time.Time
}
