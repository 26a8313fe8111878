// Package handler implements the HTTP handlers for the tour manager API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, tour.go, webhook.go) but share the same Server struct so
// they can access its dependencies. Routes are registered in router.go.
package handler

import (
	"context"
	"log/slog"

	"github.com/pkordes/tour-manager/internal/domain"
)

// TourServicer defines the business operations the tour handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type TourServicer interface {
	Create(ctx context.Context, tour domain.Tour) (domain.Tour, error)
	GetByID(ctx context.Context, id int64) (domain.Tour, error)
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Tour, int64, error)
	Update(ctx context.Context, tour domain.Tour) (domain.Tour, error)
	Delete(ctx context.Context, id int64) error
	Events(ctx context.Context, id int64) ([]domain.Event, error)
}

// WebhookProcessor applies an authenticated Bandsintown callback.
type WebhookProcessor interface {
	HandleBandsintown(ctx context.Context, deliveryID string, body []byte) (domain.WebhookOutcome, error)
}

// SyncTriggerer starts a background sync.
type SyncTriggerer interface {
	Trigger(trigger domain.SyncTrigger) domain.SyncState
}

// Pinger reports database reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies of every API handler.
// Any dependency may be nil; the matching endpoints then degrade as
// documented on each handler.
type Server struct {
	tours    TourServicer
	webhooks WebhookProcessor
	sync     SyncTriggerer
	db       Pinger
	log      *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(tours TourServicer, webhooks WebhookProcessor, sync SyncTriggerer, db Pinger, log *slog.Logger) *Server {
	return &Server{tours: tours, webhooks: webhooks, sync: sync, db: db, log: log}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler(log *slog.Logger) *Server {
	return NewServer(nil, nil, nil, nil, log)
}
