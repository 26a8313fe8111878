package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pkordes/tour-manager/internal/domain"
	"github.com/pkordes/tour-manager/internal/middleware"
	"github.com/pkordes/tour-manager/internal/observability"
	"github.com/pkordes/tour-manager/internal/webhook"
)

// Pages registers server-rendered routes on the router.
type Pages interface {
	Register(r chi.Router)
}

// RouterOptions carries everything NewRouter mounts besides the Server.
type RouterOptions struct {
	// Verifier authenticates Bandsintown callbacks. When nil every callback
	// is rejected.
	Verifier middleware.SignatureVerifier
	// CORSOrigins lists allowed cross-origin request origins.
	CORSOrigins []string
	// MaxBodyBytes caps request bodies. Zero disables the limit.
	MaxBodyBytes int64
	// Metrics, when set, instruments every request and serves /metrics.
	Metrics *observability.Metrics
	// OpenAPI, when set, is served at /openapi.yaml.
	OpenAPI []byte
	// Pages, when set, registers the HTML tour pages.
	Pages Pages
}

// NewRouter creates the HTTP router with all routes and middleware.
// Middleware is applied in order: RequestID → RealIP → Logger → Tracing →
// Metrics → Recoverer → CORS → MaxBodySize.
func NewRouter(s *Server, opts RouterOptions, log *slog.Logger) http.Handler {
	if opts.Verifier == nil {
		opts.Verifier = webhook.NewVerifier("")
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(log))
	r.Use(observability.TracingMiddleware)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(opts.CORSOrigins))
	if opts.MaxBodyBytes > 0 {
		r.Use(middleware.NewMaxBodySizeHandler(opts.MaxBodyBytes))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", s.GetHealth)
	r.Get("/readyz", s.GetReady)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}
	if opts.OpenAPI != nil {
		r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(opts.OpenAPI)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/tours", func(r chi.Router) {
			r.Post("/", s.CreateTour)
			r.Get("/", s.ListTours)
			r.Get("/{id}", s.GetTour)
			r.Put("/{id}", s.UpdateTour)
			r.Delete("/{id}", s.DeleteTour)
			r.Get("/{id}/events", s.ListTourEvents)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/daily-sync", s.DailySync)

			var onReject func()
			if opts.Metrics != nil {
				onReject = func() { opts.Metrics.IncrWebhook(domain.ProviderBandsintown, "unauthorized") }
			}
			r.With(middleware.NewSignatureVerifier(opts.Verifier, log, onReject)).
				Post("/bandsintown", s.Bandsintown)
		})
	})

	if opts.Pages != nil {
		opts.Pages.Register(r)
	}

	return r
}
