package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	// Registry owns the collectors. A private registry lets tests build many
	// Metrics without duplicate-registration panics.
	Registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	webhookDeliveries *prometheus.CounterVec
	syncRuns          *prometheus.CounterVec
	syncEvents        prometheus.Counter
	syncLastSuccess   prometheus.Gauge
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	externalErrors    *prometheus.CounterVec
}

// NewMetrics creates a registry with Go runtime collectors and all service metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tours_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tours_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		webhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tours_webhook_deliveries_total",
			Help: "Inbound webhook deliveries by provider and outcome.",
		}, []string{"provider", "outcome"}),
		syncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tours_sync_runs_total",
			Help: "Finished sync runs by status.",
		}, []string{"status"}),
		syncEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "tours_sync_events_upserted_total",
			Help: "Events upserted by sync runs.",
		}),
		syncLastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tours_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync run.",
		}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tours_cache_hits_total",
			Help: "Cache hits by cache name.",
		}, []string{"cache"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tours_cache_misses_total",
			Help: "Cache misses by cache name.",
		}, []string{"cache"}),
		externalErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tours_external_errors_total",
			Help: "Errors from external services.",
		}, []string{"service"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request count and latency labelled by the chi route
// pattern, so /api/tours/1 and /api/tours/2 share one series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// IncrWebhook counts one webhook delivery outcome.
func (m *Metrics) IncrWebhook(provider, outcome string) {
	m.webhookDeliveries.WithLabelValues(provider, outcome).Inc()
}

// RecordSyncRun counts a finished run and, on success, stamps the success gauge.
func (m *Metrics) RecordSyncRun(status string, eventsUpserted int, finishedAt time.Time) {
	m.syncRuns.WithLabelValues(status).Inc()
	m.syncEvents.Add(float64(eventsUpserted))
	if status == "succeeded" {
		m.syncLastSuccess.Set(float64(finishedAt.Unix()))
	}
}

// IncrCacheHit increments the hit counter for cache.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the miss counter for cache.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// SyncSnapshot is a point-in-time view of the sync counters.
type SyncSnapshot struct {
	Succeeded      float64
	Failed         float64
	EventsUpserted float64
}

// SyncSnapshot reads the current sync counter values.
func (m *Metrics) SyncSnapshot() SyncSnapshot {
	return SyncSnapshot{
		Succeeded:      counterValue(m.syncRuns.WithLabelValues("succeeded")),
		Failed:         counterValue(m.syncRuns.WithLabelValues("failed")),
		EventsUpserted: counterValue(m.syncEvents),
	}
}

// counterValue extracts the current value of a single counter.
func counterValue(c prometheus.Counter) float64 {
	pb := &dto.Metric{}
	if err := c.Write(pb); err != nil {
		return 0
	}
	if pb.Counter != nil && pb.Counter.Value != nil {
		return *pb.Counter.Value
	}
	return 0
}
