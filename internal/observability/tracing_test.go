package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pkordes/tour-manager/internal/observability"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	return sr
}

func TestTracingMiddleware_NamesSpanByRoutePattern(t *testing.T) {
	sr := recordSpans(t)

	r := chi.NewRouter()
	r.Use(observability.TracingMiddleware)
	r.Get("/api/tours/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tours/"+id, nil))
	}

	spans := sr.Ended()
	require.Len(t, spans, 3)
	for _, s := range spans {
		assert.Equal(t, "GET /api/tours/{id}", s.Name())
		assert.Contains(t, s.Attributes(), attribute.String("http.route", "/api/tours/{id}"))
	}
}

func TestTracingMiddleware_UnmatchedRouteKeepsMethodName(t *testing.T) {
	sr := recordSpans(t)

	r := chi.NewRouter()
	r.Use(observability.TracingMiddleware)
	r.Get("/api/tours", func(w http.ResponseWriter, _ *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/42", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET", spans[0].Name())
}
