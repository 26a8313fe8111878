package handler

import (
	"context"
	"net/http"
	"time"
)

const readyTimeout = 2 * time.Second

// GetHealth handles GET /healthz.
// It returns HTTP 200 with {"status":"ok"} when the server is running.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// GetReady handles GET /readyz.
// It pings the database and answers 503 when it is unreachable.
func (s *Server) GetReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.log.WarnContext(r.Context(), "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}
