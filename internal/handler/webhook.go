package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/pkordes/tour-manager/internal/domain"
)

// DeliveryIDHeader identifies a webhook delivery for idempotency.
const DeliveryIDHeader = "X-Delivery-Id"

// StatusResponse is the body of webhook and health responses.
type StatusResponse struct {
	Status string `json:"status"`
}

// DailySync handles POST /api/webhooks/daily-sync.
// It never authenticates and always answers 200; the body is ignored.
func (s *Server) DailySync(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		_, _ = io.Copy(io.Discard, r.Body)
	}

	state := domain.SyncDisabled
	if s.sync != nil {
		state = s.sync.Trigger(domain.TriggerWebhook)
	}
	s.log.InfoContext(r.Context(), "daily sync requested", "state", string(state))

	writeJSON(w, http.StatusOK, StatusResponse{Status: string(state)})
}

// Bandsintown handles POST /api/webhooks/bandsintown.
// The router only reaches it once the signature middleware accepted the body.
func (s *Server) Bandsintown(w http.ResponseWriter, r *http.Request) {
	if s.webhooks == nil {
		writeJSON(w, http.StatusOK, StatusResponse{Status: string(domain.OutcomeIgnored)})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "could not read request body")
		return
	}

	outcome, err := s.webhooks.HandleBandsintown(r.Context(), r.Header.Get(DeliveryIDHeader), body)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPayload) {
			writeError(w, http.StatusBadRequest, codeValidation, unwrapMessage(err))
			return
		}
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: string(outcome)})
}
