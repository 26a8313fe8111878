package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pkordes/tour-manager/internal/domain"
)

// Error codes carried in ErrorResponse.
const (
	codeNotFound   = "not_found"
	codeValidation = "validation_error"
	codeInvalidID  = "invalid_id"
	codeInternal   = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is a machine-readable code plus a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// notFound writes a 404. The caller supplies the message (e.g. "tour not found")
// because the handler is the layer that knows what was being looked up.
func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, codeNotFound, message)
}

// invalidID writes the 400 returned for a non-numeric or non-positive id.
func invalidID(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, codeInvalidID, "Invalid tour ID")
}

// validation writes a 422 for a domain validation failure. The message is
// extracted from the wrapped domain.ErrValidation error.
func validation(w http.ResponseWriter, err error) {
	writeError(w, http.StatusUnprocessableEntity, codeValidation, unwrapMessage(err))
}

// internalError logs err and writes a 500 without leaking its text.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.TourService.Create: validation error: name is required" → "name is required"
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{domain.ErrValidation, domain.ErrInvalidPayload} {
		if !errors.Is(err, sentinel) {
			continue
		}
		if _, rest, ok := strings.Cut(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}
