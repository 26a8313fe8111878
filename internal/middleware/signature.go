package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pkordes/tour-manager/internal/webhook"
)

// SignatureVerifier is the check NewSignatureVerifier delegates to.
type SignatureVerifier interface {
	Verify(body []byte, signature string) error
}

// NewSignatureVerifier returns a middleware that authenticates webhook
// callbacks. The body is read in full, checked against the X-Signature header
// and restored for the next handler. Any failure answers 401 and stops the
// chain. onReject, when non-nil, is called once per rejected request.
func NewSignatureVerifier(v SignatureVerifier, log *slog.Logger, onReject func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				b, err := io.ReadAll(r.Body)
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
						return
					}
					http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
					return
				}
				body = b
			}

			if err := v.Verify(body, r.Header.Get(webhook.SignatureHeader)); err != nil {
				log.WarnContext(r.Context(), "webhook rejected",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				if onReject != nil {
					onReject()
				}
				writeUnauthorized(w)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthorized", "message": "invalid signature"},
	})
}
