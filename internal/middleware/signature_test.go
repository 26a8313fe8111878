package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tour-manager/internal/middleware"
	"github.com/pkordes/tour-manager/internal/observability"
	"github.com/pkordes/tour-manager/internal/webhook"
)

const testSecret = "test-secret"

// echoHandler copies the request body into the response so tests can check
// that the middleware restored it.
var echoHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
})

func newSigned(t *testing.T, onReject func()) http.Handler {
	t.Helper()
	v := webhook.NewVerifier(testSecret)
	return middleware.NewSignatureVerifier(v, observability.NewNopLogger(), onReject)(echoHandler)
}

func TestSignatureVerifier_ValidPassesBodyThrough(t *testing.T) {
	body := []byte(`{"event_type":"event.created","data":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/bandsintown", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(testSecret, body))
	rec := httptest.NewRecorder()

	newSigned(t, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(body), rec.Body.String())
}

func TestSignatureVerifier_InvalidReturns401(t *testing.T) {
	rejected := 0
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/bandsintown",
		strings.NewReader(`{"event_type":"event.created","data":{}}`))
	req.Header.Set(webhook.SignatureHeader, "invalid-signature")
	rec := httptest.NewRecorder()

	newSigned(t, func() { rejected++ }).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, rejected)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "unauthorized", resp.Error.Code)
}

func TestSignatureVerifier_MissingHeaderReturns401(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/bandsintown", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	newSigned(t, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignatureVerifier_OversizedBodyReturns413(t *testing.T) {
	h := middleware.NewMaxBodySizeHandler(10)(newSigned(t, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/bandsintown", strings.NewReader(strings.Repeat("x", 50)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
