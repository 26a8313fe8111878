package webhook_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/tour-manager/internal/domain"
	"github.com/pkordes/tour-manager/internal/webhook"
)

const secret = "s3cr3t"

var body = []byte(`{"event_type":"event.created","data":{}}`)

func TestVerify_Valid(t *testing.T) {
	v := webhook.NewVerifier(secret)
	sig := webhook.Sign(secret, body)

	assert.NoError(t, v.Verify(body, sig))
	assert.NoError(t, v.Verify(body, "sha256="+sig), "prefixed form")
	assert.NoError(t, v.Verify(body, "  "+strings.ToUpper(sig)+" "), "hex is case-insensitive")
}

func TestVerify_Rejections(t *testing.T) {
	v := webhook.NewVerifier(secret)
	valid := webhook.Sign(secret, body)

	tests := []struct {
		name string
		sig  string
		body []byte
		want error
	}{
		{"missing", "", body, webhook.ErrMissingSignature},
		{"not hex", "invalid-signature", body, webhook.ErrMalformedSignature},
		{"short", valid[:10], body, webhook.ErrMalformedSignature},
		{"wrong secret", webhook.Sign("other", body), body, webhook.ErrSignatureMismatch},
		{"tampered body", valid, []byte(`{"event_type":"event.deleted","data":{}}`), webhook.ErrSignatureMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Verify(tc.body, tc.sig)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestVerify_NoSecretRejectsEverything(t *testing.T) {
	v := webhook.NewVerifier("")

	assert.ErrorIs(t, v.Verify(body, webhook.Sign("", body)), webhook.ErrNoSecret)
}
