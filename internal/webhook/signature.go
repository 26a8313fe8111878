// Package webhook authenticates inbound provider callbacks.
//
// A signature is the lowercase hex HMAC-SHA256 of the raw request body keyed
// with the shared secret, sent in the X-Signature header. A "sha256=" prefix
// is accepted.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkordes/tour-manager/internal/domain"
)

// SignatureHeader carries the body signature.
const SignatureHeader = "X-Signature"

const signaturePrefix = "sha256="

// Every verification error wraps domain.ErrUnauthorized.
var (
	ErrNoSecret           = fmt.Errorf("webhook: signing secret not configured: %w", domain.ErrUnauthorized)
	ErrMissingSignature   = fmt.Errorf("webhook: missing signature: %w", domain.ErrUnauthorized)
	ErrMalformedSignature = fmt.Errorf("webhook: malformed signature: %w", domain.ErrUnauthorized)
	ErrSignatureMismatch  = fmt.Errorf("webhook: signature mismatch: %w", domain.ErrUnauthorized)
)

// Verifier checks body signatures against one shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for secret. An empty secret yields a
// Verifier that rejects everything.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify returns nil when signature is a valid signature of body.
func (v *Verifier) Verify(body []byte, signature string) error {
	if len(v.secret) == 0 {
		return ErrNoSecret
	}

	sig := strings.TrimSpace(signature)
	if sig == "" {
		return ErrMissingSignature
	}
	if len(sig) > len(signaturePrefix) && strings.EqualFold(sig[:len(signaturePrefix)], signaturePrefix) {
		sig = sig[len(signaturePrefix):]
	}

	got, err := hex.DecodeString(sig)
	if err != nil || len(got) != sha256.Size {
		return ErrMalformedSignature
	}

	if !hmac.Equal(got, mac(v.secret, body)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign returns the hex signature of body under secret.
func Sign(secret string, body []byte) string {
	return hex.EncodeToString(mac([]byte(secret), body))
}

func mac(secret, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return h.Sum(nil)
}
