package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Digidrop-Signature"

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Sign returns the header value a relay sends for body.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks header against the HMAC of body under secret. The
// header may carry a "sha256=" prefix. With an empty secret no signature
// verifies.
func VerifySignature(body []byte, header, secret string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}
	if secret == "" {
		return ErrInvalidSignature
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return ErrInvalidSignature
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	if !hmac.Equal(h.Sum(nil), provided) {
		return ErrInvalidSignature
	}
	return nil
}
