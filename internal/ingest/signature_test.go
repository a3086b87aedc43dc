package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

// hmacSHA256 duplicates the HMAC construction without crypto/hmac, so the
// test does not just repeat the production code.
func hmacSHA256(key, data []byte) []byte {
	blockSize := 64
	if len(key) > blockSize {
		tmp := sha256.Sum256(key)
		key = tmp[:]
	}
	if len(key) < blockSize {
		key = append(key, make([]byte, blockSize-len(key))...)
	}
	ipad := make([]byte, blockSize)
	opad := make([]byte, blockSize)
	for i := 0; i < blockSize; i++ {
		ipad[i] = key[i] ^ 0x36
		opad[i] = key[i] ^ 0x5c
	}

	h := sha256.New()
	h.Write(ipad)
	h.Write(data)
	inner := h.Sum(nil)

	h2 := sha256.New()
	h2.Write(opad)
	h2.Write(inner)
	return h2.Sum(nil)
}

func TestVerifySignature_Valid(t *testing.T) {
	secret := "relay-secret"
	body := []byte(`{"events":[]}`)
	sig := hex.EncodeToString(hmacSHA256([]byte(secret), body))

	if sig != Sign(body, secret) {
		t.Fatalf("Sign disagrees with reference HMAC")
	}
	if err := VerifySignature(body, sig, secret); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := VerifySignature(body, "sha256="+sig, secret); err != nil {
		t.Fatalf("expected prefixed signature to verify, got %v", err)
	}
}

func TestVerifySignature_Invalid(t *testing.T) {
	secret := "relay-secret"
	body := []byte(`{"events":[]}`)
	sig := Sign(body, secret)

	cases := map[string]struct {
		body   []byte
		header string
		secret string
	}{
		"tampered body": {body: []byte(`{"events":[{}]}`), header: sig, secret: secret},
		"wrong secret":  {body: body, header: sig, secret: "other"},
		"not hex":       {body: body, header: "zz", secret: secret},
		"no secret":     {body: body, header: sig, secret: ""},
	}
	for name, tc := range cases {
		if err := VerifySignature(tc.body, tc.header, tc.secret); err != ErrInvalidSignature {
			t.Errorf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

func TestVerifySignature_Missing(t *testing.T) {
	if err := VerifySignature([]byte("x"), "  ", "secret"); err != ErrMissingSignature {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}
