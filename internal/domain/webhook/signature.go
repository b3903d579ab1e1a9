package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Signature"

var (
	ErrMissingSignature   = errors.New("missing signature or secret")
	ErrMalformedSignature = errors.New("verification failed: signature is not valid hex")
	ErrSignatureMismatch  = errors.New("invalid signature")
)

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against the raw body. The signature may carry a
// "sha256=" prefix. Comparison is constant time.
func Verify(signature string, body []byte, secret string) error {
	if signature == "" || secret == "" {
		return ErrMissingSignature
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}
