package reconcile

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix is the scheme tag carried in the BTCPay-Sig header
const signaturePrefix = "sha256="

// VerifySignature checks the HMAC-SHA256 of the raw webhook body against the
// signature header value ("sha256=<hex>"). Comparison is constant time; any
// parse failure or mismatch returns false.
func VerifySignature(rawBody []byte, signatureHeader, sharedSecret string) bool {
	if sharedSecret == "" {
		return false
	}

	if !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(sharedSecret))
	mac.Write(rawBody)

	return hmac.Equal(provided, mac.Sum(nil))
}

// SignPayload computes the signature header value for a payload. Used by
// tests and by the webhook registration round-trip check.
func SignPayload(payload []byte, sharedSecret string) string {
	mac := hmac.New(sha256.New, []byte(sharedSecret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
