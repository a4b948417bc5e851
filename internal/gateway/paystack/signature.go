package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// ValidSignature checks the webhook HMAC-SHA512 signature over the raw
// payload. Comparison is constant time.
func ValidSignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
