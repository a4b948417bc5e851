package truzo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ValidSignature checks the webhook HMAC-SHA256 signature over the raw
// payload in constant time.
func ValidSignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
