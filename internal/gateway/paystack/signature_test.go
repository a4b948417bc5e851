package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidSignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success","data":{"reference":"GIG-abc"}}`)
	secret := "sk_test_secret"

	assert.True(t, ValidSignature(payload, sign(payload, secret), secret))
}

func TestValidSignature_WrongSecret(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)

	assert.False(t, ValidSignature(payload, sign(payload, "other_secret"), "sk_test_secret"))
}

func TestValidSignature_TamperedPayload(t *testing.T) {
	payload := []byte(`{"amount":500000}`)
	secret := "sk_test_secret"
	signature := sign(payload, secret)

	tampered := []byte(`{"amount":900000}`)
	assert.False(t, ValidSignature(tampered, signature, secret))
}

func TestValidSignature_EmptySignature(t *testing.T) {
	assert.False(t, ValidSignature([]byte(`{}`), "", "sk_test_secret"))
}

func TestSubunits_RoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("4999.99")
	assert.Equal(t, int64(499999), toSubunits(amount))
	assert.True(t, FromSubunits(499999).Equal(amount))

	// Whole rand amounts stay exact both ways.
	assert.Equal(t, int64(500000), toSubunits(decimal.NewFromInt(5000)))
	assert.True(t, FromSubunits(500000).Equal(decimal.NewFromInt(5000)))
}
