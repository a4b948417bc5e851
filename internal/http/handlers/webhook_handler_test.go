package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signSHA512(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func signSHA256(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler_Card_RejectsBadSignature(t *testing.T) {
	r := testRouter()
	handler := NewWebhookHandler(nil, "card-secret", "escrow-secret")
	r.POST("/webhooks/paystack", handler.HandleCardWebhook)

	payload := []byte(`{"event":"charge.success","data":{"reference":"GIG-x","amount":500000}}`)
	req, _ := http.NewRequest("POST", "/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("X-Paystack-Signature", signSHA512(payload, "wrong-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_Card_IgnoresUnknownEvent(t *testing.T) {
	r := testRouter()
	handler := NewWebhookHandler(nil, "card-secret", "escrow-secret")
	r.POST("/webhooks/paystack", handler.HandleCardWebhook)

	payload := []byte(`{"event":"subscription.create","data":{}}`)
	req, _ := http.NewRequest("POST", "/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("X-Paystack-Signature", signSHA512(payload, "card-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookHandler_Escrow_RejectsBadSignature(t *testing.T) {
	r := testRouter()
	handler := NewWebhookHandler(nil, "card-secret", "escrow-secret")
	r.POST("/webhooks/truzo", handler.HandleEscrowWebhook)

	payload := []byte(`{"event":"transaction.funded","transaction":{"id":"txn-1"}}`)
	req, _ := http.NewRequest("POST", "/webhooks/truzo", bytes.NewReader(payload))
	req.Header.Set("X-Truzo-Signature", signSHA256(payload, "wrong-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_Escrow_RejectsMalformedBody(t *testing.T) {
	r := testRouter()
	handler := NewWebhookHandler(nil, "card-secret", "escrow-secret")
	r.POST("/webhooks/truzo", handler.HandleEscrowWebhook)

	payload := []byte(`not json`)
	req, _ := http.NewRequest("POST", "/webhooks/truzo", bytes.NewReader(payload))
	req.Header.Set("X-Truzo-Signature", signSHA256(payload, "escrow-secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
