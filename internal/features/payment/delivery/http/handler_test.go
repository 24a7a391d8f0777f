package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signedContext(t *testing.T, body []byte, header, value string) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/payments/webhook", bytes.NewReader(body))
	if header != "" {
		c.Request.Header.Set(header, value)
	}
	return c
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_AcceptsEveryKnownHeader(t *testing.T) {
	const secret = "webhook-secret"
	h := &PaymentHandler{webhookSecret: secret}
	body := []byte(`{"payment_hash":"abc","paid":true}`)
	valid := sign(secret, body)

	for _, header := range signatureHeaders {
		c := signedContext(t, body, header, valid)
		assert.True(t, h.verifySignature(c, body), header)
	}
}

func TestVerifySignature_StripsSha256Prefix(t *testing.T) {
	const secret = "webhook-secret"
	h := &PaymentHandler{webhookSecret: secret}
	body := []byte(`{"paid":true}`)

	c := signedContext(t, body, "X-LNbits-Signature", "sha256="+sign(secret, body))
	assert.True(t, h.verifySignature(c, body))

	// Лишние пробелы вокруг значения тоже не мешают.
	c = signedContext(t, body, "X-LNbits-Signature", "  sha256="+sign(secret, body))
	assert.True(t, h.verifySignature(c, body))
}

func TestVerifySignature_Rejections(t *testing.T) {
	const secret = "webhook-secret"
	body := []byte(`{"paid":true}`)

	tests := []struct {
		name   string
		secret string
		header string
		value  string
	}{
		{"empty secret", "", "X-LNbits-Signature", sign(secret, body)},
		{"missing header", secret, "", ""},
		{"wrong key", secret, "X-LNbits-Signature", sign("other-secret", body)},
		{"tampered body", secret, "X-LNbits-Signature", sign(secret, []byte(`{"paid":false}`))},
		{"not hex", secret, "X-LNbits-Signature", "zz-not-hex"},
		{"truncated", secret, "X-LNbits-Signature", sign(secret, body)[:16]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &PaymentHandler{webhookSecret: tt.secret}
			c := signedContext(t, body, tt.header, tt.value)
			assert.False(t, h.verifySignature(c, body))
		})
	}
}
