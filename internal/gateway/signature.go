package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureVerifier checks Razorpay callback and webhook signatures.
// It performs no I/O and never panics: malformed input simply fails verification.
type SignatureVerifier struct {
	keySecret     []byte
	webhookSecret []byte
}

func NewSignatureVerifier(keySecret, webhookSecret string) *SignatureVerifier {
	return &SignatureVerifier{
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
	}
}

// Sign computes hex(HMAC-SHA256(orderID|paymentID)) with the key secret.
func (v *SignatureVerifier) Sign(orderID, paymentID string) string {
	return sign(v.keySecret, []byte(orderID+"|"+paymentID))
}

// Verify reports whether signature matches the checkout callback for orderID and paymentID.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) bool {
	if len(v.keySecret) == 0 || orderID == "" || paymentID == "" {
		return false
	}
	if strings.Contains(orderID, "|") || strings.Contains(paymentID, "|") {
		return false
	}
	return equalHex(v.Sign(orderID, paymentID), signature)
}

// VerifyWebhook checks the X-Razorpay-Signature header over the raw body.
func (v *SignatureVerifier) VerifyWebhook(body []byte, signature string) bool {
	if len(v.webhookSecret) == 0 || len(body) == 0 {
		return false
	}
	return equalHex(sign(v.webhookSecret, body), signature)
}

func sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func equalHex(expected, supplied string) bool {
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(supplied)))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	want, _ := hex.DecodeString(expected)
	return hmac.Equal(want, got)
}
