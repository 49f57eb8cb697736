package gateway_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"adspace-booking/internal/gateway"

	"github.com/stretchr/testify/assert"
)

func expectedSignature(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerify_ValidSignature(t *testing.T) {
	v := gateway.NewSignatureVerifier("key_secret", "hook_secret")
	sig := expectedSignature("key_secret", "order_Abc123|pay_Xyz789")

	assert.Equal(t, sig, v.Sign("order_Abc123", "pay_Xyz789"))
	assert.True(t, v.Verify("order_Abc123", "pay_Xyz789", sig))
}

func TestVerify_FlippedByteFails(t *testing.T) {
	v := gateway.NewSignatureVerifier("key_secret", "hook_secret")
	sig := []byte(v.Sign("order_Abc123", "pay_Xyz789"))

	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}

	assert.False(t, v.Verify("order_Abc123", "pay_Xyz789", string(sig)))
}

func TestVerify_FailsClosedOnMalformedInput(t *testing.T) {
	v := gateway.NewSignatureVerifier("key_secret", "hook_secret")
	valid := v.Sign("order_1", "pay_1")

	assert.False(t, v.Verify("", "pay_1", valid))
	assert.False(t, v.Verify("order_1", "", valid))
	assert.False(t, v.Verify("order_1", "pay_1", ""))
	assert.False(t, v.Verify("order_1", "pay_1", "not-hex"))
	assert.False(t, v.Verify("order_1", "pay_1", valid[:10]))
	assert.False(t, v.Verify("order_1|x", "pay_1", valid))
	assert.False(t, v.Verify("order_1", "pay_1", valid+"00"))

	unset := gateway.NewSignatureVerifier("", "")
	assert.False(t, unset.Verify("order_1", "pay_1", expectedSignature("", "order_1|pay_1")))
}

func TestVerify_WrongSecret(t *testing.T) {
	v := gateway.NewSignatureVerifier("key_secret", "hook_secret")
	assert.False(t, v.Verify("order_1", "pay_1", expectedSignature("other", "order_1|pay_1")))
}

func TestVerifyWebhook(t *testing.T) {
	v := gateway.NewSignatureVerifier("key_secret", "hook_secret")
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, v.VerifyWebhook(body, expectedSignature("hook_secret", string(body))))
	assert.False(t, v.VerifyWebhook(body, expectedSignature("key_secret", string(body))))
	assert.False(t, v.VerifyWebhook(nil, expectedSignature("hook_secret", "")))
}
