package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()

	sig := svc.Sign("secret-key", "hello world")
	assert.Len(t, sig, 64, "hex-encoded SHA-256 is 64 chars")
	assert.True(t, svc.Verify("secret-key", "hello world", sig))
}

func TestHMACSignatureService_Deterministic(t *testing.T) {
	svc := NewHMACSignatureService()

	assert.Equal(t, svc.Sign("k", "payload"), svc.Sign("k", "payload"))
}

func TestHMACSignatureService_Verify_WrongSecret(t *testing.T) {
	svc := NewHMACSignatureService()

	sig := svc.Sign("secret-a", "payload")
	assert.False(t, svc.Verify("secret-b", "payload", sig))
}

func TestHMACSignatureService_Verify_TamperedPayload(t *testing.T) {
	svc := NewHMACSignatureService()

	sig := svc.Sign("secret", "payload")
	assert.False(t, svc.Verify("secret", "payload-tampered", sig))
}

func TestSigningString(t *testing.T) {
	assert.Equal(t, `1700000000.{"type":"test"}`, SigningString(1700000000, `{"type":"test"}`))
}

func TestHMACSignatureService_KnownVector(t *testing.T) {
	svc := NewHMACSignatureService()

	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	sig := svc.Sign("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", sig)
}
