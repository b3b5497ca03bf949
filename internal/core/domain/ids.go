package domain

import (
	"crypto/rand"
	"encoding/hex"
)

func randomHex(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		panic("domain: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// NewInvoiceID returns a fresh invoice identifier (inv_ prefix).
func NewInvoiceID() string { return "inv_" + randomHex(16) }

// NewPaymentID returns a fresh payment identifier (pay_ prefix).
func NewPaymentID() string { return "pay_" + randomHex(16) }

// NewWithdrawalID returns a fresh withdrawal identifier (wd_ prefix).
func NewWithdrawalID() string { return "wd_" + randomHex(16) }

// NewStatusToken returns the opaque secret embedded in an invoice's
// status URL. Distinct from any merchant credential.
func NewStatusToken() string { return randomHex(32) }
