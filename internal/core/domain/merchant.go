package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MerchantStatus represents the state of a merchant account.
type MerchantStatus string

const (
	MerchantStatusActive    MerchantStatus = "active"
	MerchantStatusSuspended MerchantStatus = "suspended"
)

// Merchant represents a registered merchant. CustomFeePct, when set,
// overrides the global platform fee for this merchant.
type Merchant struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Status        MerchantStatus   `json:"status"`
	WebhookURL    *string          `json:"webhook_url,omitempty"`
	WebhookSecret *string          `json:"-"` // never expose
	CustomFeePct  *decimal.Decimal `json:"custom_fee_pct,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsActive returns true if the merchant account is active.
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}

// Store is a merchant's checkout surface. Deposit addresses are derived
// per store; the confirmation policy applies per invoiced asset.
type Store struct {
	ID            uuid.UUID                        `json:"id"`
	MerchantID    uuid.UUID                        `json:"merchant_id"`
	Name          string                           `json:"name"`
	ConfirmPolicy map[Asset]ConfirmationThresholds `json:"confirm_policy,omitempty"`
	CreatedAt     time.Time                        `json:"created_at"`
}
