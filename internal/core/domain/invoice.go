package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusConfirmed InvoiceStatus = "CONFIRMED"
	InvoiceStatusUnderpaid InvoiceStatus = "UNDERPAID"
	InvoiceStatusExpired   InvoiceStatus = "EXPIRED"
)

// Invoice is a merchant's request for payment of a fiat amount in a
// specific crypto asset. Invoices are never deleted; terminal statuses
// are retained for audit.
type Invoice struct {
	ID                    string          `json:"id"`
	MerchantID            uuid.UUID       `json:"merchant_id"`
	StoreID               uuid.UUID       `json:"store_id"`
	ExternalID            *string         `json:"external_id,omitempty"`
	Currency              string          `json:"currency"` // fixed to USD
	AmountFiat            decimal.Decimal `json:"amount_fiat"`
	Asset                 Asset           `json:"asset"`
	AmountCrypto          decimal.Decimal `json:"amount_crypto"`
	Rate                  decimal.Decimal `json:"rate"` // locked USD rate at creation
	Address               string          `json:"address"`
	Status                InvoiceStatus   `json:"status"`
	StatusToken           string          `json:"-"` // opaque secret, never exposed in bodies
	ConfirmationsRequired int             `json:"confirmations_required"`
	ConfirmationsSeen     int             `json:"confirmations_seen"`
	ExpiresAt             time.Time       `json:"expires_at"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// IsTerminal returns true if the invoice can no longer change state.
func (i *Invoice) IsTerminal() bool {
	return i.Status == InvoiceStatusConfirmed ||
		i.Status == InvoiceStatusExpired ||
		i.Status == InvoiceStatusUnderpaid
}

// IsExpired reports whether the invoice's payment window has passed.
func (i *Invoice) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// ConfirmationsRemaining returns how many confirmations are still needed.
func (i *Invoice) ConfirmationsRemaining() int {
	remaining := i.ConfirmationsRequired - i.ConfirmationsSeen
	if remaining < 0 {
		return 0
	}
	return remaining
}

// StatusForConfirmations applies the threshold rule: a detected payment
// moves the invoice straight to CONFIRMED when confirmations already meet
// the requirement, otherwise to PAID.
func (i *Invoice) StatusForConfirmations(confirmations int) InvoiceStatus {
	if confirmations >= i.ConfirmationsRequired {
		return InvoiceStatusConfirmed
	}
	return InvoiceStatusPaid
}

// ConfirmationThresholds holds the per-asset confirmation policy.
type ConfirmationThresholds struct {
	PaidAt      int `json:"paid_at"`
	ConfirmedAt int `json:"confirmed_at"`
}

// DefaultConfirmationPolicy is applied when a store has no policy for
// the invoiced asset.
var DefaultConfirmationPolicy = map[Asset]ConfirmationThresholds{
	AssetBTC:       {PaidAt: 1, ConfirmedAt: 3},
	AssetETH:       {PaidAt: 1, ConfirmedAt: 12},
	AssetBNB:       {PaidAt: 1, ConfirmedAt: 15},
	AssetUSDTERC20: {PaidAt: 1, ConfirmedAt: 12},
	AssetUSDTBEP20: {PaidAt: 1, ConfirmedAt: 15},
	AssetUSDTTRC20: {PaidAt: 1, ConfirmedAt: 20},
}

// ConfirmationsRequiredFor resolves the confirmed-at threshold for an asset,
// preferring the store policy over the default table.
func ConfirmationsRequiredFor(asset Asset, policy map[Asset]ConfirmationThresholds) int {
	if policy != nil {
		if t, ok := policy[asset]; ok {
			return t.ConfirmedAt
		}
	}
	if t, ok := DefaultConfirmationPolicy[asset]; ok {
		return t.ConfirmedAt
	}
	return 12
}

// CalculateFee returns the platform fee portion of a gross amount,
// rounded to 8 decimal places.
func CalculateFee(gross decimal.Decimal, feePct decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return gross.Mul(feePct).Div(hundred).Round(8)
}
