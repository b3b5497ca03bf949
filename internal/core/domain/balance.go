package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdminOwnerID is the reserved balance owner collecting platform fees.
const AdminOwnerID = "admin"

// Balance tracks the available and pending funds for one (owner, asset)
// pair. Owner is either a merchant ID or AdminOwnerID. Mutated only inside
// ledger transactions so a credit/debit pair applies atomically.
type Balance struct {
	OwnerID   string          `json:"owner_id"`
	Asset     Asset           `json:"asset"`
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Withdrawal is a recorded intent to move merchant funds to an external
// address. Signing and broadcasting are out of scope; the record stays
// PENDING until an operator settles it.
type Withdrawal struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchant_id"`
	Asset      Asset           `json:"asset"`
	Amount     decimal.Decimal `json:"amount"`
	Address    string          `json:"address"`
	Status     string          `json:"status"`
	TxID       *string         `json:"txid,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Withdrawal statuses.
const (
	WithdrawalStatusPending = "PENDING"
	WithdrawalStatusSent    = "SENT"
)
