package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment records one detected on-chain transaction satisfying an invoice.
// The (txid, invoice ID) pair is unique: a transaction is recorded at most
// once per invoice. Confirmations are refreshed by later poll cycles.
type Payment struct {
	ID            string          `json:"id"`
	InvoiceID     string          `json:"invoice_id"`
	MerchantID    uuid.UUID       `json:"merchant_id"`
	Asset         Asset           `json:"asset"`
	TxID          string          `json:"txid"`
	BlockHeight   int64           `json:"block_height"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int             `json:"confirmations"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ChainTransaction is a transaction as reported by a blockchain data
// provider, before it is matched against an invoice.
type ChainTransaction struct {
	TxID          string          `json:"txid"`
	BlockHeight   int64           `json:"block_height"`
	Confirmations int             `json:"confirmations"`
	Amount        decimal.Decimal `json:"amount"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Asset         Asset           `json:"asset"`
	Timestamp     int64           `json:"timestamp"`
}
