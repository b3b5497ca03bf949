package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WebhookStatus represents the delivery state of a webhook.
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "PENDING"
	WebhookStatusRetrying  WebhookStatus = "RETRYING"
	WebhookStatusDelivered WebhookStatus = "DELIVERED"
	WebhookStatusFailed    WebhookStatus = "FAILED"
)

// Webhook event types.
const (
	WebhookTypePaymentDetected  = "payment.detected"
	WebhookTypePaymentConfirmed = "payment.confirmed"
	WebhookTypeTest             = "test"
)

// WebhookDelivery is a queued outbound notification. Attempt count only
// increases; DELIVERED and FAILED are terminal and must never be
// re-enqueued.
type WebhookDelivery struct {
	ID            uuid.UUID     `json:"id"`
	MerchantID    uuid.UUID     `json:"merchant_id"`
	URL           string        `json:"url"`
	Payload       string        `json:"payload"` // JSON string
	Status        WebhookStatus `json:"status"`
	Attempts      int           `json:"attempts"`
	NextRetryAt   time.Time     `json:"next_retry_at"`
	LastAttemptAt *time.Time    `json:"last_attempt_at,omitempty"`
	LastHTTPCode  *int          `json:"last_http_code,omitempty"`
	LastError     *string       `json:"last_error,omitempty"`
	DeliveredAt   *time.Time    `json:"delivered_at,omitempty"`
	FailedAt      *time.Time    `json:"failed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// IsTerminal returns true once the delivery reached a final state.
func (w *WebhookDelivery) IsTerminal() bool {
	return w.Status == WebhookStatusDelivered || w.Status == WebhookStatusFailed
}

// WebhookPayload is the JSON body sent to a merchant's webhook URL.
// ConfirmationsRemaining is set for payment.detected, Confirmations and
// PaidAt for payment.confirmed.
type WebhookPayload struct {
	Type                   string          `json:"type"`
	InvoiceID              string          `json:"invoiceId,omitempty"`
	MerchantID             string          `json:"merchantId"`
	Asset                  Asset           `json:"asset,omitempty"`
	Amount                 decimal.Decimal `json:"amount,omitempty"`
	TxID                   string          `json:"txid,omitempty"`
	ConfirmationsRemaining *int            `json:"confirmationsRemaining,omitempty"`
	ConfirmationsRequired  int             `json:"confirmationsRequired,omitempty"`
	Confirmations          *int            `json:"confirmations,omitempty"`
	PaidAt                 *int64          `json:"paidAt,omitempty"`
	Message                string          `json:"message,omitempty"` // test payloads
}
