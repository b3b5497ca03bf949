package ports

import (
	"context"
	"time"

	"crypto-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InvoiceRepository defines persistence operations for invoices.
// Confirmations-seen is monotonic: updates never lower it.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	// ListPending returns PENDING invoices whose expiry is still in the
	// future, bounded by limit.
	ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error)
	// UpdateStatus persists a status transition and raises
	// confirmations-seen (never lowers it).
	UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus, confirmationsSeen int) error
	// MarkExpired transitions a still-PENDING invoice to EXPIRED.
	// Returns false when the invoice already left PENDING.
	MarkExpired(ctx context.Context, id string) (bool, error)
}

// PaymentRepository defines persistence operations for detected payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	// Exists reports whether the (txid, invoiceID) pair was already recorded.
	Exists(ctx context.Context, txid, invoiceID string) (bool, error)
	// ListBelowConfirmations returns payments still accumulating
	// confirmations, bounded by limit.
	ListBelowConfirmations(ctx context.Context, ceiling, limit int) ([]domain.Payment, error)
	// UpdateConfirmations raises a payment's confirmation count
	// (never lowers it).
	UpdateConfirmations(ctx context.Context, id string, confirmations int) error
}

// WebhookRepository defines persistence for queued webhook deliveries.
type WebhookRepository interface {
	Create(ctx context.Context, delivery *domain.WebhookDelivery) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDelivery, error)
	// ClaimDue atomically selects up to limit PENDING/RETRYING deliveries
	// with nextRetryAt <= now and pushes their nextRetryAt forward by lease,
	// so a concurrent drain cannot claim the same rows.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.WebhookDelivery, error)
	// Update persists the outcome of a delivery attempt.
	Update(ctx context.Context, delivery *domain.WebhookDelivery) error
}

// BalanceRepository defines persistence for (owner, asset) balances.
// Tx-scoped methods run inside ledger transactions with row locking.
type BalanceRepository interface {
	Get(ctx context.Context, ownerID string, asset domain.Asset) (*domain.Balance, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, ownerID string, asset domain.Asset) (*domain.Balance, error)
	// Upsert creates the balance row on first use or overwrites the
	// amounts of an existing row.
	Upsert(ctx context.Context, tx pgx.Tx, balance *domain.Balance) error
}

// MerchantRepository defines persistence operations for merchants.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
}

// StoreRepository defines persistence operations for merchant stores.
type StoreRepository interface {
	Create(ctx context.Context, store *domain.Store) error
	// GetByMerchantID returns the merchant's first configured store,
	// or nil when none exists.
	GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Store, error)
}

// WithdrawalRepository records withdrawal intents. Create runs inside the
// same transaction as the balance debit.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, withdrawal *domain.Withdrawal) error
	GetByID(ctx context.Context, id string) (*domain.Withdrawal, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
