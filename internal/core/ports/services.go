package ports

import (
	"context"
	"time"

	"crypto-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

// ChainProvider is one blockchain data backend (QuickNode, NowNodes, ...).
// Every call carries a bounded timeout through its context.
type ChainProvider interface {
	Name() string
	Chains() []domain.Chain
	GetBalance(ctx context.Context, address string, asset domain.Asset) (decimal.Decimal, error)
	GetTransactions(ctx context.Context, address string) ([]domain.ChainTransaction, error)
	GetCurrentBlockHeight(ctx context.Context) (int64, error)
	BroadcastTransaction(ctx context.Context, signedTx string) (string, error)
	GetRate(ctx context.Context, asset domain.Asset) (decimal.Decimal, error)
}

// ProviderHealthStatus is the health classification of one backend.
type ProviderHealthStatus string

const (
	ProviderHealthy  ProviderHealthStatus = "healthy"
	ProviderDegraded ProviderHealthStatus = "degraded"
	ProviderOffline  ProviderHealthStatus = "offline"
)

// ProviderHealthSnapshot is a point-in-time view of one (chain, backend)
// health record.
type ProviderHealthSnapshot struct {
	Chain     domain.Chain         `json:"chain"`
	Provider  string               `json:"provider"`
	Status    ProviderHealthStatus `json:"status"`
	LastCheck time.Time            `json:"last_check"`
}

// ProviderPool fronts the registered backends of every chain and executes
// operations with health-ordered failover. The asset's chain is resolved
// internally; unrecognized assets fail with UnsupportedAsset.
type ProviderPool interface {
	GetBalance(ctx context.Context, asset domain.Asset, address string) (decimal.Decimal, error)
	GetTransactions(ctx context.Context, asset domain.Asset, address string) ([]domain.ChainTransaction, error)
	GetCurrentBlockHeight(ctx context.Context, asset domain.Asset) (int64, error)
	BroadcastTransaction(ctx context.Context, asset domain.Asset, signedTx string) (string, error)
	GetRate(ctx context.Context, asset domain.Asset) (decimal.Decimal, error)
	Health() []ProviderHealthSnapshot
}

// RateFetcher retrieves a live USD price for an asset from an external
// source.
type RateFetcher interface {
	FetchRate(ctx context.Context, asset domain.Asset) (decimal.Decimal, error)
}

// RateCacheEntry describes one cached rate for introspection.
type RateCacheEntry struct {
	Asset   domain.Asset    `json:"asset"`
	Rate    decimal.Decimal `json:"rate"`
	Age     time.Duration   `json:"age_ms"`
	Expired bool            `json:"expired"`
}

// RateCacheStats is the introspection view of the rate cache.
type RateCacheStats struct {
	Size    int              `json:"size"`
	TTL     time.Duration    `json:"ttl_ms"`
	Entries []RateCacheEntry `json:"entries"`
}

// RateService provides TTL-cached USD pricing. When the external fetch
// fails, a synthetic fallback rate is cached for the same TTL; callers
// cannot distinguish it from a real quote.
type RateService interface {
	GetRate(ctx context.Context, asset domain.Asset) (decimal.Decimal, error)
	GetRateWithBuffer(ctx context.Context, asset domain.Asset, bufferPct decimal.Decimal) (decimal.Decimal, error)
	Stats() RateCacheStats
	Clear()
}

// AddressDeriver produces a deposit address for an invoice. Key custody is
// out of scope; implementations may be deterministic stubs.
type AddressDeriver interface {
	DeriveAddress(asset domain.Asset, merchantID, storeID uuid.UUID) (string, error)
}

// CreateInvoiceRequest holds validated input for invoice creation.
type CreateInvoiceRequest struct {
	MerchantID uuid.UUID
	Asset      domain.Asset
	AmountFiat decimal.Decimal
	ExternalID *string
}

// InvoiceStatusView is the public read model returned to status polls.
type InvoiceStatusView struct {
	Status                 domain.InvoiceStatus `json:"status"`
	ConfirmationsSeen      int                  `json:"confirmationsSeen"`
	ConfirmationsRequired  int                  `json:"confirmationsRequired"`
	ConfirmationsRemaining int                  `json:"confirmationsRemaining"`
	AmountCrypto           decimal.Decimal      `json:"amountCrypto"`
	Address                string               `json:"address"`
	Asset                  domain.Asset         `json:"asset"`
	ExpiresAt              time.Time            `json:"expiresAt"`
}

// InvoiceService exposes the checkout-facing invoice operations.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*domain.Invoice, error)
	// ReadStatus validates the status token and lazily expires a PENDING
	// invoice whose payment window has passed. It never triggers a live
	// provider call.
	ReadStatus(ctx context.Context, invoiceID, statusToken string) (*InvoiceStatusView, error)
}

// LedgerService applies atomic balance mutations.
type LedgerService interface {
	// Credit splits a gross payment between the merchant and the platform
	// fee balance in a single transaction.
	Credit(ctx context.Context, merchantID uuid.UUID, asset domain.Asset, gross decimal.Decimal) error
	// RequestWithdrawal debits the merchant's available balance and records
	// a PENDING withdrawal intent atomically.
	RequestWithdrawal(ctx context.Context, merchantID uuid.UUID, asset domain.Asset, amount decimal.Decimal, address string) (*domain.Withdrawal, error)
}

// WebhookService queues and delivers signed merchant notifications.
type WebhookService interface {
	// Enqueue creates a PENDING delivery for the merchant's configured
	// webhook URL. Returns uuid.Nil without error when no URL is set.
	Enqueue(ctx context.Context, merchantID uuid.UUID, payload domain.WebhookPayload) (uuid.UUID, error)
	// EnqueueTest queues a test-type payload for webhook integration checks.
	EnqueueTest(ctx context.Context, merchantID uuid.UUID) (uuid.UUID, error)
	// DrainDue claims and attempts up to limit due deliveries concurrently.
	// Returns the number of deliveries attempted.
	DrainDue(ctx context.Context, limit int) (int, error)
}

// TrackerService advances invoice and payment state from chain data.
type TrackerService interface {
	// PollInvoices runs the invoice discovery pass.
	PollInvoices(ctx context.Context) error
	// RefreshConfirmations runs the confirmation refresh pass.
	RefreshConfirmations(ctx context.Context) error
}

// SignatureService handles HMAC-SHA256 signing and verification of
// webhook bodies.
type SignatureService interface {
	Sign(secret string, payload string) string
	Verify(secret string, payload string, signature string) bool
}

// ClaimStore fences concurrent webhook delivery across processes.
type ClaimStore interface {
	// Claim atomically acquires a short-lived lease on the key. Returns
	// true when this caller won the claim.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
