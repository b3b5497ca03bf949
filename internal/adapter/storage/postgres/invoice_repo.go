package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-payment-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `id, merchant_id, store_id, external_id, currency, amount_fiat, asset,
	amount_crypto, rate, address, status, status_token,
	confirmations_required, confirmations_seen, expires_at, created_at, updated_at`

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	pool Pool
}

// NewInvoiceRepo creates a new InvoiceRepo.
func NewInvoiceRepo(pool Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

// Create inserts a new invoice.
func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.pool.Exec(ctx, query,
		inv.ID, inv.MerchantID, inv.StoreID, inv.ExternalID, inv.Currency,
		inv.AmountFiat, inv.Asset, inv.AmountCrypto, inv.Rate, inv.Address,
		inv.Status, inv.StatusToken, inv.ConfirmationsRequired,
		inv.ConfirmationsSeen, inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	var status, asset string
	err := row.Scan(
		&inv.ID, &inv.MerchantID, &inv.StoreID, &inv.ExternalID, &inv.Currency,
		&inv.AmountFiat, &asset, &inv.AmountCrypto, &inv.Rate, &inv.Address,
		&status, &inv.StatusToken, &inv.ConfirmationsRequired,
		&inv.ConfirmationsSeen, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = domain.InvoiceStatus(status)
	inv.Asset = domain.Asset(asset)
	return inv, nil
}

// GetByID fetches an invoice by ID. Returns nil when not found.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice by id: %w", err)
	}
	return inv, nil
}

// ListPending returns PENDING invoices whose payment window is still open,
// oldest first.
func (r *InvoiceRepo) ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE status = 'PENDING' AND expires_at > $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// UpdateStatus persists a status transition. Confirmations-seen only goes
// up, so a stale provider response can never roll it back.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus, confirmationsSeen int) error {
	query := `UPDATE invoices
		SET status = $2, confirmations_seen = GREATEST(confirmations_seen, $3), updated_at = NOW()
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, string(status), confirmationsSeen)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return nil
}

// MarkExpired moves a still-PENDING invoice to EXPIRED. The status guard
// makes concurrent expiry and payment detection race-safe: whichever
// transition lands first wins.
func (r *InvoiceRepo) MarkExpired(ctx context.Context, id string) (bool, error) {
	query := `UPDATE invoices SET status = 'EXPIRED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark invoice expired: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
