package postgres

import (
	"context"
	"fmt"

	"crypto-payment-gateway/internal/core/domain"
)

const paymentColumns = `id, invoice_id, merchant_id, asset, txid, block_height, amount, confirmations, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a detected payment.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.InvoiceID, p.MerchantID, p.Asset, p.TxID,
		p.BlockHeight, p.Amount, p.Confirmations, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// Exists reports whether the (txid, invoice) pair was already recorded.
func (r *PaymentRepo) Exists(ctx context.Context, txid, invoiceID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM payments WHERE txid = $1 AND invoice_id = $2)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, txid, invoiceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payment exists: %w", err)
	}
	return exists, nil
}

// ListBelowConfirmations returns payments still accumulating
// confirmations, oldest first.
func (r *PaymentRepo) ListBelowConfirmations(ctx context.Context, ceiling, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE confirmations < $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, ceiling, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments below confirmations: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var asset string
		if err := rows.Scan(
			&p.ID, &p.InvoiceID, &p.MerchantID, &asset, &p.TxID,
			&p.BlockHeight, &p.Amount, &p.Confirmations, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Asset = domain.Asset(asset)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpdateConfirmations raises a payment's confirmation count. GREATEST
// keeps the count monotonic across out-of-order provider responses.
func (r *PaymentRepo) UpdateConfirmations(ctx context.Context, id string, confirmations int) error {
	query := `UPDATE payments
		SET confirmations = GREATEST(confirmations, $2), updated_at = NOW()
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, confirmations)
	if err != nil {
		return fmt.Errorf("update payment confirmations: %w", err)
	}
	return nil
}
