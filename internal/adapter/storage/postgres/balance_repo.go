package postgres

import (
	"context"
	"errors"
	"fmt"

	"crypto-payment-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const balanceColumns = `owner_id, asset, available, pending, updated_at`

// BalanceRepo implements ports.BalanceRepository.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

func scanBalance(row rowScanner) (*domain.Balance, error) {
	b := &domain.Balance{}
	var asset string
	err := row.Scan(&b.OwnerID, &asset, &b.Available, &b.Pending, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Asset = domain.Asset(asset)
	return b, nil
}

// Get fetches a balance outside any transaction. Returns nil when the
// (owner, asset) pair has no row yet.
func (r *BalanceRepo) Get(ctx context.Context, ownerID string, asset domain.Asset) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE owner_id = $1 AND asset = $2`

	b, err := scanBalance(r.pool.QueryRow(ctx, query, ownerID, string(asset)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// GetForUpdate fetches a balance inside tx with a row lock, serializing
// concurrent credits and debits on the same (owner, asset) pair.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, ownerID string, asset domain.Asset) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE owner_id = $1 AND asset = $2 FOR UPDATE`

	b, err := scanBalance(tx.QueryRow(ctx, query, ownerID, string(asset)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance for update: %w", err)
	}
	return b, nil
}

// Upsert writes the balance amounts inside tx, creating the row on first
// use.
func (r *BalanceRepo) Upsert(ctx context.Context, tx pgx.Tx, b *domain.Balance) error {
	query := `INSERT INTO balances (owner_id, asset, available, pending, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (owner_id, asset)
		DO UPDATE SET available = EXCLUDED.available, pending = EXCLUDED.pending, updated_at = NOW()`

	_, err := tx.Exec(ctx, query, b.OwnerID, string(b.Asset), b.Available, b.Pending)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}
