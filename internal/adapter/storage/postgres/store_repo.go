package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crypto-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StoreRepo implements ports.StoreRepository. The per-asset confirmation
// policy is stored as JSONB.
type StoreRepo struct {
	pool Pool
}

// NewStoreRepo creates a new StoreRepo.
func NewStoreRepo(pool Pool) *StoreRepo {
	return &StoreRepo{pool: pool}
}

// Create inserts a new store.
func (r *StoreRepo) Create(ctx context.Context, s *domain.Store) error {
	var policy []byte
	if s.ConfirmPolicy != nil {
		raw, err := json.Marshal(s.ConfirmPolicy)
		if err != nil {
			return fmt.Errorf("marshal confirm policy: %w", err)
		}
		policy = raw
	}

	query := `INSERT INTO stores (id, merchant_id, name, confirm_policy, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, s.ID, s.MerchantID, s.Name, policy, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert store: %w", err)
	}
	return nil
}

// GetByMerchantID returns the merchant's first configured store, or nil
// when none exists.
func (r *StoreRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Store, error) {
	query := `SELECT id, merchant_id, name, confirm_policy, created_at
		FROM stores WHERE merchant_id = $1
		ORDER BY created_at
		LIMIT 1`

	s := &domain.Store{}
	var policy []byte
	err := r.pool.QueryRow(ctx, query, merchantID).Scan(
		&s.ID, &s.MerchantID, &s.Name, &policy, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get store by merchant id: %w", err)
	}
	if len(policy) > 0 {
		if err := json.Unmarshal(policy, &s.ConfirmPolicy); err != nil {
			return nil, fmt.Errorf("unmarshal confirm policy: %w", err)
		}
	}
	return s, nil
}
