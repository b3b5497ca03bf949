package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const webhookColumns = `id, merchant_id, url, payload, status, attempts, next_retry_at,
	last_attempt_at, last_http_code, last_error, delivered_at, failed_at, created_at`

// WebhookRepo implements ports.WebhookRepository.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// Create inserts a queued delivery.
func (r *WebhookRepo) Create(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `INSERT INTO webhook_deliveries (` + webhookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.MerchantID, d.URL, d.Payload, string(d.Status), d.Attempts,
		d.NextRetryAt, d.LastAttemptAt, d.LastHTTPCode, d.LastError,
		d.DeliveredAt, d.FailedAt, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

func scanDelivery(row rowScanner) (*domain.WebhookDelivery, error) {
	d := &domain.WebhookDelivery{}
	var status string
	err := row.Scan(
		&d.ID, &d.MerchantID, &d.URL, &d.Payload, &status, &d.Attempts,
		&d.NextRetryAt, &d.LastAttemptAt, &d.LastHTTPCode, &d.LastError,
		&d.DeliveredAt, &d.FailedAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = domain.WebhookStatus(status)
	return d, nil
}

// GetByID fetches a delivery by ID. Returns nil when not found.
func (r *WebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDelivery, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_deliveries WHERE id = $1`

	d, err := scanDelivery(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook delivery by id: %w", err)
	}
	return d, nil
}

// ClaimDue selects up to limit due deliveries and pushes their
// next_retry_at forward by lease in the same statement. SKIP LOCKED plus
// the lease bump means two concurrent drains never hand out the same row.
func (r *WebhookRepo) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.WebhookDelivery, error) {
	query := `WITH due AS (
			SELECT id FROM webhook_deliveries
			WHERE status IN ('PENDING', 'RETRYING') AND next_retry_at <= $1
			ORDER BY next_retry_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE webhook_deliveries w
		SET next_retry_at = $3
		FROM due
		WHERE w.id = due.id
		RETURNING w.id, w.merchant_id, w.url, w.payload, w.status, w.attempts, w.next_retry_at,
			w.last_attempt_at, w.last_http_code, w.last_error, w.delivered_at, w.failed_at, w.created_at`

	rows, err := r.pool.Query(ctx, query, now, limit, now.Add(lease))
	if err != nil {
		return nil, fmt.Errorf("claim due webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, rows.Err()
}

// Update persists the outcome of a delivery attempt.
func (r *WebhookRepo) Update(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `UPDATE webhook_deliveries
		SET status = $2, attempts = $3, next_retry_at = $4, last_attempt_at = $5,
			last_http_code = $6, last_error = $7, delivered_at = $8, failed_at = $9
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query,
		d.ID, string(d.Status), d.Attempts, d.NextRetryAt, d.LastAttemptAt,
		d.LastHTTPCode, d.LastError, d.DeliveredAt, d.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("update webhook delivery: %w", err)
	}
	return nil
}
