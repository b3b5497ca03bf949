package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"crypto-payment-gateway/config"
	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
	"crypto-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookService implements ports.WebhookService. Deliveries are queued
// in the database and drained by a background worker; the database claim
// (lease on next_retry_at) plus the Redis claim store fence concurrent
// drains, so a delivery is attempted by at most one worker at a time.
type webhookService struct {
	webhookRepo  ports.WebhookRepository
	merchantRepo ports.MerchantRepository
	sigSvc       ports.SignatureService
	claims       ports.ClaimStore
	httpClient   HTTPClient
	cfg          config.WebhookConfig
	log          zerolog.Logger

	now func() time.Time
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(
	webhookRepo ports.WebhookRepository,
	merchantRepo ports.MerchantRepository,
	sigSvc ports.SignatureService,
	claims ports.ClaimStore,
	httpClient HTTPClient,
	cfg config.WebhookConfig,
	log zerolog.Logger,
) ports.WebhookService {
	return &webhookService{
		webhookRepo:  webhookRepo,
		merchantRepo: merchantRepo,
		sigSvc:       sigSvc,
		claims:       claims,
		httpClient:   httpClient,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// Enqueue creates a PENDING delivery for the merchant's webhook URL. The
// payload is frozen at enqueue time; retries always resend the same body.
// Returns uuid.Nil without error when the merchant has no URL configured.
func (s *webhookService) Enqueue(ctx context.Context, merchantID uuid.UUID, payload domain.WebhookPayload) (uuid.UUID, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return uuid.Nil, apperror.ErrDatabaseError(err)
	}
	if merchant == nil {
		return uuid.Nil, apperror.ErrMerchantNotFound()
	}
	if merchant.WebhookURL == nil || *merchant.WebhookURL == "" {
		s.log.Debug().
			Str("merchant_id", merchantID.String()).
			Str("event", payload.Type).
			Msg("webhook: no URL configured, skipping")
		return uuid.Nil, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, apperror.InternalError(err)
	}

	now := s.now()
	delivery := &domain.WebhookDelivery{
		ID:          uuid.New(),
		MerchantID:  merchantID,
		URL:         *merchant.WebhookURL,
		Payload:     string(body),
		Status:      domain.WebhookStatusPending,
		NextRetryAt: now,
		CreatedAt:   now,
	}
	if err := s.webhookRepo.Create(ctx, delivery); err != nil {
		return uuid.Nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("delivery_id", delivery.ID.String()).
		Str("merchant_id", merchantID.String()).
		Str("event", payload.Type).
		Msg("webhook queued")

	return delivery.ID, nil
}

// EnqueueTest queues a test-type payload so a merchant can verify their
// endpoint and signature handling end to end.
func (s *webhookService) EnqueueTest(ctx context.Context, merchantID uuid.UUID) (uuid.UUID, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return uuid.Nil, apperror.ErrDatabaseError(err)
	}
	if merchant == nil {
		return uuid.Nil, apperror.ErrMerchantNotFound()
	}
	if merchant.WebhookURL == nil || *merchant.WebhookURL == "" {
		return uuid.Nil, apperror.ErrNoWebhookConfigured()
	}

	return s.Enqueue(ctx, merchantID, domain.WebhookPayload{
		Type:       domain.WebhookTypeTest,
		MerchantID: merchantID.String(),
		Message:    "Test webhook delivery",
	})
}

// DrainDue claims due deliveries and attempts them concurrently. Returns
// the number of deliveries actually attempted.
func (s *webhookService) DrainDue(ctx context.Context, limit int) (int, error) {
	deliveries, err := s.webhookRepo.ClaimDue(ctx, s.now(), limit, s.cfg.ClaimLease)
	if err != nil {
		return 0, apperror.ErrDatabaseError(err)
	}

	var attempted atomic.Int64
	var wg sync.WaitGroup
	for i := range deliveries {
		delivery := deliveries[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.attempt(ctx, &delivery) {
				attempted.Add(1)
			}
		}()
	}
	wg.Wait()

	return int(attempted.Load()), nil
}

// attempt runs one delivery attempt end to end. Returns false when the
// cross-process claim was lost and the attempt was skipped.
func (s *webhookService) attempt(ctx context.Context, d *domain.WebhookDelivery) bool {
	won, err := s.claims.Claim(ctx, d.ID.String(), s.cfg.ClaimLease)
	if err != nil {
		s.log.Warn().Err(err).Str("delivery_id", d.ID.String()).Msg("webhook: claim store unavailable, skipping")
		return false
	}
	if !won {
		return false
	}
	defer s.claims.Release(ctx, d.ID.String())

	now := s.now()
	d.Attempts++
	d.LastAttemptAt = &now

	code, err := s.send(ctx, d)
	if code != 0 {
		d.LastHTTPCode = &code
	}

	if err == nil {
		d.Status = domain.WebhookStatusDelivered
		d.DeliveredAt = &now
		d.LastError = nil
		s.log.Info().
			Str("delivery_id", d.ID.String()).
			Int("attempt", d.Attempts).
			Int("status", code).
			Msg("webhook delivered")
	} else {
		msg := err.Error()
		d.LastError = &msg
		if d.Attempts >= s.cfg.MaxRetries {
			d.Status = domain.WebhookStatusFailed
			d.FailedAt = &now
			s.log.Error().
				Str("delivery_id", d.ID.String()).
				Int("attempts", d.Attempts).
				Msg("webhook failed permanently")
		} else {
			d.Status = domain.WebhookStatusRetrying
			d.NextRetryAt = now.Add(s.backoff(d.Attempts))
			s.log.Warn().
				Err(err).
				Str("delivery_id", d.ID.String()).
				Int("attempt", d.Attempts).
				Time("next_retry_at", d.NextRetryAt).
				Msg("webhook attempt failed, will retry")
		}
	}

	if err := s.webhookRepo.Update(ctx, d); err != nil {
		s.log.Error().Err(err).Str("delivery_id", d.ID.String()).Msg("webhook: failed to persist attempt outcome")
	}
	return true
}

// send performs the signed HTTP POST. Returns the response status code
// (0 when no response was received) and nil on a 2xx.
func (s *webhookService) send(ctx context.Context, d *domain.WebhookDelivery) (int, error) {
	secret := s.cfg.DefaultSecret
	merchant, err := s.merchantRepo.GetByID(ctx, d.MerchantID)
	if err == nil && merchant != nil && merchant.WebhookSecret != nil && *merchant.WebhookSecret != "" {
		secret = *merchant.WebhookSecret
	}

	ts := s.now().Unix()
	signature := s.sigSvc.Sign(secret, SigningString(ts, d.Payload))

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.URL, bytes.NewReader([]byte(d.Payload)))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("X-Webhook-Id", d.ID.String())
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Webhook-Signature", "sha256="+signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// backoff doubles the delay per attempt, capped at MaxDelay.
func (s *webhookService) backoff(attempt int) time.Duration {
	delay := s.cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	if delay > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return delay
}
