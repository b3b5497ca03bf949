package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"crypto-payment-gateway/config"
	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/pkg/apperror"
	"crypto-payment-gateway/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWebhookConfig() config.WebhookConfig {
	return config.WebhookConfig{
		MaxRetries:     5,
		InitialDelay:   time.Second,
		MaxDelay:       5 * time.Minute,
		RequestTimeout: 5 * time.Second,
		DrainLimit:     50,
		DrainInterval:  time.Minute,
		DefaultSecret:  "default-secret",
		UserAgent:      "CryptoPaymentGateway/1.0",
		ClaimLease:     time.Minute,
	}
}

type webhookFixture struct {
	svc          *webhookService
	webhookRepo  *fakeWebhookRepo
	merchantRepo *fakeMerchantRepo
	claims       *fakeClaimStore
	merchant     *domain.Merchant
}

func newWebhookFixture(t *testing.T, url string) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		webhookRepo:  newFakeWebhookRepo(),
		merchantRepo: newFakeMerchantRepo(),
		claims:       newFakeClaimStore(),
	}
	secret := "whsec_test"
	f.merchant = &domain.Merchant{
		ID:            uuid.New(),
		Status:        domain.MerchantStatusActive,
		WebhookURL:    &url,
		WebhookSecret: &secret,
	}
	require.NoError(t, f.merchantRepo.Create(context.Background(), f.merchant))

	f.svc = NewWebhookService(
		f.webhookRepo, f.merchantRepo, NewHMACSignatureService(), f.claims,
		http.DefaultClient, testWebhookConfig(), logger.NewNop(),
	).(*webhookService)
	return f
}

func TestWebhookService_Enqueue(t *testing.T) {
	f := newWebhookFixture(t, "https://merchant.example/webhook")
	ctx := context.Background()

	id, err := f.svc.Enqueue(ctx, f.merchant.ID, domain.WebhookPayload{
		Type:       domain.WebhookTypePaymentDetected,
		InvoiceID:  "inv_abc",
		MerchantID: f.merchant.ID.String(),
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	d, err := f.webhookRepo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, domain.WebhookStatusPending, d.Status)
	assert.Equal(t, 0, d.Attempts)
	assert.Contains(t, d.Payload, `"invoiceId":"inv_abc"`)
}

func TestWebhookService_Enqueue_NoURLConfigured(t *testing.T) {
	f := newWebhookFixture(t, "https://merchant.example/webhook")
	merchant := &domain.Merchant{ID: uuid.New(), Status: domain.MerchantStatusActive}
	require.NoError(t, f.merchantRepo.Create(context.Background(), merchant))

	id, err := f.svc.Enqueue(context.Background(), merchant.ID, domain.WebhookPayload{Type: domain.WebhookTypePaymentDetected})
	require.NoError(t, err, "missing URL is not an error for internal events")
	assert.Equal(t, uuid.Nil, id)
}

func TestWebhookService_EnqueueTest_NoURL(t *testing.T) {
	f := newWebhookFixture(t, "https://merchant.example/webhook")
	merchant := &domain.Merchant{ID: uuid.New(), Status: domain.MerchantStatusActive}
	require.NoError(t, f.merchantRepo.Create(context.Background(), merchant))

	_, err := f.svc.EnqueueTest(context.Background(), merchant.ID)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "MER_004", appErr.Code)
}

func TestWebhookService_DrainDue_Delivers(t *testing.T) {
	var mu sync.Mutex
	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newWebhookFixture(t, srv.URL)
	ctx := context.Background()

	id, err := f.svc.Enqueue(ctx, f.merchant.ID, domain.WebhookPayload{
		Type:       domain.WebhookTypeTest,
		MerchantID: f.merchant.ID.String(),
	})
	require.NoError(t, err)

	attempted, err := f.svc.DrainDue(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	d, err := f.webhookRepo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookStatusDelivered, d.Status)
	assert.Equal(t, 1, d.Attempts)
	require.NotNil(t, d.LastHTTPCode)
	assert.Equal(t, 200, *d.LastHTTPCode)
	assert.NotNil(t, d.DeliveredAt)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "CryptoPaymentGateway/1.0", gotHeaders.Get("User-Agent"))
	assert.Equal(t, id.String(), gotHeaders.Get("X-Webhook-Id"))
	assert.NotEmpty(t, gotHeaders.Get("X-Webhook-Timestamp"))

	// The signature covers "{timestamp}.{body}" with the merchant secret.
	sig := gotHeaders.Get("X-Webhook-Signature")
	require.True(t, len(sig) > 7 && sig[:7] == "sha256=")
	sigSvc := NewHMACSignatureService()
	signed := gotHeaders.Get("X-Webhook-Timestamp") + "." + string(gotBody)
	assert.Equal(t, "sha256="+sigSvc.Sign("whsec_test", signed), sig)

	var payload domain.WebhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, domain.WebhookTypeTest, payload.Type)
}

func TestWebhookService_DrainDue_RetriesWithBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newWebhookFixture(t, srv.URL)
	ctx := context.Background()

	base := time.Now()
	f.svc.now = func() time.Time { return base }

	id, err := f.svc.Enqueue(ctx, f.merchant.ID, domain.WebhookPayload{Type: domain.WebhookTypeTest})
	require.NoError(t, err)

	attempted, err := f.svc.DrainDue(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	d, err := f.webhookRepo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookStatusRetrying, d.Status)
	assert.Equal(t, 1, d.Attempts)
	require.NotNil(t, d.LastHTTPCode)
	assert.Equal(t, 500, *d.LastHTTPCode)
	assert.NotNil(t, d.LastError)
	assert.Equal(t, base.Add(time.Second), d.NextRetryAt, "first retry after the initial delay")
}

func TestWebhookService_DrainDue_FailsPermanently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newWebhookFixture(t, srv.URL)
	ctx := context.Background()

	id, err := f.svc.Enqueue(ctx, f.merchant.ID, domain.WebhookPayload{Type: domain.WebhookTypeTest})
	require.NoError(t, err)

	// Simulate four earlier failed attempts.
	d, err := f.webhookRepo.GetByID(ctx, id)
	require.NoError(t, err)
	d.Attempts = 4
	d.Status = domain.WebhookStatusRetrying
	require.NoError(t, f.webhookRepo.Update(ctx, d))

	_, err = f.svc.DrainDue(ctx, 50)
	require.NoError(t, err)

	d, err = f.webhookRepo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookStatusFailed, d.Status)
	assert.Equal(t, 5, d.Attempts)
	assert.NotNil(t, d.FailedAt)
}

func TestWebhookService_DrainDue_ClaimLostSkips(t *testing.T) {
	f := newWebhookFixture(t, "https://merchant.example/webhook")
	ctx := context.Background()

	id, err := f.svc.Enqueue(ctx, f.merchant.ID, domain.WebhookPayload{Type: domain.WebhookTypeTest})
	require.NoError(t, err)

	f.claims.denied = true

	attempted, err := f.svc.DrainDue(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, attempted)

	d, err := f.webhookRepo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Attempts, "a skipped delivery records no attempt")
}

func TestWebhookService_Backoff(t *testing.T) {
	f := newWebhookFixture(t, "https://merchant.example/webhook")

	assert.Equal(t, time.Second, f.svc.backoff(1))
	assert.Equal(t, 2*time.Second, f.svc.backoff(2))
	assert.Equal(t, 4*time.Second, f.svc.backoff(3))
	assert.Equal(t, 8*time.Second, f.svc.backoff(4))
	assert.Equal(t, 5*time.Minute, f.svc.backoff(20), "backoff is capped")
}
