package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports/mocks"
	"crypto-payment-gateway/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRateServiceForTest(t *testing.T, fetcher *mocks.MockRateFetcher) *rateService {
	t.Helper()
	svc := NewRateService(fetcher, time.Minute, logger.NewNop()).(*rateService)
	svc.jitter = func() float64 { return 1.0 }
	return svc
}

func TestRateService_FetchAndCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockRateFetcher(ctrl)
	svc := newRateServiceForTest(t, fetcher)
	ctx := context.Background()

	fetcher.EXPECT().FetchRate(ctx, domain.AssetBTC).
		Return(decimal.RequireFromString("67000"), nil).
		Times(1)

	rate, err := svc.GetRate(ctx, domain.AssetBTC)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("67000")))

	// Second call within TTL served from cache; fetcher not called again.
	rate, err = svc.GetRate(ctx, domain.AssetBTC)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("67000")))
}

func TestRateService_ExpiredEntryRefetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockRateFetcher(ctrl)
	svc := newRateServiceForTest(t, fetcher)
	ctx := context.Background()

	current := time.Now()
	svc.now = func() time.Time { return current }

	fetcher.EXPECT().FetchRate(ctx, domain.AssetETH).
		Return(decimal.RequireFromString("2400"), nil)
	fetcher.EXPECT().FetchRate(ctx, domain.AssetETH).
		Return(decimal.RequireFromString("2450"), nil)

	_, err := svc.GetRate(ctx, domain.AssetETH)
	require.NoError(t, err)

	current = current.Add(61 * time.Second)

	rate, err := svc.GetRate(ctx, domain.AssetETH)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("2450")))
}

func TestRateService_SyntheticFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockRateFetcher(ctrl)
	svc := newRateServiceForTest(t, fetcher)
	ctx := context.Background()

	// Single failed fetch; fallback is cached so no second fetch happens.
	fetcher.EXPECT().FetchRate(ctx, domain.AssetBTC).
		Return(decimal.Zero, errors.New("all sources down")).
		Times(1)

	rate, err := svc.GetRate(ctx, domain.AssetBTC)
	require.NoError(t, err, "fallback must not surface the fetch error")
	assert.True(t, rate.Equal(decimal.NewFromInt(45000)), "got %s", rate)

	rate, err = svc.GetRate(ctx, domain.AssetBTC)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(45000)))
}

func TestRateService_FallbackJitterBounds(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockRateFetcher(ctrl)
	svc := NewRateService(fetcher, time.Minute, logger.NewNop()).(*rateService)
	ctx := context.Background()

	fetcher.EXPECT().FetchRate(ctx, domain.AssetBNB).
		Return(decimal.Zero, errors.New("down"))

	rate, err := svc.GetRate(ctx, domain.AssetBNB)
	require.NoError(t, err)

	low := decimal.RequireFromString("294")  // 300 * 0.98
	high := decimal.RequireFromString("306") // 300 * 1.02
	assert.True(t, rate.GreaterThanOrEqual(low) && rate.LessThanOrEqual(high), "got %s", rate)
}

func TestRateService_UnsupportedAsset(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockRateFetcher(ctrl)
	svc := newRateServiceForTest(t, fetcher)

	_, err := svc.GetRate(context.Background(), domain.Asset("doge"))
	require.Error(t, err)
}

func TestRateService_GetRateWithBuffer(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockRateFetcher(ctrl)
	svc := newRateServiceForTest(t, fetcher)
	ctx := context.Background()

	fetcher.EXPECT().FetchRate(ctx, domain.AssetUSDTERC20).
		Return(decimal.NewFromInt(1), nil)

	effective, err := svc.GetRateWithBuffer(ctx, domain.AssetUSDTERC20, decimal.RequireFromString("0.5"))
	require.NoError(t, err)

	// $100 at an effective rate of 1/1.005 buys 100.5 units.
	amount := decimal.NewFromInt(100).Div(effective).Round(8)
	assert.True(t, amount.Equal(decimal.RequireFromString("100.5")), "got %s", amount)
}

func TestRateService_StatsAndClear(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockRateFetcher(ctrl)
	svc := newRateServiceForTest(t, fetcher)
	ctx := context.Background()

	fetcher.EXPECT().FetchRate(ctx, domain.AssetBTC).
		Return(decimal.NewFromInt(67000), nil).
		Times(2)

	_, err := svc.GetRate(ctx, domain.AssetBTC)
	require.NoError(t, err)

	stats := svc.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, time.Minute, stats.TTL)
	require.Len(t, stats.Entries, 1)
	assert.Equal(t, domain.AssetBTC, stats.Entries[0].Asset)
	assert.False(t, stats.Entries[0].Expired)

	svc.Clear()
	assert.Equal(t, 0, svc.Stats().Size)

	// Cleared cache forces a live fetch.
	_, err = svc.GetRate(ctx, domain.AssetBTC)
	require.NoError(t, err)
}
