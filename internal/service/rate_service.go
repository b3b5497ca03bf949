package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
	"crypto-payment-gateway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// fallbackRates are the synthetic USD prices used when every live source
// is down. A small jitter is applied so consecutive fallback quotes do
// not look frozen.
var fallbackRates = map[domain.Asset]decimal.Decimal{
	domain.AssetBTC:       decimal.NewFromInt(45000),
	domain.AssetETH:       decimal.NewFromInt(2500),
	domain.AssetBNB:       decimal.NewFromInt(300),
	domain.AssetUSDTERC20: decimal.NewFromInt(1),
	domain.AssetUSDTBEP20: decimal.NewFromInt(1),
	domain.AssetUSDTTRC20: decimal.NewFromInt(1),
}

type cachedRate struct {
	rate     decimal.Decimal
	cachedAt time.Time
}

// rateService implements ports.RateService with an in-process TTL cache.
// Synthetic fallback entries are cached under the same TTL as live
// quotes, so callers see a stable price for the cache window either way.
type rateService struct {
	fetcher ports.RateFetcher
	ttl     time.Duration
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[domain.Asset]cachedRate

	now    func() time.Time
	jitter func() float64 // uniform in [0.98, 1.02)
}

// NewRateService creates a rate service caching quotes for ttl.
func NewRateService(fetcher ports.RateFetcher, ttl time.Duration, log zerolog.Logger) ports.RateService {
	return &rateService{
		fetcher: fetcher,
		ttl:     ttl,
		log:     log,
		cache:   make(map[domain.Asset]cachedRate),
		now:     time.Now,
		jitter:  func() float64 { return 0.98 + rand.Float64()*0.04 },
	}
}

// GetRate returns the cached USD price for the asset, fetching a fresh
// quote when the cache entry is missing or stale. A failed fetch falls
// back to a jittered synthetic price rather than failing checkout.
func (s *rateService) GetRate(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	if !domain.IsSupportedAsset(asset) {
		return decimal.Zero, apperror.ErrUnsupportedAsset(string(asset))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.cache[asset]; ok && s.now().Sub(entry.cachedAt) < s.ttl {
		return entry.rate, nil
	}

	rate, err := s.fetcher.FetchRate(ctx, asset)
	if err != nil {
		fallback, ok := fallbackRates[asset]
		if !ok {
			return decimal.Zero, apperror.ErrRateUnavailable(string(asset))
		}
		rate = fallback.Mul(decimal.NewFromFloat(s.jitter())).Round(8)
		s.log.Warn().
			Err(err).
			Str("asset", string(asset)).
			Str("synthetic_rate", rate.String()).
			Msg("rate fetch failed, using synthetic fallback")
	}

	s.cache[asset] = cachedRate{rate: rate, cachedAt: s.now()}
	return rate, nil
}

// GetRateWithBuffer returns the effective quote rate after the amount
// buffer: dividing a fiat amount by it yields the buffered crypto amount.
func (s *rateService) GetRateWithBuffer(ctx context.Context, asset domain.Asset, bufferPct decimal.Decimal) (decimal.Decimal, error) {
	rate, err := s.GetRate(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	return rate.Div(one.Add(bufferPct.Div(hundred))), nil
}

// Stats returns an introspection view of the cache.
func (s *rateService) Stats() ports.RateCacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := ports.RateCacheStats{
		Size: len(s.cache),
		TTL:  s.ttl,
	}
	for asset, entry := range s.cache {
		age := now.Sub(entry.cachedAt)
		stats.Entries = append(stats.Entries, ports.RateCacheEntry{
			Asset:   asset,
			Rate:    entry.rate,
			Age:     age,
			Expired: age >= s.ttl,
		})
	}
	return stats
}

// Clear drops every cached entry. The next GetRate per asset goes live.
func (s *rateService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[domain.Asset]cachedRate)
}
