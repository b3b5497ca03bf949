package chain

import (
	"context"
	"sort"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
	"crypto-payment-gateway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Pool fronts the registered backends of every chain and executes
// operations with health-aware failover. Backends are tried in health
// priority order; ties keep registration order. A backend failure marks
// it degraded and moves on; a success resets it to healthy. Health never
// decays by time alone.
type Pool struct {
	providers map[domain.Chain][]ports.ChainProvider
	health    *HealthRegistry
	log       zerolog.Logger
}

// NewPool creates an empty provider pool.
func NewPool(health *HealthRegistry, log zerolog.Logger) *Pool {
	return &Pool{
		providers: make(map[domain.Chain][]ports.ChainProvider),
		health:    health,
		log:       log,
	}
}

// Register appends a backend to a chain's failover list.
func (p *Pool) Register(chain domain.Chain, provider ports.ChainProvider) {
	p.providers[chain] = append(p.providers[chain], provider)
	p.health.Register(chain, provider.Name())
}

// Health exposes the registry snapshot for the system endpoint.
func (p *Pool) Health() []ports.ProviderHealthSnapshot {
	return p.health.Snapshot()
}

func (p *Pool) chainFor(asset domain.Asset) (domain.Chain, error) {
	chain, ok := domain.ChainForAsset(asset)
	if !ok {
		return "", apperror.ErrUnsupportedAsset(string(asset))
	}
	return chain, nil
}

// executeWithFallback runs op against each of the chain's backends in
// health order, returning after the first success. Individual backend
// errors are logged and swallowed; only total failure surfaces.
func (p *Pool) executeWithFallback(ctx context.Context, chain domain.Chain, opName string, op func(ports.ChainProvider) error) error {
	providers := p.providers[chain]
	if len(providers) == 0 {
		return apperror.ErrAllProvidersFailed(string(chain))
	}

	ordered := make([]ports.ChainProvider, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Priority(p.health.Status(chain, ordered[i].Name())) <
			Priority(p.health.Status(chain, ordered[j].Name()))
	})

	for _, provider := range ordered {
		start := time.Now()
		err := op(provider)
		if err != nil {
			p.health.Mark(chain, provider.Name(), ports.ProviderDegraded)
			p.log.Warn().
				Err(err).
				Str("chain", string(chain)).
				Str("provider", provider.Name()).
				Str("op", opName).
				Msg("provider call failed, trying next backend")
			continue
		}
		p.health.Mark(chain, provider.Name(), ports.ProviderHealthy)
		p.log.Debug().
			Str("chain", string(chain)).
			Str("provider", provider.Name()).
			Str("op", opName).
			Dur("duration", time.Since(start)).
			Msg("provider call succeeded")
		return nil
	}

	return apperror.ErrAllProvidersFailed(string(chain))
}

// GetBalance returns the confirmed balance of an address.
func (p *Pool) GetBalance(ctx context.Context, asset domain.Asset, address string) (decimal.Decimal, error) {
	chain, err := p.chainFor(asset)
	if err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err = p.executeWithFallback(ctx, chain, "get_balance", func(provider ports.ChainProvider) error {
		var opErr error
		balance, opErr = provider.GetBalance(ctx, address, asset)
		return opErr
	})
	return balance, err
}

// GetTransactions lists transactions touching an address.
func (p *Pool) GetTransactions(ctx context.Context, asset domain.Asset, address string) ([]domain.ChainTransaction, error) {
	chain, err := p.chainFor(asset)
	if err != nil {
		return nil, err
	}
	var txs []domain.ChainTransaction
	err = p.executeWithFallback(ctx, chain, "get_transactions", func(provider ports.ChainProvider) error {
		var opErr error
		txs, opErr = provider.GetTransactions(ctx, address)
		return opErr
	})
	return txs, err
}

// GetCurrentBlockHeight returns the chain tip height for the asset's chain.
func (p *Pool) GetCurrentBlockHeight(ctx context.Context, asset domain.Asset) (int64, error) {
	chain, err := p.chainFor(asset)
	if err != nil {
		return 0, err
	}
	var height int64
	err = p.executeWithFallback(ctx, chain, "get_block_height", func(provider ports.ChainProvider) error {
		var opErr error
		height, opErr = provider.GetCurrentBlockHeight(ctx)
		return opErr
	})
	return height, err
}

// BroadcastTransaction submits a signed transaction and returns its hash.
func (p *Pool) BroadcastTransaction(ctx context.Context, asset domain.Asset, signedTx string) (string, error) {
	chain, err := p.chainFor(asset)
	if err != nil {
		return "", err
	}
	var txid string
	err = p.executeWithFallback(ctx, chain, "broadcast_transaction", func(provider ports.ChainProvider) error {
		var opErr error
		txid, opErr = provider.BroadcastTransaction(ctx, signedTx)
		return opErr
	})
	return txid, err
}

// GetRate returns the USD price quoted by the chain's data providers.
func (p *Pool) GetRate(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	chain, err := p.chainFor(asset)
	if err != nil {
		return decimal.Zero, err
	}
	var rate decimal.Decimal
	err = p.executeWithFallback(ctx, chain, "get_rate", func(provider ports.ChainProvider) error {
		var opErr error
		rate, opErr = provider.GetRate(ctx, asset)
		return opErr
	})
	return rate, err
}
