package chain

import (
	"fmt"

	"crypto-payment-gateway/config"
	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
)

// NewQuickNode builds a QuickNode backend for one chain. QuickNode serves
// a per-chain path under a single base URL, e.g. {base}/ethereum.
func NewQuickNode(cfg config.ProviderConfig, chain domain.Chain, rates ports.RateFetcher) ports.ChainProvider {
	base := fmt.Sprintf("%s/%s", cfg.BaseURL, chain)
	return newRPCBackend("quicknode", chain, base, base, cfg.APIKey, cfg.Timeout, rates)
}
