package chain

import (
	"fmt"

	"crypto-payment-gateway/config"
	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
)

// NewGetBlock builds a GetBlock backend for one chain. GetBlock embeds the
// access token in the path: {base}/{token}/{chain}.
func NewGetBlock(cfg config.ProviderConfig, chain domain.Chain, rates ports.RateFetcher) ports.ChainProvider {
	base := fmt.Sprintf("%s/%s/%s", cfg.BaseURL, cfg.APIKey, chain)
	// Token already rides in the URL, so no bearer header.
	return newRPCBackend("getblock", chain, base, base, "", cfg.Timeout, rates)
}
