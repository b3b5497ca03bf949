package chain

import (
	"fmt"

	"crypto-payment-gateway/config"
	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
)

// NewNowNodes builds a NowNodes backend for one chain. NowNodes routes by
// chain-prefixed subpath: {base}/{chain} for JSON-RPC and the same prefix
// for the REST history endpoint.
func NewNowNodes(cfg config.ProviderConfig, chain domain.Chain, rates ports.RateFetcher) ports.ChainProvider {
	base := fmt.Sprintf("%s/%s", cfg.BaseURL, chain)
	return newRPCBackend("nownodes", chain, base, base, cfg.APIKey, cfg.Timeout, rates)
}
