package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"

	"github.com/shopspring/decimal"
)

// Base-unit decimals per asset.
var assetDecimals = map[domain.Asset]int32{
	domain.AssetBTC:       8,
	domain.AssetETH:       18,
	domain.AssetBNB:       18,
	domain.AssetUSDTERC20: 6,
	domain.AssetUSDTBEP20: 6,
	domain.AssetUSDTTRC20: 6,
}

// rpcBackend implements ports.ChainProvider against a node provider that
// exposes an EVM-style JSON-RPC endpoint plus a REST address-history
// endpoint. All three supported providers (QuickNode, NowNodes, GetBlock)
// normalize to this shape; only URL construction differs per provider.
type rpcBackend struct {
	name    string
	chain   domain.Chain
	rpcURL  string
	restURL string
	apiKey  string
	client  *http.Client
	rates   ports.RateFetcher
}

func newRPCBackend(name string, chain domain.Chain, rpcURL, restURL, apiKey string, timeout time.Duration, rates ports.RateFetcher) *rpcBackend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &rpcBackend{
		name:    name,
		chain:   chain,
		rpcURL:  rpcURL,
		restURL: restURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		rates:   rates,
	}
}

func (b *rpcBackend) Name() string { return b.name }

func (b *rpcBackend) Chains() []domain.Chain { return []domain.Chain{b.chain} }

// GetBalance reads a native balance via eth_getBalance, or a token
// balance via an eth_call to the token contract's balanceOf.
func (b *rpcBackend) GetBalance(ctx context.Context, address string, asset domain.Asset) (decimal.Decimal, error) {
	decimals, ok := assetDecimals[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown asset %q", asset)
	}

	var result json.RawMessage
	var err error
	if contract, isToken := usdtContracts[asset]; isToken {
		result, err = callRPC(ctx, b.client, b.apiKey, b.rpcURL, "eth_call",
			map[string]string{"to": contract, "data": balanceOfCallData(address)}, "latest")
	} else {
		result, err = callRPC(ctx, b.client, b.apiKey, b.rpcURL, "eth_getBalance", address, "latest")
	}
	if err != nil {
		return decimal.Zero, err
	}

	n, err := hexQuantity(result)
	if err != nil {
		return decimal.Zero, err
	}
	return weiToDecimal(n, decimals), nil
}

// GetTransactions lists the address's recent transactions through the
// provider's normalized history endpoint.
func (b *rpcBackend) GetTransactions(ctx context.Context, address string) ([]domain.ChainTransaction, error) {
	url := fmt.Sprintf("%s/address/%s/transactions", b.restURL, address)
	var resp txListResponse
	if err := doJSON(ctx, b.client, b.apiKey, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}
	native, token := nativeAndTokenFor(b.chain)
	return toChainTransactions(resp.Transactions, native, token)
}

func (b *rpcBackend) GetCurrentBlockHeight(ctx context.Context) (int64, error) {
	result, err := callRPC(ctx, b.client, b.apiKey, b.rpcURL, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	n, err := hexQuantity(result)
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}

func (b *rpcBackend) BroadcastTransaction(ctx context.Context, signedTx string) (string, error) {
	result, err := callRPC(ctx, b.client, b.apiKey, b.rpcURL, "eth_sendRawTransaction", signedTx)
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", fmt.Errorf("decode tx hash: %w", err)
	}
	return hash, nil
}

// GetRate delegates to the configured price source. Node providers do not
// quote fiat prices themselves.
func (b *rpcBackend) GetRate(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	return b.rates.FetchRate(ctx, asset)
}
