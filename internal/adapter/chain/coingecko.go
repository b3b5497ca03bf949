package chain

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/pkg/apperror"

	"github.com/shopspring/decimal"
)

// CoinGeckoClient fetches USD spot prices from a CoinGecko-compatible API.
// It implements ports.RateFetcher.
type CoinGeckoClient struct {
	baseURL string
	client  *http.Client
}

// NewCoinGeckoClient creates a price client against the given base URL
// (e.g. https://api.coingecko.com/api/v3).
func NewCoinGeckoClient(baseURL string, timeout time.Duration) *CoinGeckoClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGeckoClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchRate returns the current USD price of the asset.
func (c *CoinGeckoClient) FetchRate(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	coinID, ok := coinGeckoIDs[asset]
	if !ok {
		return decimal.Zero, apperror.ErrUnsupportedAsset(string(asset))
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, coinID)
	var body map[string]map[string]decimal.Decimal
	if err := doJSON(ctx, c.client, "", http.MethodGet, url, nil, &body); err != nil {
		return decimal.Zero, err
	}

	price, ok := body[coinID]["usd"]
	if !ok || price.IsZero() {
		return decimal.Zero, fmt.Errorf("no usd price for %s", coinID)
	}
	return price, nil
}
