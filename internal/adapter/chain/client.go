package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"crypto-payment-gateway/internal/core/domain"

	"github.com/shopspring/decimal"
)

// rpcRequest is a JSON-RPC 2.0 call body.
type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Err() error {
	return fmt.Errorf("rpc error %d: %s", e.Code, e.Message)
}

// txEntry is the transaction shape shared by the REST transaction
// endpoints of the supported providers.
type txEntry struct {
	Hash          string `json:"hash"`
	BlockNumber   int64  `json:"blockNumber"`
	Confirmations int    `json:"confirmations"`
	Value         string `json:"value"`
	From          string `json:"from"`
	To            string `json:"to"`
	Input         string `json:"input"`
	Timestamp     int64  `json:"timestamp"`
}

type txListResponse struct {
	Transactions []txEntry `json:"transactions"`
}

// doJSON issues a request with the provider's bearer key and decodes the
// JSON response into out.
func doJSON(ctx context.Context, client *http.Client, apiKey, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: %s %s: %s", method, url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// callRPC issues a JSON-RPC call and returns the raw result.
func callRPC(ctx context.Context, client *http.Client, apiKey, url, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	var resp rpcResponse
	err := doJSON(ctx, client, apiKey, http.MethodPost, url, rpcRequest{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return resp.Result, nil
}

// hexQuantity parses a 0x-prefixed hex quantity into a big integer.
func hexQuantity(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode hex quantity: %w", err)
	}
	if len(s) > 2 && s[:2] == "0x" {
		s = s[2:]
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return n, nil
}

// weiToDecimal scales a base-unit integer amount by the asset's decimals.
func weiToDecimal(n *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(n, -decimals)
}

// Token contract addresses for the supported USDT variants.
var usdtContracts = map[domain.Asset]string{
	domain.AssetUSDTERC20: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
	domain.AssetUSDTBEP20: "0x55d398326f99059fF775485246999027B3197955",
	domain.AssetUSDTTRC20: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
}

// balanceOfCallData builds the ERC-20 balanceOf(address) call payload.
func balanceOfCallData(address string) string {
	if len(address) > 2 && address[:2] == "0x" {
		address = address[2:]
	}
	return "0x70a08231000000000000000000000000" + address
}

// detectAssetFromTx classifies a transaction as a token transfer when it
// carries contract input data, otherwise as the chain's native asset.
func detectAssetFromTx(tx txEntry, native, token domain.Asset) domain.Asset {
	if tx.To != "" && tx.Input != "" && tx.Input != "0x" {
		return token
	}
	return native
}

func toChainTransactions(entries []txEntry, native, token domain.Asset) ([]domain.ChainTransaction, error) {
	out := make([]domain.ChainTransaction, 0, len(entries))
	for _, tx := range entries {
		amount, err := decimal.NewFromString(tx.Value)
		if err != nil {
			return nil, fmt.Errorf("parse tx value %q: %w", tx.Value, err)
		}
		out = append(out, domain.ChainTransaction{
			TxID:          tx.Hash,
			BlockHeight:   tx.BlockNumber,
			Confirmations: tx.Confirmations,
			Amount:        amount,
			From:          tx.From,
			To:            tx.To,
			Asset:         detectAssetFromTx(tx, native, token),
			Timestamp:     tx.Timestamp,
		})
	}
	return out, nil
}

// nativeAndTokenFor returns the native asset and the dominant token asset
// of a chain, for transaction classification.
func nativeAndTokenFor(chain domain.Chain) (domain.Asset, domain.Asset) {
	switch chain {
	case domain.ChainEthereum:
		return domain.AssetETH, domain.AssetUSDTERC20
	case domain.ChainBSC:
		return domain.AssetBNB, domain.AssetUSDTBEP20
	case domain.ChainTron:
		return domain.AssetUSDTTRC20, domain.AssetUSDTTRC20
	default:
		return domain.AssetBTC, domain.AssetBTC
	}
}

// coinGeckoIDs maps assets to their CoinGecko coin identifiers.
var coinGeckoIDs = map[domain.Asset]string{
	domain.AssetBTC:       "bitcoin",
	domain.AssetETH:       "ethereum",
	domain.AssetBNB:       "binancecoin",
	domain.AssetUSDTERC20: "tether",
	domain.AssetUSDTBEP20: "tether",
	domain.AssetUSDTTRC20: "tether",
}
