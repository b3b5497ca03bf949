package domain

// Asset is a supported crypto asset code.
type Asset string

const (
	AssetBTC       Asset = "btc"
	AssetETH       Asset = "eth"
	AssetBNB       Asset = "bnb"
	AssetUSDTERC20 Asset = "usdt_erc20"
	AssetUSDTBEP20 Asset = "usdt_bep20"
	AssetUSDTTRC20 Asset = "usdt_trc20"
)

// SupportedAssets lists every asset the gateway can invoice.
var SupportedAssets = []Asset{
	AssetBTC, AssetETH, AssetBNB,
	AssetUSDTERC20, AssetUSDTBEP20, AssetUSDTTRC20,
}

// Chain identifies a blockchain network.
type Chain string

const (
	ChainBitcoin  Chain = "bitcoin"
	ChainEthereum Chain = "ethereum"
	ChainBSC      Chain = "bsc"
	ChainTron     Chain = "tron"
)

// ChainForAsset resolves the chain an asset settles on.
// The second return is false for unrecognized assets.
func ChainForAsset(asset Asset) (Chain, bool) {
	switch asset {
	case AssetBTC:
		return ChainBitcoin, true
	case AssetETH, AssetUSDTERC20:
		return ChainEthereum, true
	case AssetBNB, AssetUSDTBEP20:
		return ChainBSC, true
	case AssetUSDTTRC20:
		return ChainTron, true
	default:
		return "", false
	}
}

// IsSupportedAsset reports whether the asset code is known.
func IsSupportedAsset(asset Asset) bool {
	_, ok := ChainForAsset(asset)
	return ok
}
