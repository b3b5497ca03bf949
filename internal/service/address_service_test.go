package service

import (
	"strings"
	"testing"

	"crypto-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAddressDeriver_Deterministic(t *testing.T) {
	d := NewStaticAddressDeriver()
	merchantID, storeID := uuid.New(), uuid.New()

	a1, err := d.DeriveAddress(domain.AssetBTC, merchantID, storeID)
	require.NoError(t, err)
	a2, err := d.DeriveAddress(domain.AssetBTC, merchantID, storeID)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
}

func TestStaticAddressDeriver_ChainFormats(t *testing.T) {
	d := NewStaticAddressDeriver()
	merchantID, storeID := uuid.New(), uuid.New()

	btc, err := d.DeriveAddress(domain.AssetBTC, merchantID, storeID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(btc, "bc1q"))

	eth, err := d.DeriveAddress(domain.AssetETH, merchantID, storeID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(eth, "0x"))
	assert.Len(t, eth, 42)

	trx, err := d.DeriveAddress(domain.AssetUSDTTRC20, merchantID, storeID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(trx, "T"))
}

func TestStaticAddressDeriver_SharedChainAddress(t *testing.T) {
	d := NewStaticAddressDeriver()
	merchantID, storeID := uuid.New(), uuid.New()

	// ETH and USDT-ERC20 live on the same chain and share an address.
	eth, err := d.DeriveAddress(domain.AssetETH, merchantID, storeID)
	require.NoError(t, err)
	usdt, err := d.DeriveAddress(domain.AssetUSDTERC20, merchantID, storeID)
	require.NoError(t, err)
	assert.Equal(t, eth, usdt)
}

func TestStaticAddressDeriver_UnsupportedAsset(t *testing.T) {
	d := NewStaticAddressDeriver()

	_, err := d.DeriveAddress(domain.Asset("doge"), uuid.New(), uuid.New())
	require.Error(t, err)
}
