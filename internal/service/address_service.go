package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
)

// StaticAddressDeriver implements ports.AddressDeriver with deterministic
// per-(merchant, store, chain) deposit addresses. Key custody and real HD
// derivation live outside this service; providers are queried with
// whatever address this returns.
type StaticAddressDeriver struct{}

// NewStaticAddressDeriver creates a deterministic address deriver.
func NewStaticAddressDeriver() *StaticAddressDeriver {
	return &StaticAddressDeriver{}
}

// DeriveAddress returns the deposit address for the asset's chain. The
// same inputs always produce the same address.
func (d *StaticAddressDeriver) DeriveAddress(asset domain.Asset, merchantID, storeID uuid.UUID) (string, error) {
	chain, ok := domain.ChainForAsset(asset)
	if !ok {
		return "", apperror.ErrUnsupportedAsset(string(asset))
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", chain, merchantID, storeID)))
	digest := hex.EncodeToString(sum[:])

	switch chain {
	case domain.ChainBitcoin:
		return "bc1q" + digest[:38], nil
	case domain.ChainTron:
		return "T" + digest[:33], nil
	default:
		// EVM chains share the 0x40-hex format.
		return "0x" + digest[:40], nil
	}
}
