package chain

import (
	"context"
	"errors"
	"testing"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
	"crypto-payment-gateway/internal/core/ports/mocks"
	"crypto-payment-gateway/pkg/apperror"
	"crypto-payment-gateway/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestPool(t *testing.T) (*Pool, *HealthRegistry) {
	t.Helper()
	health := NewHealthRegistry()
	return NewPool(health, logger.NewNop()), health
}

func namedProvider(ctrl *gomock.Controller, name string) *mocks.MockChainProvider {
	p := mocks.NewMockChainProvider(ctrl)
	p.EXPECT().Name().Return(name).AnyTimes()
	return p
}

func TestPool_GetCurrentBlockHeight_FirstHealthyWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	pool, _ := newTestPool(t)

	primary := namedProvider(ctrl, "quicknode")
	secondary := namedProvider(ctrl, "nownodes")
	primary.EXPECT().GetCurrentBlockHeight(gomock.Any()).Return(int64(123456), nil)
	// secondary must not be called

	pool.Register(domain.ChainEthereum, primary)
	pool.Register(domain.ChainEthereum, secondary)

	height, err := pool.GetCurrentBlockHeight(context.Background(), domain.AssetETH)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), height)
}

func TestPool_Failover_MarksDegradedAndTriesNext(t *testing.T) {
	ctrl := gomock.NewController(t)
	pool, health := newTestPool(t)

	primary := namedProvider(ctrl, "quicknode")
	secondary := namedProvider(ctrl, "nownodes")
	primary.EXPECT().GetCurrentBlockHeight(gomock.Any()).Return(int64(0), errors.New("timeout"))
	secondary.EXPECT().GetCurrentBlockHeight(gomock.Any()).Return(int64(99), nil)

	pool.Register(domain.ChainEthereum, primary)
	pool.Register(domain.ChainEthereum, secondary)

	height, err := pool.GetCurrentBlockHeight(context.Background(), domain.AssetETH)
	require.NoError(t, err)
	assert.Equal(t, int64(99), height)

	assert.Equal(t, ports.ProviderDegraded, health.Status(domain.ChainEthereum, "quicknode"))
	assert.Equal(t, ports.ProviderHealthy, health.Status(domain.ChainEthereum, "nownodes"))
}

func TestPool_DegradedBackendSortedLast(t *testing.T) {
	ctrl := gomock.NewController(t)
	pool, health := newTestPool(t)

	primary := namedProvider(ctrl, "quicknode")
	secondary := namedProvider(ctrl, "nownodes")
	// Only the still-healthy secondary should be asked.
	secondary.EXPECT().GetCurrentBlockHeight(gomock.Any()).Return(int64(77), nil)

	pool.Register(domain.ChainEthereum, primary)
	pool.Register(domain.ChainEthereum, secondary)
	health.Mark(domain.ChainEthereum, "quicknode", ports.ProviderDegraded)

	height, err := pool.GetCurrentBlockHeight(context.Background(), domain.AssetETH)
	require.NoError(t, err)
	assert.Equal(t, int64(77), height)
}

func TestPool_SuccessResetsDegraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	pool, health := newTestPool(t)

	only := namedProvider(ctrl, "quicknode")
	only.EXPECT().GetCurrentBlockHeight(gomock.Any()).Return(int64(10), nil)

	pool.Register(domain.ChainEthereum, only)
	health.Mark(domain.ChainEthereum, "quicknode", ports.ProviderDegraded)

	_, err := pool.GetCurrentBlockHeight(context.Background(), domain.AssetETH)
	require.NoError(t, err)
	assert.Equal(t, ports.ProviderHealthy, health.Status(domain.ChainEthereum, "quicknode"))
}

func TestPool_TieKeepsRegistrationOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	pool, _ := newTestPool(t)

	first := namedProvider(ctrl, "quicknode")
	second := namedProvider(ctrl, "nownodes")
	third := namedProvider(ctrl, "getblock")
	first.EXPECT().GetCurrentBlockHeight(gomock.Any()).Return(int64(1), nil)

	pool.Register(domain.ChainBSC, first)
	pool.Register(domain.ChainBSC, second)
	pool.Register(domain.ChainBSC, third)

	_, err := pool.GetCurrentBlockHeight(context.Background(), domain.AssetBNB)
	require.NoError(t, err)
}

func TestPool_AllBackendsFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	pool, health := newTestPool(t)

	primary := namedProvider(ctrl, "quicknode")
	secondary := namedProvider(ctrl, "nownodes")
	primary.EXPECT().GetTransactions(gomock.Any(), "0xabc").Return(nil, errors.New("down"))
	secondary.EXPECT().GetTransactions(gomock.Any(), "0xabc").Return(nil, errors.New("down too"))

	pool.Register(domain.ChainEthereum, primary)
	pool.Register(domain.ChainEthereum, secondary)

	_, err := pool.GetTransactions(context.Background(), domain.AssetETH, "0xabc")
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PROV_001", appErr.Code)

	assert.Equal(t, ports.ProviderDegraded, health.Status(domain.ChainEthereum, "quicknode"))
	assert.Equal(t, ports.ProviderDegraded, health.Status(domain.ChainEthereum, "nownodes"))
}

func TestPool_NoBackendsForChain(t *testing.T) {
	pool, _ := newTestPool(t)

	_, err := pool.GetCurrentBlockHeight(context.Background(), domain.AssetBTC)
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PROV_001", appErr.Code)
}

func TestPool_UnsupportedAsset(t *testing.T) {
	pool, _ := newTestPool(t)

	_, err := pool.GetRate(context.Background(), domain.Asset("doge"))
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ASSET_001", appErr.Code)
}

func TestPool_GetBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	pool, _ := newTestPool(t)

	only := namedProvider(ctrl, "quicknode")
	only.EXPECT().GetBalance(gomock.Any(), "0xabc", domain.AssetETH).
		Return(decimal.RequireFromString("1.5"), nil)

	pool.Register(domain.ChainEthereum, only)

	balance, err := pool.GetBalance(context.Background(), domain.AssetETH, "0xabc")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.5")))
}

func TestPool_Health(t *testing.T) {
	ctrl := gomock.NewController(t)
	pool, _ := newTestPool(t)

	pool.Register(domain.ChainEthereum, namedProvider(ctrl, "quicknode"))
	pool.Register(domain.ChainBitcoin, namedProvider(ctrl, "getblock"))

	snap := pool.Health()
	assert.Len(t, snap, 2)
}
