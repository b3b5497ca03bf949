package postgres

import (
	"context"
	"testing"
	"time"

	"crypto-payment-gateway/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func balanceColumnNames() []string {
	return []string{"owner_id", "asset", "available", "pending", "updated_at"}
}

func balanceRow(b *domain.Balance) *pgxmock.Rows {
	return pgxmock.NewRows(balanceColumnNames()).AddRow(
		b.OwnerID, string(b.Asset), b.Available, b.Pending, b.UpdatedAt,
	)
}

func TestBalanceRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	b := &domain.Balance{
		OwnerID:   "merchant-1",
		Asset:     domain.AssetBTC,
		Available: decimal.RequireFromString("0.98"),
		Pending:   decimal.Zero,
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectQuery("SELECT .+ FROM balances").
		WithArgs("merchant-1", "btc").
		WillReturnRows(balanceRow(b))

	result, err := repo.Get(context.Background(), "merchant-1", domain.AssetBTC)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "merchant-1", result.OwnerID)
	assert.True(t, result.Available.Equal(decimal.RequireFromString("0.98")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM balances").
		WithArgs("merchant-1", "eth").
		WillReturnRows(pgxmock.NewRows(balanceColumnNames()))

	result, err := repo.Get(context.Background(), "merchant-1", domain.AssetETH)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_GetForUpdateAndUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	b := &domain.Balance{
		OwnerID:   domain.AdminOwnerID,
		Asset:     domain.AssetBTC,
		Available: decimal.RequireFromString("0.02"),
		Pending:   decimal.Zero,
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM balances .+ FOR UPDATE").
		WithArgs(domain.AdminOwnerID, "btc").
		WillReturnRows(balanceRow(b))
	mock.ExpectExec("INSERT INTO balances").
		WithArgs(domain.AdminOwnerID, "btc", b.Available, b.Pending).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	locked, err := repo.GetForUpdate(ctx, tx, domain.AdminOwnerID, domain.AssetBTC)
	require.NoError(t, err)
	require.NotNil(t, locked)

	err = repo.Upsert(ctx, tx, b)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_GetForUpdate_NoRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM balances .+ FOR UPDATE").
		WithArgs("merchant-1", "btc").
		WillReturnRows(pgxmock.NewRows(balanceColumnNames()))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	locked, err := repo.GetForUpdate(ctx, tx, "merchant-1", domain.AssetBTC)
	require.NoError(t, err)
	assert.Nil(t, locked)
	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
