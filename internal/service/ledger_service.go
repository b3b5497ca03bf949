package service

import (
	"context"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
	"crypto-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ledgerService implements ports.LedgerService. Every mutation runs in
// one database transaction with the touched balance rows locked, so a
// concurrent credit and withdrawal on the same merchant serialize instead
// of losing an update.
type ledgerService struct {
	transactor     ports.DBTransactor
	balanceRepo    ports.BalanceRepository
	withdrawalRepo ports.WithdrawalRepository
	merchantRepo   ports.MerchantRepository
	globalFeePct   decimal.Decimal
	log            zerolog.Logger

	now func() time.Time
}

// NewLedgerService creates a new ledger service. globalFeePct is the
// platform fee applied unless the merchant carries a custom rate.
func NewLedgerService(
	transactor ports.DBTransactor,
	balanceRepo ports.BalanceRepository,
	withdrawalRepo ports.WithdrawalRepository,
	merchantRepo ports.MerchantRepository,
	globalFeePct decimal.Decimal,
	log zerolog.Logger,
) ports.LedgerService {
	return &ledgerService{
		transactor:     transactor,
		balanceRepo:    balanceRepo,
		withdrawalRepo: withdrawalRepo,
		merchantRepo:   merchantRepo,
		globalFeePct:   globalFeePct,
		log:            log,
		now:            time.Now,
	}
}

// Credit splits a gross payment between the merchant and the platform fee
// balance. Both sides land in the same transaction or not at all.
func (s *ledgerService) Credit(ctx context.Context, merchantID uuid.UUID, asset domain.Asset, gross decimal.Decimal) error {
	if !gross.IsPositive() {
		return apperror.ErrInvalidAmount()
	}

	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if merchant == nil {
		return apperror.ErrMerchantNotFound()
	}

	feePct := s.globalFeePct
	if merchant.CustomFeePct != nil {
		feePct = *merchant.CustomFeePct
	}
	fee := domain.CalculateFee(gross, feePct)
	net := gross.Sub(fee)

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	defer tx.Rollback(ctx)

	// Merchant row first, admin row second. The fixed lock order keeps
	// concurrent credits from deadlocking on the shared fee balance.
	if err := s.addAvailable(ctx, tx, merchantID.String(), asset, net); err != nil {
		return err
	}
	if err := s.addAvailable(ctx, tx, domain.AdminOwnerID, asset, fee); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Str("asset", string(asset)).
		Str("gross", gross.String()).
		Str("net", net.String()).
		Str("fee", fee.String()).
		Msg("payment credited")

	return nil
}

func (s *ledgerService) addAvailable(ctx context.Context, tx pgx.Tx, ownerID string, asset domain.Asset, amount decimal.Decimal) error {
	balance, err := s.balanceRepo.GetForUpdate(ctx, tx, ownerID, asset)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if balance == nil {
		balance = &domain.Balance{
			OwnerID:   ownerID,
			Asset:     asset,
			Available: decimal.Zero,
			Pending:   decimal.Zero,
		}
	}
	balance.Available = balance.Available.Add(amount)
	if err := s.balanceRepo.Upsert(ctx, tx, balance); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	return nil
}

// RequestWithdrawal debits the merchant's available balance and records a
// PENDING withdrawal intent atomically.
func (s *ledgerService) RequestWithdrawal(ctx context.Context, merchantID uuid.UUID, asset domain.Asset, amount decimal.Decimal, address string) (*domain.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !domain.IsSupportedAsset(asset) {
		return nil, apperror.ErrUnsupportedAsset(string(asset))
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	defer tx.Rollback(ctx)

	balance, err := s.balanceRepo.GetForUpdate(ctx, tx, merchantID.String(), asset)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if balance == nil || balance.Available.LessThan(amount) {
		return nil, apperror.ErrInsufficientBalance()
	}

	balance.Available = balance.Available.Sub(amount)
	if err := s.balanceRepo.Upsert(ctx, tx, balance); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	now := s.now()
	withdrawal := &domain.Withdrawal{
		ID:         domain.NewWithdrawalID(),
		MerchantID: merchantID.String(),
		Asset:      asset,
		Amount:     amount,
		Address:    address,
		Status:     domain.WithdrawalStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("withdrawal_id", withdrawal.ID).
		Str("merchant_id", merchantID.String()).
		Str("asset", string(asset)).
		Str("amount", amount.String()).
		Msg("withdrawal requested")

	return withdrawal, nil
}
