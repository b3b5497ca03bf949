package service

import (
	"context"
	"crypto/subtle"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
	"crypto-payment-gateway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// invoiceService implements ports.InvoiceService.
type invoiceService struct {
	invoiceRepo  ports.InvoiceRepository
	merchantRepo ports.MerchantRepository
	storeRepo    ports.StoreRepository
	rates        ports.RateService
	deriver      ports.AddressDeriver
	expiry       time.Duration
	bufferPct    decimal.Decimal
	log          zerolog.Logger

	now func() time.Time
}

// NewInvoiceService creates a new invoice service. expiry is the payment
// window; bufferPct is added to the crypto amount against rate drift.
func NewInvoiceService(
	invoiceRepo ports.InvoiceRepository,
	merchantRepo ports.MerchantRepository,
	storeRepo ports.StoreRepository,
	rates ports.RateService,
	deriver ports.AddressDeriver,
	expiry time.Duration,
	bufferPct decimal.Decimal,
	log zerolog.Logger,
) ports.InvoiceService {
	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		merchantRepo: merchantRepo,
		storeRepo:    storeRepo,
		rates:        rates,
		deriver:      deriver,
		expiry:       expiry,
		bufferPct:    bufferPct,
		log:          log,
		now:          time.Now,
	}
}

// CreateInvoice locks the current rate, derives a deposit address, and
// persists a PENDING invoice with its opaque status token.
func (s *invoiceService) CreateInvoice(ctx context.Context, req ports.CreateInvoiceRequest) (*domain.Invoice, error) {
	if !req.AmountFiat.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !domain.IsSupportedAsset(req.Asset) {
		return nil, apperror.ErrUnsupportedAsset(string(req.Asset))
	}

	merchant, err := s.merchantRepo.GetByID(ctx, req.MerchantID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if merchant == nil {
		return nil, apperror.ErrMerchantNotFound()
	}
	if !merchant.IsActive() {
		return nil, apperror.ErrMerchantInactive()
	}

	store, err := s.storeRepo.GetByMerchantID(ctx, req.MerchantID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if store == nil {
		return nil, apperror.ErrNoStoreConfigured()
	}

	rate, err := s.rates.GetRate(ctx, req.Asset)
	if err != nil {
		return nil, err
	}

	// The buffer rides on the crypto amount, not the locked rate: the
	// invoice shows the true rate while asking for slightly more coin.
	quoteRate, err := s.rates.GetRateWithBuffer(ctx, req.Asset, s.bufferPct)
	if err != nil {
		return nil, err
	}
	amountCrypto := req.AmountFiat.Div(quoteRate).Round(8)

	address, err := s.deriver.DeriveAddress(req.Asset, merchant.ID, store.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	invoice := &domain.Invoice{
		ID:                    domain.NewInvoiceID(),
		MerchantID:            merchant.ID,
		StoreID:               store.ID,
		ExternalID:            req.ExternalID,
		Currency:              "USD",
		AmountFiat:            req.AmountFiat,
		Asset:                 req.Asset,
		AmountCrypto:          amountCrypto,
		Rate:                  rate,
		Address:               address,
		Status:                domain.InvoiceStatusPending,
		StatusToken:           domain.NewStatusToken(),
		ConfirmationsRequired: domain.ConfirmationsRequiredFor(req.Asset, store.ConfirmPolicy),
		ExpiresAt:             now.Add(s.expiry),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("invoice_id", invoice.ID).
		Str("merchant_id", merchant.ID.String()).
		Str("asset", string(invoice.Asset)).
		Str("amount_fiat", invoice.AmountFiat.String()).
		Str("amount_crypto", invoice.AmountCrypto.String()).
		Msg("invoice created")

	return invoice, nil
}

// ReadStatus validates the status token and returns the public view. A
// PENDING invoice whose window has passed is expired lazily here, so
// status polls never show a stale PENDING.
func (s *invoiceService) ReadStatus(ctx context.Context, invoiceID, statusToken string) (*ports.InvoiceStatusView, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if invoice == nil {
		return nil, apperror.ErrInvoiceNotFound()
	}

	if subtle.ConstantTimeCompare([]byte(invoice.StatusToken), []byte(statusToken)) != 1 {
		return nil, apperror.ErrInvalidToken()
	}

	if invoice.Status == domain.InvoiceStatusPending && invoice.IsExpired(s.now()) {
		expired, err := s.invoiceRepo.MarkExpired(ctx, invoiceID)
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if expired {
			invoice.Status = domain.InvoiceStatusExpired
			s.log.Info().Str("invoice_id", invoiceID).Msg("invoice expired on status read")
		}
	}

	return &ports.InvoiceStatusView{
		Status:                 invoice.Status,
		ConfirmationsSeen:      invoice.ConfirmationsSeen,
		ConfirmationsRequired:  invoice.ConfirmationsRequired,
		ConfirmationsRemaining: invoice.ConfirmationsRemaining(),
		AmountCrypto:           invoice.AmountCrypto,
		Address:                invoice.Address,
		Asset:                  invoice.Asset,
		ExpiresAt:              invoice.ExpiresAt,
	}, nil
}
