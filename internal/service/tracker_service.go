package service

import (
	"context"
	"strings"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// trackerService implements ports.TrackerService. Two passes advance
// state: discovery matches chain transactions against open invoices, and
// refresh recomputes confirmations for recorded payments. Provider
// failures skip the affected invoice or payment; nothing is fabricated
// and the next cycle retries.
type trackerService struct {
	invoiceRepo ports.InvoiceRepository
	paymentRepo ports.PaymentRepository
	pool        ports.ProviderPool
	ledger      ports.LedgerService
	webhooks    ports.WebhookService
	batchLimit  int
	ceiling     int
	log         zerolog.Logger

	now func() time.Time
}

// NewTrackerService creates a new tracker service. batchLimit bounds each
// pass; ceiling stops confirmation refreshes once a payment is deep enough.
func NewTrackerService(
	invoiceRepo ports.InvoiceRepository,
	paymentRepo ports.PaymentRepository,
	pool ports.ProviderPool,
	ledger ports.LedgerService,
	webhooks ports.WebhookService,
	batchLimit int,
	ceiling int,
	log zerolog.Logger,
) ports.TrackerService {
	return &trackerService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		pool:        pool,
		ledger:      ledger,
		webhooks:    webhooks,
		batchLimit:  batchLimit,
		ceiling:     ceiling,
		log:         log,
		now:         time.Now,
	}
}

// PollInvoices runs the discovery pass over open invoices. Each invoice
// is processed independently; one failure never stalls the batch.
func (s *trackerService) PollInvoices(ctx context.Context) error {
	invoices, err := s.invoiceRepo.ListPending(ctx, s.now(), s.batchLimit)
	if err != nil {
		return err
	}

	for i := range invoices {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.pollInvoice(ctx, &invoices[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("invoice_id", invoices[i].ID).
				Msg("tracker: invoice poll failed, will retry next cycle")
		}
	}
	return nil
}

func (s *trackerService) pollInvoice(ctx context.Context, inv *domain.Invoice) error {
	txs, err := s.pool.GetTransactions(ctx, inv.Asset, inv.Address)
	if err != nil {
		return err
	}

	tx := matchTransaction(txs, inv)
	if tx == nil {
		return nil
	}

	// A transaction satisfies at most one invoice.
	exists, err := s.paymentRepo.Exists(ctx, tx.TxID, inv.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	// Credit before any invoice state changes. A failed credit leaves the
	// invoice PENDING and nothing recorded, so the next cycle retries.
	if err := s.ledger.Credit(ctx, inv.MerchantID, inv.Asset, tx.Amount); err != nil {
		return err
	}

	now := s.now()
	payment := &domain.Payment{
		ID:            domain.NewPaymentID(),
		InvoiceID:     inv.ID,
		MerchantID:    inv.MerchantID,
		Asset:         inv.Asset,
		TxID:          tx.TxID,
		BlockHeight:   tx.BlockHeight,
		Amount:        tx.Amount,
		Confirmations: tx.Confirmations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return err
	}

	status := inv.StatusForConfirmations(tx.Confirmations)
	if err := s.invoiceRepo.UpdateStatus(ctx, inv.ID, status, tx.Confirmations); err != nil {
		return err
	}

	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("txid", tx.TxID).
		Str("status", string(status)).
		Int("confirmations", tx.Confirmations).
		Msg("tracker: payment detected")

	if status == domain.InvoiceStatusConfirmed {
		s.enqueueConfirmed(ctx, inv, payment)
		return nil
	}

	remaining := inv.ConfirmationsRequired - tx.Confirmations
	if _, err := s.webhooks.Enqueue(ctx, inv.MerchantID, domain.WebhookPayload{
		Type:                   domain.WebhookTypePaymentDetected,
		InvoiceID:              inv.ID,
		MerchantID:             inv.MerchantID.String(),
		Asset:                  inv.Asset,
		Amount:                 payment.Amount,
		TxID:                   payment.TxID,
		ConfirmationsRemaining: &remaining,
		ConfirmationsRequired:  inv.ConfirmationsRequired,
	}); err != nil {
		s.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("tracker: failed to queue detection webhook")
	}
	return nil
}

// matchTransaction returns the first transaction that pays the invoice in
// full: same asset, same address, amount at or above the invoiced amount.
// Smaller transactions never qualify, so a partial payment cannot shadow a
// full one in the same response or in a later cycle.
func matchTransaction(txs []domain.ChainTransaction, inv *domain.Invoice) *domain.ChainTransaction {
	for i := range txs {
		tx := &txs[i]
		if tx.Asset != inv.Asset {
			continue
		}
		if !strings.EqualFold(tx.To, inv.Address) {
			continue
		}
		if tx.Amount.LessThan(inv.AmountCrypto) {
			continue
		}
		return tx
	}
	return nil
}

// RefreshConfirmations recomputes confirmations for payments still below
// the ceiling and promotes their invoices when the threshold is met.
func (s *trackerService) RefreshConfirmations(ctx context.Context) error {
	payments, err := s.paymentRepo.ListBelowConfirmations(ctx, s.ceiling, s.batchLimit)
	if err != nil {
		return err
	}

	// Chain tips are fetched once per asset per pass.
	heights := make(map[domain.Asset]int64)

	for i := range payments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.refreshPayment(ctx, &payments[i], heights); err != nil {
			s.log.Warn().
				Err(err).
				Str("payment_id", payments[i].ID).
				Msg("tracker: confirmation refresh failed, will retry next cycle")
		}
	}
	return nil
}

func (s *trackerService) refreshPayment(ctx context.Context, p *domain.Payment, heights map[domain.Asset]int64) error {
	height, ok := heights[p.Asset]
	if !ok {
		var err error
		height, err = s.pool.GetCurrentBlockHeight(ctx, p.Asset)
		if err != nil {
			return err
		}
		heights[p.Asset] = height
	}

	confirmations := int(height - p.BlockHeight + 1)
	if confirmations <= p.Confirmations {
		// Counts only move forward; a lagging backend cannot roll back.
		return nil
	}

	if err := s.paymentRepo.UpdateConfirmations(ctx, p.ID, confirmations); err != nil {
		return err
	}

	inv, err := s.invoiceRepo.GetByID(ctx, p.InvoiceID)
	if err != nil {
		return err
	}
	if inv == nil || inv.IsTerminal() {
		return nil
	}

	if inv.Status == domain.InvoiceStatusPaid && confirmations >= inv.ConfirmationsRequired {
		if err := s.invoiceRepo.UpdateStatus(ctx, inv.ID, domain.InvoiceStatusConfirmed, confirmations); err != nil {
			return err
		}
		p.Confirmations = confirmations
		s.log.Info().
			Str("invoice_id", inv.ID).
			Str("payment_id", p.ID).
			Int("confirmations", confirmations).
			Msg("tracker: invoice confirmed")
		s.enqueueConfirmed(ctx, inv, p)
		return nil
	}

	// Still accumulating; record progress for status polls.
	return s.invoiceRepo.UpdateStatus(ctx, inv.ID, inv.Status, confirmations)
}

// enqueueConfirmed queues the confirmation webhook for a newly confirmed
// invoice. The merchant balance was already credited at detection.
func (s *trackerService) enqueueConfirmed(ctx context.Context, inv *domain.Invoice, p *domain.Payment) {
	paidAt := s.now().Unix()
	confirmations := p.Confirmations
	if _, err := s.webhooks.Enqueue(ctx, inv.MerchantID, domain.WebhookPayload{
		Type:                  domain.WebhookTypePaymentConfirmed,
		InvoiceID:             inv.ID,
		MerchantID:            inv.MerchantID.String(),
		Asset:                 inv.Asset,
		Amount:                p.Amount,
		TxID:                  p.TxID,
		Confirmations:         &confirmations,
		ConfirmationsRequired: inv.ConfirmationsRequired,
		PaidAt:                &paidAt,
	}); err != nil {
		s.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("tracker: failed to queue confirmation webhook")
	}
}
