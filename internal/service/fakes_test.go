package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// In-memory fakes for the ports the services depend on.

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]*domain.Invoice
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[string]*domain.Invoice)}
}

func (r *fakeInvoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, id string) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) ListPending(_ context.Context, now time.Time, limit int) ([]domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range r.invoices {
		if inv.Status == domain.InvoiceStatusPending && inv.ExpiresAt.After(now) {
			out = append(out, *inv)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) UpdateStatus(_ context.Context, id string, status domain.InvoiceStatus, confirmationsSeen int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return errors.New("invoice not found")
	}
	inv.Status = status
	if confirmationsSeen > inv.ConfirmationsSeen {
		inv.ConfirmationsSeen = confirmationsSeen
	}
	return nil
}

func (r *fakeInvoiceRepo) MarkExpired(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.Status != domain.InvoiceStatusPending {
		return false, nil
	}
	inv.Status = domain.InvoiceStatusExpired
	return true, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*domain.Payment)}
}

func (r *fakePaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) Exists(_ context.Context, txid, invoiceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.TxID == txid && p.InvoiceID == invoiceID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePaymentRepo) ListBelowConfirmations(_ context.Context, ceiling, limit int) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Payment
	for _, p := range r.payments {
		if p.Confirmations < ceiling {
			out = append(out, *p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) UpdateConfirmations(_ context.Context, id string, confirmations int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return errors.New("payment not found")
	}
	if confirmations > p.Confirmations {
		p.Confirmations = confirmations
	}
	return nil
}

type fakeWebhookRepo struct {
	mu         sync.Mutex
	deliveries map[uuid.UUID]*domain.WebhookDelivery
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{deliveries: make(map[uuid.UUID]*domain.WebhookDelivery)}
}

func (r *fakeWebhookRepo) Create(_ context.Context, d *domain.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.deliveries[d.ID] = &cp
	return nil
}

func (r *fakeWebhookRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *fakeWebhookRepo) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]domain.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookDelivery
	for _, d := range r.deliveries {
		if d.IsTerminal() || d.NextRetryAt.After(now) {
			continue
		}
		d.NextRetryAt = now.Add(lease)
		out = append(out, *d)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeWebhookRepo) Update(_ context.Context, d *domain.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.deliveries[d.ID] = &cp
	return nil
}

type fakeMerchantRepo struct {
	mu        sync.Mutex
	merchants map[uuid.UUID]*domain.Merchant
}

func newFakeMerchantRepo() *fakeMerchantRepo {
	return &fakeMerchantRepo{merchants: make(map[uuid.UUID]*domain.Merchant)}
}

func (r *fakeMerchantRepo) Create(_ context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.merchants[m.ID] = &cp
	return nil
}

func (r *fakeMerchantRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

type fakeStoreRepo struct {
	mu     sync.Mutex
	stores map[uuid.UUID]*domain.Store // keyed by merchant ID
}

func newFakeStoreRepo() *fakeStoreRepo {
	return &fakeStoreRepo{stores: make(map[uuid.UUID]*domain.Store)}
}

func (r *fakeStoreRepo) Create(_ context.Context, s *domain.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.stores[s.MerchantID] = &cp
	return nil
}

func (r *fakeStoreRepo) GetByMerchantID(_ context.Context, merchantID uuid.UUID) (*domain.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[merchantID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

type balanceKey struct {
	owner string
	asset domain.Asset
}

type fakeBalanceRepo struct {
	mu       sync.Mutex
	balances map[balanceKey]*domain.Balance
}

func newFakeBalanceRepo() *fakeBalanceRepo {
	return &fakeBalanceRepo{balances: make(map[balanceKey]*domain.Balance)}
}

func (r *fakeBalanceRepo) Get(_ context.Context, ownerID string, asset domain.Asset) (*domain.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[balanceKey{ownerID, asset}]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBalanceRepo) GetForUpdate(ctx context.Context, _ pgx.Tx, ownerID string, asset domain.Asset) (*domain.Balance, error) {
	return r.Get(ctx, ownerID, asset)
}

func (r *fakeBalanceRepo) Upsert(_ context.Context, _ pgx.Tx, b *domain.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.balances[balanceKey{b.OwnerID, b.Asset}] = &cp
	return nil
}

type fakeWithdrawalRepo struct {
	mu          sync.Mutex
	withdrawals map[string]*domain.Withdrawal
}

func newFakeWithdrawalRepo() *fakeWithdrawalRepo {
	return &fakeWithdrawalRepo{withdrawals: make(map[string]*domain.Withdrawal)}
}

func (r *fakeWithdrawalRepo) Create(_ context.Context, _ pgx.Tx, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *fakeWithdrawalRepo) GetByID(_ context.Context, id string) (*domain.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

// fakeTx satisfies pgx.Tx for services that only Begin/Commit/Rollback.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(context.Context) error          { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (t *fakeTx) Conn() *pgx.Conn                                  { return nil }

type fakeTransactor struct {
	lastTx *fakeTx
}

func (f *fakeTransactor) Begin(context.Context) (pgx.Tx, error) {
	f.lastTx = &fakeTx{}
	return f.lastTx, nil
}

type fakeClaimStore struct {
	mu     sync.Mutex
	held   map[string]bool
	denied bool // when true, every claim loses
}

func newFakeClaimStore() *fakeClaimStore {
	return &fakeClaimStore{held: make(map[string]bool)}
}

func (s *fakeClaimStore) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied || s.held[key] {
		return false, nil
	}
	s.held[key] = true
	return true, nil
}

func (s *fakeClaimStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, key)
	return nil
}

// fakeRateService quotes a fixed rate for every asset.
type fakeRateService struct {
	rate decimal.Decimal
	err  error
}

func (s *fakeRateService) GetRate(context.Context, domain.Asset) (decimal.Decimal, error) {
	return s.rate, s.err
}

func (s *fakeRateService) GetRateWithBuffer(_ context.Context, _ domain.Asset, bufferPct decimal.Decimal) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	return s.rate.Div(one.Add(bufferPct.Div(hundred))), nil
}

func (s *fakeRateService) Stats() ports.RateCacheStats { return ports.RateCacheStats{} }
func (s *fakeRateService) Clear()                      {}

// fakePool serves canned provider data per asset.
type fakePool struct {
	mu      sync.Mutex
	txs     map[string][]domain.ChainTransaction // keyed by address
	heights map[domain.Asset]int64
	err     error
}

func newFakePool() *fakePool {
	return &fakePool{
		txs:     make(map[string][]domain.ChainTransaction),
		heights: make(map[domain.Asset]int64),
	}
}

func (p *fakePool) GetBalance(context.Context, domain.Asset, string) (decimal.Decimal, error) {
	return decimal.Zero, p.err
}

func (p *fakePool) GetTransactions(_ context.Context, _ domain.Asset, address string) ([]domain.ChainTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.txs[address], nil
}

func (p *fakePool) GetCurrentBlockHeight(_ context.Context, asset domain.Asset) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	return p.heights[asset], nil
}

func (p *fakePool) BroadcastTransaction(context.Context, domain.Asset, string) (string, error) {
	return "", p.err
}

func (p *fakePool) GetRate(context.Context, domain.Asset) (decimal.Decimal, error) {
	return decimal.Zero, p.err
}

func (p *fakePool) Health() []ports.ProviderHealthSnapshot { return nil }

// fakeLedger records credits instead of touching a database.
type fakeLedger struct {
	mu      sync.Mutex
	credits []creditCall
	err     error
}

type creditCall struct {
	merchantID uuid.UUID
	asset      domain.Asset
	gross      decimal.Decimal
}

func (l *fakeLedger) Credit(_ context.Context, merchantID uuid.UUID, asset domain.Asset, gross decimal.Decimal) error {
	if l.err != nil {
		return l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credits = append(l.credits, creditCall{merchantID, asset, gross})
	return nil
}

func (l *fakeLedger) RequestWithdrawal(context.Context, uuid.UUID, domain.Asset, decimal.Decimal, string) (*domain.Withdrawal, error) {
	return nil, errors.New("not implemented")
}

// fakeWebhooks records enqueued payloads.
type fakeWebhooks struct {
	mu       sync.Mutex
	payloads []domain.WebhookPayload
}

func (w *fakeWebhooks) Enqueue(_ context.Context, _ uuid.UUID, payload domain.WebhookPayload) (uuid.UUID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.payloads = append(w.payloads, payload)
	return uuid.New(), nil
}

func (w *fakeWebhooks) EnqueueTest(context.Context, uuid.UUID) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (w *fakeWebhooks) DrainDue(context.Context, int) (int, error) { return 0, nil }
