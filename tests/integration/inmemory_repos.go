package integration

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

// --- In-Memory Invoice Repo ---

type inMemoryInvoiceRepo struct {
	mu       sync.RWMutex
	invoices map[string]*domain.Invoice
}

func newInMemoryInvoiceRepo() *inMemoryInvoiceRepo {
	return &inMemoryInvoiceRepo{invoices: make(map[string]*domain.Invoice)}
}

func (r *inMemoryInvoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *inMemoryInvoiceRepo) GetByID(_ context.Context, id string) (*domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *inMemoryInvoiceRepo) ListPending(_ context.Context, now time.Time, limit int) ([]domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
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

func (r *inMemoryInvoiceRepo) UpdateStatus(_ context.Context, id string, status domain.InvoiceStatus, confirmationsSeen int) error {
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

func (r *inMemoryInvoiceRepo) MarkExpired(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.Status != domain.InvoiceStatusPending {
		return false, nil
	}
	inv.Status = domain.InvoiceStatusExpired
	return true, nil
}

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[string]*domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) Exists(_ context.Context, txid, invoiceID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.TxID == txid && p.InvoiceID == invoiceID {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryPaymentRepo) ListBelowConfirmations(_ context.Context, ceiling, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
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

func (r *inMemoryPaymentRepo) UpdateConfirmations(_ context.Context, id string, confirmations int) error {
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

// --- In-Memory Merchant / Store Repos ---

type inMemoryMerchantRepo struct {
	mu        sync.RWMutex
	merchants map[uuid.UUID]*domain.Merchant
}

func newInMemoryMerchantRepo() *inMemoryMerchantRepo {
	return &inMemoryMerchantRepo{merchants: make(map[uuid.UUID]*domain.Merchant)}
}

func (r *inMemoryMerchantRepo) Create(_ context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.merchants[m.ID] = &cp
	return nil
}

func (r *inMemoryMerchantRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

type inMemoryStoreRepo struct {
	mu     sync.RWMutex
	stores map[uuid.UUID]*domain.Store
}

func newInMemoryStoreRepo() *inMemoryStoreRepo {
	return &inMemoryStoreRepo{stores: make(map[uuid.UUID]*domain.Store)}
}

func (r *inMemoryStoreRepo) Create(_ context.Context, s *domain.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.stores[s.MerchantID] = &cp
	return nil
}

func (r *inMemoryStoreRepo) GetByMerchantID(_ context.Context, merchantID uuid.UUID) (*domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[merchantID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// --- In-Memory Balance / Withdrawal Repos ---

type balanceKey struct {
	owner string
	asset domain.Asset
}

type inMemoryBalanceRepo struct {
	mu       sync.RWMutex
	balances map[balanceKey]*domain.Balance
}

func newInMemoryBalanceRepo() *inMemoryBalanceRepo {
	return &inMemoryBalanceRepo{balances: make(map[balanceKey]*domain.Balance)}
}

func (r *inMemoryBalanceRepo) Get(_ context.Context, ownerID string, asset domain.Asset) (*domain.Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.balances[balanceKey{ownerID, asset}]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *inMemoryBalanceRepo) GetForUpdate(ctx context.Context, _ pgx.Tx, ownerID string, asset domain.Asset) (*domain.Balance, error) {
	return r.Get(ctx, ownerID, asset)
}

func (r *inMemoryBalanceRepo) Upsert(_ context.Context, _ pgx.Tx, b *domain.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.balances[balanceKey{b.OwnerID, b.Asset}] = &cp
	return nil
}

type inMemoryWithdrawalRepo struct {
	mu          sync.RWMutex
	withdrawals map[string]*domain.Withdrawal
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{withdrawals: make(map[string]*domain.Withdrawal)}
}

func (r *inMemoryWithdrawalRepo) Create(_ context.Context, _ pgx.Tx, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(_ context.Context, id string) (*domain.Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

// --- In-Memory Webhook Repo ---

type inMemoryWebhookRepo struct {
	mu         sync.Mutex
	deliveries map[uuid.UUID]*domain.WebhookDelivery
}

func newInMemoryWebhookRepo() *inMemoryWebhookRepo {
	return &inMemoryWebhookRepo{deliveries: make(map[uuid.UUID]*domain.WebhookDelivery)}
}

func (r *inMemoryWebhookRepo) Create(_ context.Context, d *domain.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.deliveries[d.ID] = &cp
	return nil
}

func (r *inMemoryWebhookRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

// ClaimDue mirrors the SKIP LOCKED claim: the lease bump makes claimed
// rows invisible to a concurrent drain.
func (r *inMemoryWebhookRepo) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]domain.WebhookDelivery, error) {
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

func (r *inMemoryWebhookRepo) Update(_ context.Context, d *domain.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.deliveries[d.ID] = &cp
	return nil
}

// --- In-Memory Transactor ---

// inMemoryTx satisfies pgx.Tx. The transactor serializes transactions with
// a global mutex, standing in for row locks in concurrency tests.
type inMemoryTx struct {
	release func()
	done    bool
}

func (t *inMemoryTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *inMemoryTx) Commit(context.Context) error {
	if !t.done {
		t.done = true
		t.release()
	}
	return nil
}

func (t *inMemoryTx) Rollback(context.Context) error {
	if !t.done {
		t.done = true
		t.release()
	}
	return nil
}

func (t *inMemoryTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (t *inMemoryTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *inMemoryTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *inMemoryTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (t *inMemoryTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *inMemoryTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (t *inMemoryTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (t *inMemoryTx) Conn() *pgx.Conn                                  { return nil }

type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &inMemoryTx{release: t.mu.Unlock}, nil
}

// --- Scripted Chain Provider ---

// scriptedProvider serves canned chain data so the tracker can be driven
// deterministically through the real provider pool.
type scriptedProvider struct {
	mu     sync.Mutex
	name   string
	chains []domain.Chain
	txs    map[string][]domain.ChainTransaction // keyed by address
	height int64
	err    error
}

func newScriptedProvider(name string, chains ...domain.Chain) *scriptedProvider {
	return &scriptedProvider{
		name:   name,
		chains: chains,
		txs:    make(map[string][]domain.ChainTransaction),
	}
}

func (p *scriptedProvider) addTransaction(address string, tx domain.ChainTransaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs[address] = append(p.txs[address], tx)
}

func (p *scriptedProvider) setHeight(h int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.height = h
}

func (p *scriptedProvider) Name() string           { return p.name }
func (p *scriptedProvider) Chains() []domain.Chain { return p.chains }

func (p *scriptedProvider) GetBalance(context.Context, string, domain.Asset) (decimal.Decimal, error) {
	return decimal.Zero, p.err
}

func (p *scriptedProvider) GetTransactions(_ context.Context, address string) ([]domain.ChainTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.txs[address], nil
}

func (p *scriptedProvider) GetCurrentBlockHeight(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	return p.height, nil
}

func (p *scriptedProvider) BroadcastTransaction(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

func (p *scriptedProvider) GetRate(context.Context, domain.Asset) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("not implemented")
}

var _ ports.ChainProvider = (*scriptedProvider)(nil)

// --- Fixed Rate Fetcher ---

type fixedRateFetcher struct {
	rates map[domain.Asset]decimal.Decimal
}

func (f *fixedRateFetcher) FetchRate(_ context.Context, asset domain.Asset) (decimal.Decimal, error) {
	rate, ok := f.rates[asset]
	if !ok {
		return decimal.Zero, errors.New("no rate")
	}
	return rate, nil
}
