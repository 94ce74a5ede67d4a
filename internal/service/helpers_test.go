package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"qr-wallet/config"
	"qr-wallet/internal/adapter/storage/memory"
	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// testArgon2 keeps PIN hashing cheap in unit tests.
var testArgon2 = config.Argon2Config{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32}

var testWalletConfig = config.WalletConfig{
	IDMaxAttempts:  10,
	MinPhoneDigits: 8,
	MinPINLength:   4,
	Argon2:         testArgon2,
}

var (
	paymentConfigStrict  = config.PaymentConfig{NonceTTL: time.Hour}
	paymentConfigTrusted = config.PaymentConfig{NonceTTL: time.Hour, TrustEmbeddedKey: true}
)

var testCashInConfig = config.CashInConfig{
	Expiry:       24 * time.Hour,
	AgentTimeout: time.Second,
	BankTimeout:  time.Second,
}

var testFees = config.FeesConfig{
	Agent:   config.FeeRule{Base: "0.50", Percent: "1"},
	Voucher: config.FeeRule{Base: "0", Percent: "0"},
	Banking: config.FeeRule{Base: "1.00", Percent: "0.5"},
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string { return &s }

type decimalMatcher struct{ want decimal.Decimal }

func (m decimalMatcher) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string { return "is decimal " + m.want.String() }

// decEq matches a decimal.Decimal numerically equal to s.
func decEq(s string) gomock.Matcher {
	return decimalMatcher{want: dec(s)}
}

// sessionCtx returns a context carrying a session with identity active.
func sessionCtx(identity *domain.Identity) context.Context {
	sess := NewSession()
	if identity != nil {
		sess.Set(identity)
	}
	return WithSession(context.Background(), sess)
}

type nopAudit struct{}

func (nopAudit) Log(context.Context, *domain.AuditLog) {}

// recordingAudit keeps every entry it is given.
type recordingAudit struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *recordingAudit) Log(_ context.Context, entry *domain.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
}

func (r *recordingAudit) count(action domain.AuditAction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// memNonces is an in-process ports.NonceStore.
type memNonces struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemNonces() *memNonces {
	return &memNonces{seen: make(map[string]bool)}
}

func (m *memNonces) CheckAndSet(_ context.Context, scope, nonce string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scope + ":" + nonce
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memNonces) Release(_ context.Context, scope, nonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, scope+":"+nonce)
	return nil
}

// memLocks is an in-process ports.VoucherLock.
type memLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]chan struct{})}
}

func (m *memLocks) Acquire(ctx context.Context, code string) (string, bool, error) {
	for {
		m.mu.Lock()
		ch, busy := m.held[code]
		if !busy {
			m.held[code] = make(chan struct{})
			m.mu.Unlock()
			return uuid.NewString(), true, nil
		}
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return "", false, nil
		}
	}
}

func (m *memLocks) Release(_ context.Context, code, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.held[code]; ok {
		delete(m.held, code)
		close(ch)
	}
	return nil
}

// instantAgents confirms every cash-in immediately.
type instantAgents struct{}

func (instantAgents) Confirm(context.Context, *domain.Agent, *domain.CashInTransaction) error {
	return nil
}

// harness wires the real services over the in-memory store.
type harness struct {
	store       *memory.Store
	users       *memory.UserRepo
	instruments *memory.InstrumentRepo
	cashIns     *memory.CashInRepo
	crypto      *Ed25519CryptoService
	wallets     *WalletServiceImpl
	ledger      *LedgerServiceImpl
	payments    *PaymentServiceImpl
	cashin      *CashInServiceImpl
	audit       *recordingAudit
}

func newHarness(t *testing.T, paymentCfg config.PaymentConfig) *harness {
	t.Helper()

	store := memory.New()
	users := memory.NewUserRepo(store)
	txns := memory.NewTransactionRepo(store)
	instruments := memory.NewInstrumentRepo(store)
	cashIns := memory.NewCashInRepo(store)
	transactor := memory.NewTransactor(store)

	crypto := NewEd25519CryptoService()
	encSvc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	fees, err := NewFeeSchedule(testFees)
	require.NoError(t, err)

	log := newTestLogger()
	wallets := NewWalletService(users, crypto, NewArgon2PINHasher(testArgon2), encSvc, nopAudit{}, testWalletConfig, log)
	ledger := NewLedgerService(users, txns, transactor, crypto, newMemNonces(), nopAudit{}, paymentCfg, log)
	payments := NewPaymentService(ledger, crypto, encSvc, log)
	audit := &recordingAudit{}
	cashin := NewCashInService(CashInDeps{
		CashIns:     cashIns,
		Instruments: instruments,
		Transactor:  transactor,
		Ledger:      ledger,
		Crypto:      crypto,
		Encryption:  encSvc,
		Agents:      instantAgents{},
		Banks:       NewSimulatedBankNetwork(0, log),
		Locks:       newMemLocks(),
		Audit:       audit,
		Fees:        fees,
	}, testCashInConfig, log)

	return &harness{
		store:       store,
		users:       users,
		instruments: instruments,
		cashIns:     cashIns,
		crypto:      crypto,
		wallets:     wallets,
		ledger:      ledger,
		payments:    payments,
		cashin:      cashin,
		audit:       audit,
	}
}

// createWallet registers a wallet and returns a context whose session is that wallet.
func (h *harness) createWallet(t *testing.T, name, phone, pin string) (context.Context, *domain.Identity) {
	t.Helper()
	ctx := WithSession(context.Background(), NewSession())
	identity, err := h.wallets.CreateWallet(ctx, ports.CreateWalletRequest{DisplayName: name, PhoneNumber: phone, PIN: pin})
	require.NoError(t, err)
	return ctx, identity
}

// fund sets a wallet balance directly in the store.
func (h *harness) fund(t *testing.T, walletID string, amount string) {
	t.Helper()
	ctx := context.Background()
	tx, err := memory.NewTransactor(h.store).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, h.users.UpdateBalance(ctx, tx, walletID, dec(amount)))
	require.NoError(t, tx.Commit(ctx))
}

func (h *harness) balance(t *testing.T, walletID string) decimal.Decimal {
	t.Helper()
	u, err := h.users.GetByWalletID(context.Background(), walletID)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u.Balance
}
