package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports/mocks"
	"qr-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerMocks struct {
	userRepo   *mocks.MockUserRepository
	txRepo     *mocks.MockTransactionRepository
	transactor *mocks.MockDBTransactor
	crypto     *mocks.MockCryptoService
	nonces     *mocks.MockNonceStore
	audit      *mocks.MockAuditService
}

func setupLedgerService(t *testing.T) (*LedgerServiceImpl, *ledgerMocks) {
	ctrl := gomock.NewController(t)
	m := &ledgerMocks{
		userRepo:   mocks.NewMockUserRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		crypto:     mocks.NewMockCryptoService(ctrl),
		nonces:     mocks.NewMockNonceStore(ctrl),
		audit:      mocks.NewMockAuditService(ctrl),
	}
	m.audit.EXPECT().Log(gomock.Any(), gomock.Any()).AnyTimes()

	svc := NewLedgerService(m.userRepo, m.txRepo, m.transactor, m.crypto, m.nonces, m.audit, paymentConfigStrict, newTestLogger())
	return svc, m
}

// signedQR returns an encoded 30.00 payment from the fixture sender to W000000000002.
func signedQR(t *testing.T) (*codecFixture, *domain.PaymentPayload, string) {
	t.Helper()
	f := newCodecFixture(t)
	p := f.build(t, "30", "lunch")
	qr, err := f.codec.Encode(p)
	require.NoError(t, err)
	return f, p, qr
}

func TestApplyIncomingPayment_Success(t *testing.T) {
	svc, m := setupLedgerService(t)
	f, p, qr := signedQR(t)
	tx := &mockTx{}

	sender := &domain.Identity{WalletID: "W000000000001", PublicKey: f.sender.PublicKey, Balance: dec("100")}
	receiver := &domain.Identity{WalletID: "W000000000002", Balance: dec("5")}

	m.userRepo.EXPECT().GetByWalletID(gomock.Any(), "W000000000001").Return(sender, nil)
	m.crypto.EXPECT().Verify(SignableMessage(p), p.Signature, f.sender.PublicKey).Return(true, nil)
	m.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	gomock.InOrder(
		m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tx, "W000000000001").Return(sender, nil),
		m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tx, "W000000000002").Return(receiver, nil),
	)
	m.nonces.EXPECT().CheckAndSet(gomock.Any(), "W000000000001", p.Nonce, time.Hour).Return(true, nil)
	m.userRepo.EXPECT().UpdateBalance(gomock.Any(), tx, "W000000000001", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ string, b decimal.Decimal) error {
			assert.True(t, b.Equal(dec("70")))
			return nil
		})
	m.userRepo.EXPECT().UpdateBalance(gomock.Any(), tx, "W000000000002", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ string, b decimal.Decimal) error {
			assert.True(t, b.Equal(dec("35")))
			return nil
		})
	sentID, recvID := uuid.New(), uuid.New()
	m.crypto.EXPECT().RecordID("W000000000001", p.Nonce).Return(sentID)
	m.crypto.EXPECT().RecordID("W000000000002", p.Nonce).Return(recvID)
	m.txRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(true, nil).Times(2)

	rec, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000002")
	require.NoError(t, err)
	assert.Equal(t, recvID, rec.ID)
	assert.Equal(t, domain.DirectionReceived, rec.Direction)
	assert.Equal(t, domain.TransactionStatusCompleted, rec.Status)
	assert.True(t, rec.Amount.Equal(dec("30")))
}

func TestApplyIncomingPayment_Rejections(t *testing.T) {
	t.Run("malformed qr", func(t *testing.T) {
		svc, _ := setupLedgerService(t)
		_, err := svc.ApplyIncomingPayment(context.Background(), "QRW1:%%%", "W000000000002")
		assertAppError(t, err, "CRYPTO_003")
	})

	t.Run("unknown sender without trust", func(t *testing.T) {
		svc, m := setupLedgerService(t)
		_, _, qr := signedQR(t)
		m.userRepo.EXPECT().GetByWalletID(gomock.Any(), "W000000000001").Return(nil, nil)

		_, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000002")
		assertAppError(t, err, "CRYPTO_005")
	})

	t.Run("embedded key differs from stored key", func(t *testing.T) {
		svc, m := setupLedgerService(t)
		_, _, qr := signedQR(t)
		m.userRepo.EXPECT().GetByWalletID(gomock.Any(), "W000000000001").Return(&domain.Identity{WalletID: "W000000000001", PublicKey: "other"}, nil)

		_, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000002")
		assertAppError(t, err, "CRYPTO_002")
	})

	t.Run("bad signature never opens a transaction", func(t *testing.T) {
		svc, m := setupLedgerService(t)
		f, _, qr := signedQR(t)
		m.userRepo.EXPECT().GetByWalletID(gomock.Any(), gomock.Any()).Return(&domain.Identity{WalletID: "W000000000001", PublicKey: f.sender.PublicKey}, nil)
		m.crypto.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)

		_, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000002")
		assertAppError(t, err, "CRYPTO_002")
	})

	t.Run("malformed key material", func(t *testing.T) {
		svc, m := setupLedgerService(t)
		f, _, qr := signedQR(t)
		m.userRepo.EXPECT().GetByWalletID(gomock.Any(), gomock.Any()).Return(&domain.Identity{WalletID: "W000000000001", PublicKey: f.sender.PublicKey}, nil)
		m.crypto.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, apperror.ErrCrypto(errors.New("short key")))

		_, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000002")
		assertAppError(t, err, "CRYPTO_001")
	})

	t.Run("active wallet not involved", func(t *testing.T) {
		svc, m := setupLedgerService(t)
		f, _, qr := signedQR(t)
		m.userRepo.EXPECT().GetByWalletID(gomock.Any(), gomock.Any()).Return(&domain.Identity{WalletID: "W000000000001", PublicKey: f.sender.PublicKey}, nil)
		m.crypto.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

		_, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000003")
		assertAppError(t, err, "VAL_001")
	})
}

func TestApplyIncomingPayment_InsufficientBalanceWritesNothing(t *testing.T) {
	svc, m := setupLedgerService(t)
	f, _, qr := signedQR(t)
	tx := &mockTx{}
	sender := &domain.Identity{WalletID: "W000000000001", PublicKey: f.sender.PublicKey, Balance: dec("29.99")}

	m.userRepo.EXPECT().GetByWalletID(gomock.Any(), gomock.Any()).Return(sender, nil)
	m.crypto.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	m.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tx, "W000000000001").Return(sender, nil)
	m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tx, "W000000000002").Return(&domain.Identity{WalletID: "W000000000002"}, nil)

	_, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000001")
	assertAppError(t, err, "PAY_001")
}

func TestApplyIncomingPayment_ReplayedNonce(t *testing.T) {
	svc, m := setupLedgerService(t)
	f, _, qr := signedQR(t)
	tx := &mockTx{}
	sender := &domain.Identity{WalletID: "W000000000001", PublicKey: f.sender.PublicKey, Balance: dec("100")}

	m.userRepo.EXPECT().GetByWalletID(gomock.Any(), gomock.Any()).Return(sender, nil)
	m.crypto.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	m.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tx, gomock.Any()).Return(sender, nil).Times(2)
	m.nonces.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)

	_, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000001")
	assertAppError(t, err, "CRYPTO_004")
}

func TestApplyIncomingPayment_NonceStoreDown(t *testing.T) {
	svc, m := setupLedgerService(t)
	f, _, qr := signedQR(t)
	tx := &mockTx{}
	sender := &domain.Identity{WalletID: "W000000000001", PublicKey: f.sender.PublicKey, Balance: dec("100")}

	m.userRepo.EXPECT().GetByWalletID(gomock.Any(), gomock.Any()).Return(sender, nil)
	m.crypto.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	m.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tx, gomock.Any()).Return(sender, nil).Times(2)
	m.nonces.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	_, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000001")
	assertAppError(t, err, "SYS_001")
}

// commitFailTx fails Commit so the claim-then-rollback path can be exercised.
type commitFailTx struct{ mockTx }

func (c *commitFailTx) Commit(_ context.Context) error { return errors.New("connection reset") }

func TestApplyIncomingPayment_ReleasesNonceWhenNotCommitted(t *testing.T) {
	tests := []struct {
		name        string
		tx          pgx.Tx
		debitErr    error
		wantCreates int
	}{
		{name: "debit fails", tx: &mockTx{}, debitErr: errors.New("deadlock detected")},
		{name: "commit fails", tx: &commitFailTx{}, wantCreates: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := setupLedgerService(t)
			f, p, qr := signedQR(t)
			sender := &domain.Identity{WalletID: "W000000000001", PublicKey: f.sender.PublicKey, Balance: dec("100")}
			receiver := &domain.Identity{WalletID: "W000000000002"}

			m.userRepo.EXPECT().GetByWalletID(gomock.Any(), "W000000000001").Return(sender, nil)
			m.crypto.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
			m.transactor.EXPECT().Begin(gomock.Any()).Return(tt.tx, nil)
			m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tt.tx, "W000000000001").Return(sender, nil)
			m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tt.tx, "W000000000002").Return(receiver, nil)
			m.nonces.EXPECT().CheckAndSet(gomock.Any(), "W000000000001", p.Nonce, time.Hour).Return(true, nil)
			m.userRepo.EXPECT().UpdateBalance(gomock.Any(), tt.tx, "W000000000001", gomock.Any()).Return(tt.debitErr)
			if tt.debitErr == nil {
				m.userRepo.EXPECT().UpdateBalance(gomock.Any(), tt.tx, "W000000000002", gomock.Any()).Return(nil)
				m.crypto.EXPECT().RecordID(gomock.Any(), p.Nonce).Return(uuid.New()).Times(2)
			}
			m.txRepo.EXPECT().Create(gomock.Any(), tt.tx, gomock.Any()).Return(true, nil).Times(tt.wantCreates)
			m.nonces.EXPECT().Release(gomock.Any(), "W000000000001", p.Nonce).Return(nil)

			_, err := svc.ApplyIncomingPayment(context.Background(), qr, "W000000000002")
			assertAppError(t, err, "SYS_001")
		})
	}
}

func TestCredit(t *testing.T) {
	svc, m := setupLedgerService(t)
	tx := &mockTx{}

	_, err := svc.Credit(context.Background(), tx, "W000000000001", decimal.Zero)
	assertAppError(t, err, "VAL_002")

	m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tx, "W000000000001").Return(&domain.Identity{WalletID: "W000000000001", Balance: dec("10")}, nil)
	m.userRepo.EXPECT().UpdateBalance(gomock.Any(), tx, "W000000000001", gomock.Any()).Return(nil)
	balance, err := svc.Credit(context.Background(), tx, "W000000000001", dec("2.50"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("12.50")))

	m.userRepo.EXPECT().GetByWalletIDForUpdate(gomock.Any(), tx, "W000000000009").Return(nil, nil)
	_, err = svc.Credit(context.Background(), tx, "W000000000009", dec("1"))
	assertAppError(t, err, "AUTH_001")
}

func TestGetHistory_ClampsLimit(t *testing.T) {
	tests := []struct {
		requested, used int
	}{
		{0, 20}, {-5, 20}, {7, 7}, {100, 100}, {500, 100},
	}
	for _, tt := range tests {
		svc, m := setupLedgerService(t)
		m.txRepo.EXPECT().ListByWallet(gomock.Any(), "W000000000001", tt.used).Return(nil, nil)
		_, err := svc.GetHistory(context.Background(), "W000000000001", tt.requested)
		require.NoError(t, err)
	}
}

// --- properties over the in-memory store ---

func TestLedger_PaymentBetweenLocalWallets(t *testing.T) {
	h := newHarness(t, paymentConfigStrict)
	aliceCtx, alice := h.createWallet(t, "Alice", "5550100001", "1111")
	bobCtx, bob := h.createWallet(t, "Bob", "5550100002", "2222")
	h.fund(t, alice.WalletID, "100")
	h.fund(t, bob.WalletID, "15")

	out, err := h.payments.GeneratePaymentQR(aliceCtx, paymentQR(bob.WalletID, "40", "lunch"))
	require.NoError(t, err)

	rec, err := h.payments.ProcessScannedPayment(bobCtx, out.QR)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionReceived, rec.Direction)

	assert.True(t, h.balance(t, alice.WalletID).Equal(dec("60")))
	assert.True(t, h.balance(t, bob.WalletID).Equal(dec("55")))

	aliceHistory, err := h.payments.GetTransactionHistory(aliceCtx, 10)
	require.NoError(t, err)
	require.Len(t, aliceHistory, 1)
	assert.Equal(t, domain.DirectionSent, aliceHistory[0].Direction)
	assert.Equal(t, domain.TransactionStatusCompleted, aliceHistory[0].Status)

	bobHistory, err := h.payments.GetTransactionHistory(bobCtx, 10)
	require.NoError(t, err)
	require.Len(t, bobHistory, 1)
	assert.Equal(t, domain.DirectionReceived, bobHistory[0].Direction)
	assert.Equal(t, domain.TransactionStatusCompleted, bobHistory[0].Status)
	assert.Equal(t, "lunch", bobHistory[0].Description)
	assert.True(t, bobHistory[0].Amount.Equal(dec("40")))

	// Replays from either side are rejected and move nothing.
	_, err = h.payments.ProcessScannedPayment(bobCtx, out.QR)
	assertAppError(t, err, "CRYPTO_004")
	_, err = h.payments.ProcessScannedPayment(aliceCtx, out.QR)
	assertAppError(t, err, "CRYPTO_004")

	assert.True(t, h.balance(t, alice.WalletID).Equal(dec("60")))
	assert.True(t, h.balance(t, bob.WalletID).Equal(dec("55")))
	bobHistory, err = h.ledger.GetHistory(context.Background(), bob.WalletID, 0)
	require.NoError(t, err)
	assert.Len(t, bobHistory, 1)
}

func TestLedger_ConcurrentScansApplyOnce(t *testing.T) {
	h := newHarness(t, paymentConfigStrict)
	aliceCtx, alice := h.createWallet(t, "Alice", "5550100001", "1111")
	_, bob := h.createWallet(t, "Bob", "5550100002", "2222")
	h.fund(t, alice.WalletID, "100")

	out, err := h.payments.GeneratePaymentQR(aliceCtx, paymentQR(bob.WalletID, "10", ""))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.ledger.ApplyIncomingPayment(context.Background(), out.QR, bob.WalletID); err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.True(t, h.balance(t, alice.WalletID).Equal(dec("90")))
	assert.True(t, h.balance(t, bob.WalletID).Equal(dec("10")))
}

func TestLedger_TamperedAmountRejected(t *testing.T) {
	h := newHarness(t, paymentConfigStrict)
	aliceCtx, alice := h.createWallet(t, "Alice", "5550100001", "1111")
	bobCtx, bob := h.createWallet(t, "Bob", "5550100002", "2222")
	h.fund(t, alice.WalletID, "100")

	out, err := h.payments.GeneratePaymentQR(aliceCtx, paymentQR(bob.WalletID, "1", ""))
	require.NoError(t, err)

	codec := NewPaymentCodec(h.crypto)
	forged := *out.Payload
	forged.Amount = dec("99")
	qr, err := codec.Encode(&forged)
	require.NoError(t, err)

	_, err = h.payments.ProcessScannedPayment(bobCtx, qr)
	assertAppError(t, err, "CRYPTO_002")
	assert.True(t, h.balance(t, bob.WalletID).IsZero())
}

func TestLedger_InsufficientBalanceLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, paymentConfigStrict)
	aliceCtx, alice := h.createWallet(t, "Alice", "5550100001", "1111")
	bobCtx, bob := h.createWallet(t, "Bob", "5550100002", "2222")
	h.fund(t, alice.WalletID, "5")

	out, err := h.payments.GeneratePaymentQR(aliceCtx, paymentQR(bob.WalletID, "5.01", ""))
	require.NoError(t, err)

	_, err = h.payments.ProcessScannedPayment(bobCtx, out.QR)
	assertAppError(t, err, "PAY_001")

	assert.True(t, h.balance(t, alice.WalletID).Equal(dec("5")))
	assert.True(t, h.balance(t, bob.WalletID).IsZero())
	history, err := h.ledger.GetHistory(context.Background(), bob.WalletID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	// The nonce was not burned: the same QR succeeds once the sender is funded.
	h.fund(t, alice.WalletID, "10")
	_, err = h.payments.ProcessScannedPayment(bobCtx, out.QR)
	require.NoError(t, err)
}

func TestLedger_TrustedEmbeddedKeyCreditsReceiverOnly(t *testing.T) {
	h := newHarness(t, paymentConfigTrusted)
	bobCtx, bob := h.createWallet(t, "Bob", "5550100002", "2222")

	f := newCodecFixture(t)
	p, err := f.codec.BuildPayload(f.sender, f.priv, bob.WalletID, dec("12.34"), "remote", time.Now())
	require.NoError(t, err)
	qr, err := f.codec.Encode(p)
	require.NoError(t, err)

	rec, err := h.payments.ProcessScannedPayment(bobCtx, qr)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionReceived, rec.Direction)
	assert.True(t, h.balance(t, bob.WalletID).Equal(dec("12.34")))

	strict := newHarness(t, paymentConfigStrict)
	strictCtx, carol := strict.createWallet(t, "Carol", "5550100003", "3333")
	p2, err := f.codec.BuildPayload(f.sender, f.priv, carol.WalletID, dec("1"), "", time.Now())
	require.NoError(t, err)
	qr2, err := f.codec.Encode(p2)
	require.NoError(t, err)
	_, err = strict.payments.ProcessScannedPayment(strictCtx, qr2)
	assertAppError(t, err, "CRYPTO_005")
}
