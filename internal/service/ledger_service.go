package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"qr-wallet/config"
	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	userRepo   ports.UserRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	crypto     ports.CryptoService
	codec      *PaymentCodec
	nonces     ports.NonceStore
	audit      ports.AuditService
	cfg        config.PaymentConfig
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	userRepo ports.UserRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	crypto ports.CryptoService,
	nonces ports.NonceStore,
	audit ports.AuditService,
	cfg config.PaymentConfig,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		userRepo:   userRepo,
		txRepo:     txRepo,
		transactor: transactor,
		crypto:     crypto,
		codec:      NewPaymentCodec(crypto),
		nonces:     nonces,
		audit:      audit,
		cfg:        cfg,
		log:        log,
	}
}

// ApplyIncomingPayment verifies a scanned payment and moves the funds between
// whichever of the two wallets live in this store. Balance updates and ledger
// entries commit together or not at all.
func (s *LedgerServiceImpl) ApplyIncomingPayment(ctx context.Context, qr string, activeWalletID string) (*domain.Transaction, error) {
	p, err := s.codec.Decode(qr)
	if err != nil {
		return nil, err
	}

	publicKey, err := s.resolveSenderKey(ctx, p)
	if err != nil {
		return nil, err
	}

	ok, err := s.crypto.Verify(SignableMessage(p), p.Signature, publicKey)
	if err != nil {
		s.log.Warn().Err(err).Str("from", p.FromWalletID).Msg("payment rejected: malformed signature material")
		return nil, err
	}
	if !ok {
		s.log.Warn().Str("from", p.FromWalletID).Str("to", p.ToWalletID).Msg("payment rejected: invalid signature")
		return nil, apperror.ErrInvalidSignature()
	}

	if activeWalletID != p.FromWalletID && activeWalletID != p.ToWalletID {
		return nil, apperror.Validation("Payment does not involve the active wallet")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock in wallet ID order so concurrent opposite payments cannot deadlock.
	locked := make(map[string]*domain.Identity, 2)
	ids := []string{p.FromWalletID, p.ToWalletID}
	sort.Strings(ids)
	for _, id := range ids {
		w, err := s.userRepo.GetByWalletIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, apperror.ErrStorage(fmt.Errorf("lock wallet %s: %w", id, err))
		}
		if w != nil {
			locked[id] = w
		}
	}

	if locked[activeWalletID] == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	sender := locked[p.FromWalletID]
	receiver := locked[p.ToWalletID]

	if sender != nil && !sender.CanAfford(p.Amount) {
		return nil, apperror.ErrInsufficientBalance()
	}

	fresh, err := s.nonces.CheckAndSet(ctx, p.FromWalletID, p.Nonce, s.cfg.NonceTTL)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("claim nonce: %w", err))
	}
	if !fresh {
		s.log.Warn().Str("from", p.FromWalletID).Msg("payment rejected: nonce replayed")
		return nil, apperror.ErrNonceReplayed()
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := s.nonces.Release(context.WithoutCancel(ctx), p.FromWalletID, p.Nonce); err != nil {
			s.log.Warn().Err(err).Str("from", p.FromWalletID).Msg("failed to release nonce after rollback")
		}
	}()

	now := time.Now().UTC()
	var result *domain.Transaction

	if sender != nil {
		if err := s.userRepo.UpdateBalance(ctx, dbTx, sender.WalletID, sender.Balance.Sub(p.Amount)); err != nil {
			return nil, apperror.ErrStorage(fmt.Errorf("debit sender: %w", err))
		}
		rec, err := s.record(ctx, dbTx, sender.WalletID, domain.DirectionSent, p, now)
		if err != nil {
			return nil, err
		}
		if sender.WalletID == activeWalletID {
			result = rec
		}
	}

	if receiver != nil {
		if err := s.userRepo.UpdateBalance(ctx, dbTx, receiver.WalletID, receiver.Balance.Add(p.Amount)); err != nil {
			return nil, apperror.ErrStorage(fmt.Errorf("credit receiver: %w", err))
		}
		rec, err := s.record(ctx, dbTx, receiver.WalletID, domain.DirectionReceived, p, now)
		if err != nil {
			return nil, err
		}
		if receiver.WalletID == activeWalletID {
			result = rec
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("commit tx: %w", err))
	}
	committed = true

	s.audit.Log(ctx, domain.NewAuditLog(activeWalletID, domain.AuditActionPayment, "transaction", result.ID.String()))
	s.log.Info().
		Str("tx_id", result.ID.String()).
		Str("from", p.FromWalletID).
		Str("to", p.ToWalletID).
		Str("amount", p.Amount.StringFixed(amountPlaces)).
		Str("direction", string(result.Direction)).
		Msg("payment applied")

	return result, nil
}

// resolveSenderKey returns the public key the payload must verify against.
func (s *LedgerServiceImpl) resolveSenderKey(ctx context.Context, p *domain.PaymentPayload) (string, error) {
	sender, err := s.userRepo.GetByWalletID(ctx, p.FromWalletID)
	if err != nil {
		return "", apperror.ErrStorage(fmt.Errorf("load sender: %w", err))
	}

	if sender != nil {
		if p.PublicKey != sender.PublicKey {
			s.log.Warn().Str("from", p.FromWalletID).Msg("payment rejected: embedded key does not match sender")
			return "", apperror.ErrInvalidSignature()
		}
		return sender.PublicKey, nil
	}

	if s.cfg.TrustEmbeddedKey {
		return p.PublicKey, nil
	}
	return "", apperror.ErrUnknownSender()
}

// record appends the completed ledger entry for walletID. The entry ID is
// derived from the nonce, so a replay that slips past the nonce store still
// collides on the primary key.
func (s *LedgerServiceImpl) record(ctx context.Context, dbTx pgx.Tx, walletID string, dir domain.Direction, p *domain.PaymentPayload, now time.Time) (*domain.Transaction, error) {
	rec := &domain.Transaction{
		ID:           s.crypto.RecordID(walletID, p.Nonce),
		WalletID:     walletID,
		FromWalletID: p.FromWalletID,
		ToWalletID:   p.ToWalletID,
		Amount:       p.Amount,
		Description:  p.Description,
		Nonce:        p.Nonce,
		Signature:    p.Signature,
		Timestamp:    p.Timestamp,
		Status:       domain.TransactionStatusCompleted,
		Direction:    dir,
		SyncStatus:   domain.SyncStatusLocal,
		CreatedAt:    now,
	}

	created, err := s.txRepo.Create(ctx, dbTx, rec)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create transaction: %w", err))
	}
	if !created {
		return nil, apperror.ErrNonceReplayed()
	}
	return rec, nil
}

// Credit adds amount to walletID inside dbTx and returns the new balance.
func (s *LedgerServiceImpl) Credit(ctx context.Context, dbTx pgx.Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, apperror.ErrInvalidAmount()
	}

	w, err := s.userRepo.GetByWalletIDForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return decimal.Zero, apperror.ErrStorage(fmt.Errorf("lock wallet: %w", err))
	}
	if w == nil {
		return decimal.Zero, apperror.ErrWalletNotFound()
	}

	balance := w.Balance.Add(amount)
	if err := s.userRepo.UpdateBalance(ctx, dbTx, walletID, balance); err != nil {
		return decimal.Zero, apperror.ErrStorage(fmt.Errorf("update balance: %w", err))
	}

	s.log.Info().
		Str("wallet_id", walletID).
		Str("amount", amount.StringFixed(amountPlaces)).
		Msg("wallet credited")

	return balance, nil
}

// GetHistory returns the wallet's ledger entries, newest first.
func (s *LedgerServiceImpl) GetHistory(ctx context.Context, walletID string, limit int) ([]domain.Transaction, error) {
	txs, err := s.txRepo.ListByWallet(ctx, walletID, clampLimit(limit))
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list transactions: %w", err))
	}
	return txs, nil
}

// clampLimit maps a requested page size into [1, 100], defaulting to 20.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}
