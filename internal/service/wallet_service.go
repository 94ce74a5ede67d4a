package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qr-wallet/config"
	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	userRepo  ports.UserRepository
	crypto    ports.CryptoService
	pins      ports.PINHasher
	encSvc    ports.EncryptionService
	audit     ports.AuditService
	validator *ValidationHelper
	cfg       config.WalletConfig
	log       zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	userRepo ports.UserRepository,
	crypto ports.CryptoService,
	pins ports.PINHasher,
	encSvc ports.EncryptionService,
	audit ports.AuditService,
	cfg config.WalletConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		userRepo:  userRepo,
		crypto:    crypto,
		pins:      pins,
		encSvc:    encSvc,
		audit:     audit,
		validator: NewValidationHelper(cfg),
		cfg:       cfg,
		log:       log,
	}
}

// CreateWallet registers a new wallet and makes it the active session.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, req ports.CreateWalletRequest) (*domain.Identity, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.PhoneNumber = normalizePhone(req.PhoneNumber)
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	taken, err := s.userRepo.PhoneExists(ctx, req.PhoneNumber)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("check phone: %w", err))
	}
	if taken {
		return nil, apperror.ErrDuplicatePhone()
	}

	publicKey, privateKey, err := s.crypto.GenerateKeyPair()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate key pair: %w", err))
	}

	privateKeyEnc, err := s.encSvc.Encrypt(privateKey)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt private key: %w", err))
	}

	identity := &domain.Identity{
		ID:            uuid.NewString(),
		DisplayName:   req.DisplayName,
		PhoneNumber:   req.PhoneNumber,
		PublicKey:     publicKey,
		PrivateKeyEnc: privateKeyEnc,
		Balance:       decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.insertWithFreshID(ctx, identity, req.PIN); err != nil {
		return nil, err
	}
	walletID := identity.WalletID

	if sess, ok := SessionFrom(ctx); ok {
		sess.Set(identity)
	}

	s.audit.Log(ctx, domain.NewAuditLog(walletID, domain.AuditActionCreateWallet, "wallet", identity.ID))
	s.log.Info().Str("wallet_id", walletID).Msg("wallet created")

	return identity, nil
}

// insertWithFreshID assigns identity a free wallet ID and stores it. A wallet
// ID taken between the existence check and the insert costs one attempt.
func (s *WalletServiceImpl) insertWithFreshID(ctx context.Context, identity *domain.Identity, pin string) error {
	for attempt := 1; attempt <= s.cfg.IDMaxAttempts; attempt++ {
		walletID, err := s.allocateWalletID(ctx)
		if err != nil {
			return err
		}

		pinHash, err := s.pins.Hash(pin, walletID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("hash pin: %w", err))
		}
		identity.WalletID = walletID
		identity.PINHash = pinHash

		err = s.userRepo.Create(ctx, identity)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ports.ErrDuplicateWalletID):
			s.log.Debug().Int("attempt", attempt).Msg("wallet id taken on insert, retrying")
		case errors.Is(err, ports.ErrDuplicateKey):
			return apperror.ErrDuplicatePhone()
		default:
			return apperror.ErrStorage(fmt.Errorf("create wallet: %w", err))
		}
	}
	return apperror.ErrIDGenerationExhausted()
}

// allocateWalletID draws random IDs until one is free, at most IDMaxAttempts times.
func (s *WalletServiceImpl) allocateWalletID(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= s.cfg.IDMaxAttempts; attempt++ {
		id, err := s.crypto.GenerateWalletID()
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("generate wallet id: %w", err))
		}

		exists, err := s.userRepo.WalletIDExists(ctx, id)
		if err != nil {
			return "", apperror.ErrStorage(fmt.Errorf("check wallet id: %w", err))
		}
		if !exists {
			return id, nil
		}

		s.log.Debug().Int("attempt", attempt).Msg("wallet id collision, retrying")
	}
	return "", apperror.ErrIDGenerationExhausted()
}

// Login authenticates walletID with pin and makes it the active session.
func (s *WalletServiceImpl) Login(ctx context.Context, walletID, pin string) (*domain.Identity, error) {
	identity, err := s.userRepo.GetByWalletID(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("load wallet: %w", err))
	}
	if identity == nil {
		// Hash anyway so a missing wallet costs as much as a wrong PIN.
		_, _ = s.pins.Hash(pin, walletID)
		return nil, apperror.ErrWalletNotFound()
	}

	match, err := s.pins.Verify(pin, walletID, identity.PINHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify pin: %w", err))
	}
	if !match {
		s.audit.Log(ctx, domain.NewAuditLog(walletID, domain.AuditActionLoginFailed, "session", ""))
		s.log.Warn().Str("wallet_id", walletID).Msg("login rejected: invalid pin")
		return nil, apperror.ErrInvalidPIN()
	}

	if sess, ok := SessionFrom(ctx); ok {
		sess.Set(identity)
	}

	s.audit.Log(ctx, domain.NewAuditLog(walletID, domain.AuditActionLogin, "session", ""))
	s.log.Info().Str("wallet_id", walletID).Msg("wallet logged in")

	return identity, nil
}

// RestoreSession loads walletID into the context session without a PIN check.
// Callers must already have authenticated the wallet (e.g. by session token).
func (s *WalletServiceImpl) RestoreSession(ctx context.Context, walletID string) (*domain.Identity, error) {
	sess, ok := SessionFrom(ctx)
	if !ok {
		return nil, apperror.ErrNotAuthenticated()
	}

	identity, err := s.userRepo.GetByWalletID(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("load wallet: %w", err))
	}
	if identity == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	sess.Set(identity)
	return identity, nil
}

// Logout clears the active session.
func (s *WalletServiceImpl) Logout(ctx context.Context) {
	if sess, ok := SessionFrom(ctx); ok {
		sess.Clear()
	}
}

// ActiveSession returns the wallet acting in ctx.
func (s *WalletServiceImpl) ActiveSession(ctx context.Context) (*domain.Identity, bool) {
	identity, err := activeIdentity(ctx)
	return identity, err == nil
}

// GetWalletBalance reloads the active wallet and returns its balance.
func (s *WalletServiceImpl) GetWalletBalance(ctx context.Context) (decimal.Decimal, error) {
	active, err := activeIdentity(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	identity, err := s.userRepo.GetByWalletID(ctx, active.WalletID)
	if err != nil {
		return decimal.Zero, apperror.ErrStorage(fmt.Errorf("load wallet: %w", err))
	}
	if identity == nil {
		return decimal.Zero, apperror.ErrWalletNotFound()
	}

	if sess, ok := SessionFrom(ctx); ok {
		sess.Set(identity)
	}
	return identity.Balance, nil
}

// MarkSynced records the last time the active wallet was synchronized.
func (s *WalletServiceImpl) MarkSynced(ctx context.Context, at time.Time) error {
	active, err := activeIdentity(ctx)
	if err != nil {
		return err
	}

	at = at.UTC()
	if err := s.userRepo.TouchSync(ctx, active.WalletID, at); err != nil {
		return apperror.ErrStorage(fmt.Errorf("touch sync: %w", err))
	}

	active.LastSyncAt = &at
	if sess, ok := SessionFrom(ctx); ok {
		sess.Set(active)
	}
	return nil
}
