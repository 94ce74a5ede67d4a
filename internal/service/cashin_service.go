package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"qr-wallet/config"
	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Failure reasons recorded on cash-ins that did not go through.
const (
	reasonExpired           = "expired"
	reasonSettlementTimeout = "settlement timed out"
	reasonAgentNotFound     = "agent not found"
	reasonAccountNotFound   = "bank account not found"
)

// CashInDeps groups the collaborators of CashInServiceImpl.
type CashInDeps struct {
	CashIns     ports.CashInRepository
	Instruments ports.InstrumentRepository
	Transactor  ports.DBTransactor
	Ledger      ports.LedgerService
	Crypto      ports.CryptoService
	Encryption  ports.EncryptionService
	Agents      ports.AgentNetwork
	Banks       ports.BankNetwork
	Locks       ports.VoucherLock
	Audit       ports.AuditService
	Fees        *FeeSchedule
}

// CashInServiceImpl implements ports.CashInService.
type CashInServiceImpl struct {
	cashIns     ports.CashInRepository
	instruments ports.InstrumentRepository
	transactor  ports.DBTransactor
	ledger      ports.LedgerService
	crypto      ports.CryptoService
	encSvc      ports.EncryptionService
	agents      ports.AgentNetwork
	banks       ports.BankNetwork
	locks       ports.VoucherLock
	audit       ports.AuditService
	fees        *FeeSchedule
	cfg         config.CashInConfig
	log         zerolog.Logger
	now         func() time.Time
}

// NewCashInService creates a new CashInServiceImpl.
func NewCashInService(deps CashInDeps, cfg config.CashInConfig, log zerolog.Logger) *CashInServiceImpl {
	return &CashInServiceImpl{
		cashIns:     deps.CashIns,
		instruments: deps.Instruments,
		transactor:  deps.Transactor,
		ledger:      deps.Ledger,
		crypto:      deps.Crypto,
		encSvc:      deps.Encryption,
		agents:      deps.Agents,
		banks:       deps.Banks,
		locks:       deps.Locks,
		audit:       deps.Audit,
		fees:        deps.Fees,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// CreateCashInTransaction records a pending cash-in for the active wallet.
func (s *CashInServiceImpl) CreateCashInTransaction(ctx context.Context, req ports.CashInRequest) (*domain.CashInTransaction, error) {
	active, err := activeIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if active.WalletID != req.WalletID {
		return nil, apperror.ErrNotAuthenticated()
	}

	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Amount.Equal(req.Amount.Round(amountPlaces)) {
		return nil, apperror.Validation("Amount supports at most 2 decimal places")
	}
	if !req.Method.Valid() {
		return nil, apperror.ErrInvalidMethod(string(req.Method))
	}

	now := s.now().UTC()
	cashIn := &domain.CashInTransaction{
		ID:            uuid.New().String(),
		WalletID:      req.WalletID,
		Amount:        req.Amount,
		Method:        req.Method,
		Status:        domain.CashInStatusPending,
		Timestamp:     now,
		ExpiresAt:     now.Add(s.cfg.Expiry),
		AgentID:       req.AgentID,
		VoucherCode:   req.VoucherCode,
		BankAccountID: req.BankAccountID,
		SyncStatus:    domain.SyncStatusLocal,
		UpdatedAt:     now,
	}
	if !cashIn.InstrumentMatchesMethod() {
		return nil, apperror.ErrInstrumentMismatch()
	}

	var agent *domain.Agent
	if cashIn.Method == domain.CashInMethodAgent {
		agent, err = s.instruments.GetAgent(ctx, *cashIn.AgentID)
		if err != nil {
			return nil, apperror.ErrStorage(fmt.Errorf("get agent: %w", err))
		}
	}

	cashIn.Fees, err = s.fees.Fees(cashIn.Method, cashIn.Amount, agent)
	if err != nil {
		return nil, err
	}
	if !cashIn.NetAmount().IsPositive() {
		return nil, apperror.Validation("Amount does not cover the cash-in fees")
	}

	privateKey, err := s.encSvc.Decrypt(active.PrivateKeyEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt private key: %w", err))
	}
	cashIn.Signature, err = s.crypto.Sign(CashInMessage(cashIn), privateKey)
	if err != nil {
		return nil, err
	}

	if err := s.cashIns.Create(ctx, cashIn); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("create cash-in: %w", err))
	}

	s.audit.Log(ctx, domain.NewAuditLog(cashIn.WalletID, domain.AuditActionCashInCreated, "cash_in", cashIn.ID))
	s.log.Info().
		Str("cashin_id", cashIn.ID).
		Str("wallet_id", cashIn.WalletID).
		Str("method", string(cashIn.Method)).
		Str("amount", cashIn.Amount.StringFixed(amountPlaces)).
		Str("fees", cashIn.Fees.StringFixed(amountPlaces)).
		Msg("cash-in created")

	return cashIn, nil
}

// CashInMessage returns the canonical bytes the wallet signs when it creates a cash-in.
func CashInMessage(c *domain.CashInTransaction) []byte {
	var instrument string
	switch {
	case c.AgentID != nil:
		instrument = *c.AgentID
	case c.VoucherCode != nil:
		instrument = *c.VoucherCode
	case c.BankAccountID != nil:
		instrument = *c.BankAccountID
	}
	return lengthPrefixed(
		c.ID,
		c.WalletID,
		c.Amount.StringFixed(amountPlaces),
		string(c.Method),
		instrument,
		strconv.FormatInt(c.Timestamp.UnixMilli(), 10),
	)
}

// ProcessCashInTransaction advances a pending cash-in through its settlement
// channel. Not found, already processed, expired and channel rejections come
// back in the result; the error return is for infrastructure failures.
func (s *CashInServiceImpl) ProcessCashInTransaction(ctx context.Context, id string) (*ports.CashInResult, error) {
	cashIn, err := s.loadOwned(ctx, id)
	if err != nil {
		return nil, err
	}
	if cashIn == nil {
		return rejected(nil, apperror.ErrCashInNotFound()), nil
	}
	if cashIn.Status != domain.CashInStatusPending {
		return rejected(cashIn, apperror.ErrAlreadyProcessed()), nil
	}
	if cashIn.IsExpired(s.now()) {
		return s.fail(ctx, cashIn, reasonExpired, apperror.ErrExpired())
	}

	ch, err := s.channelFor(cashIn.Method)
	if err != nil {
		return nil, err
	}
	return ch.process(ctx, cashIn)
}

// CompleteCashInTransaction credits a cash-in the agent has already confirmed.
// It is the resume path when settlement did not finish during processing.
func (s *CashInServiceImpl) CompleteCashInTransaction(ctx context.Context, id string) (*ports.CashInResult, error) {
	cashIn, err := s.loadOwned(ctx, id)
	if err != nil {
		return nil, err
	}
	if cashIn == nil {
		return rejected(nil, apperror.ErrCashInNotFound()), nil
	}

	switch cashIn.Status {
	case domain.CashInStatusValidated:
		return s.settle(ctx, cashIn, nil)
	case domain.CashInStatusPending:
		return rejected(cashIn, apperror.Validation("Cash-in has not been confirmed yet")), nil
	default:
		return rejected(cashIn, apperror.ErrAlreadyProcessed()), nil
	}
}

// ValidateVoucher reports whether code can be redeemed right now.
func (s *CashInServiceImpl) ValidateVoucher(ctx context.Context, code string) (*ports.VoucherValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.Validation("Voucher code is required")
	}

	v, reason, err := s.checkVoucher(ctx, code)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return &ports.VoucherValidation{IsValid: false, Voucher: v, Error: reason}, nil
	}
	return &ports.VoucherValidation{IsValid: true, Voucher: v}, nil
}

// checkVoucher loads the voucher by code and returns why it cannot be redeemed, if it cannot.
func (s *CashInServiceImpl) checkVoucher(ctx context.Context, code string) (*domain.Voucher, string, error) {
	v, err := s.instruments.GetVoucherByCode(ctx, code)
	if err != nil {
		return nil, "", apperror.ErrStorage(fmt.Errorf("get voucher: %w", err))
	}
	if v == nil {
		return nil, domain.VoucherReasonNotFound, nil
	}
	return v, v.RejectReason(s.now()), nil
}

// GetAvailableAgents returns the active agents.
func (s *CashInServiceImpl) GetAvailableAgents(ctx context.Context) ([]domain.Agent, error) {
	agents, err := s.instruments.ListAgents(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list agents: %w", err))
	}

	active := make([]domain.Agent, 0, len(agents))
	for _, a := range agents {
		if a.IsActive {
			active = append(active, a)
		}
	}
	return active, nil
}

// GetAvailableVouchers returns vouchers that are unused and not yet expired.
func (s *CashInServiceImpl) GetAvailableVouchers(ctx context.Context) ([]domain.Voucher, error) {
	vouchers, err := s.instruments.ListVouchers(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list vouchers: %w", err))
	}

	now := s.now()
	available := make([]domain.Voucher, 0, len(vouchers))
	for _, v := range vouchers {
		if v.RejectReason(now) == "" {
			available = append(available, v)
		}
	}
	return available, nil
}

// GetUserBankAccounts returns the bank accounts linked to walletID.
func (s *CashInServiceImpl) GetUserBankAccounts(ctx context.Context, walletID string) ([]domain.BankAccount, error) {
	if err := requireActive(ctx, walletID); err != nil {
		return nil, err
	}

	accounts, err := s.instruments.ListBankAccounts(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list bank accounts: %w", err))
	}

	owned := make([]domain.BankAccount, 0, len(accounts))
	for _, a := range accounts {
		if a.WalletID == walletID {
			owned = append(owned, a)
		}
	}
	return owned, nil
}

// GetCashInHistory returns the wallet's cash-ins, newest first.
func (s *CashInServiceImpl) GetCashInHistory(ctx context.Context, walletID string, limit int) ([]domain.CashInTransaction, error) {
	if err := requireActive(ctx, walletID); err != nil {
		return nil, err
	}

	cashIns, err := s.cashIns.ListByWallet(ctx, walletID, clampLimit(limit))
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list cash-ins: %w", err))
	}
	return cashIns, nil
}

// loadOwned returns the cash-in only if it belongs to the active wallet.
func (s *CashInServiceImpl) loadOwned(ctx context.Context, id string) (*domain.CashInTransaction, error) {
	active, err := activeIdentity(ctx)
	if err != nil {
		return nil, err
	}

	cashIn, err := s.cashIns.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get cash-in: %w", err))
	}
	if cashIn == nil || cashIn.WalletID != active.WalletID {
		return nil, nil
	}
	return cashIn, nil
}

func requireActive(ctx context.Context, walletID string) error {
	active, err := activeIdentity(ctx)
	if err != nil {
		return err
	}
	if active.WalletID != walletID {
		return apperror.ErrNotAuthenticated()
	}
	return nil
}

// transition moves cashIn to status to with a compare-and-swap on its current
// status. It returns false if another caller moved it first.
func (s *CashInServiceImpl) transition(ctx context.Context, dbTx pgx.Tx, cashIn *domain.CashInTransaction, to domain.CashInStatus, reason *string) (bool, error) {
	if !domain.CanTransition(cashIn.Method, cashIn.Status, to) {
		return false, apperror.InternalError(fmt.Errorf("illegal cash-in transition %s -> %s for %s", cashIn.Status, to, cashIn.Method))
	}

	ok, err := s.cashIns.TransitionStatus(ctx, dbTx, cashIn.ID, cashIn.Status, to, reason)
	if err != nil {
		return false, apperror.ErrStorage(fmt.Errorf("transition cash-in: %w", err))
	}
	if ok {
		cashIn.Status = to
		cashIn.FailureReason = reason
		cashIn.UpdatedAt = s.now().UTC()
	}
	return ok, nil
}

// fail marks the cash-in failed and reports cause to the caller. It never credits.
func (s *CashInServiceImpl) fail(ctx context.Context, cashIn *domain.CashInTransaction, reason string, cause *apperror.AppError) (*ports.CashInResult, error) {
	ok, err := s.transition(ctx, nil, cashIn, domain.CashInStatusFailed, &reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return rejected(cashIn, apperror.ErrAlreadyProcessed()), nil
	}

	s.audit.Log(ctx, domain.NewAuditLog(cashIn.WalletID, domain.AuditActionCashInFailed, "cash_in", cashIn.ID))
	s.log.Warn().
		Str("cashin_id", cashIn.ID).
		Str("wallet_id", cashIn.WalletID).
		Str("method", string(cashIn.Method)).
		Str("reason", reason).
		Msg("cash-in failed")

	return rejected(cashIn, cause), nil
}

// claimFunc runs inside the settlement transaction before the credit. A
// non-nil rejection aborts the transaction and fails the cash-in.
type claimFunc func(ctx context.Context, dbTx pgx.Tx) (rejection *apperror.AppError, reason string, err error)

// settle completes the cash-in in one DB transaction: the optional claim,
// the status compare-and-swap to completed and the ledger credit.
func (s *CashInServiceImpl) settle(ctx context.Context, cashIn *domain.CashInTransaction, claim claimFunc) (*ports.CashInResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if claim != nil {
		rejection, reason, err := claim(ctx, dbTx)
		if err != nil {
			return nil, err
		}
		if rejection != nil {
			dbTx.Rollback(ctx) //nolint:errcheck
			return s.fail(ctx, cashIn, reason, rejection)
		}
	}

	from := cashIn.Status
	ok, err := s.transition(ctx, dbTx, cashIn, domain.CashInStatusCompleted, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return rejected(cashIn, apperror.ErrAlreadyProcessed()), nil
	}

	balance, err := s.ledger.Credit(ctx, dbTx, cashIn.WalletID, cashIn.NetAmount())
	if err != nil {
		cashIn.Status = from
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		cashIn.Status = from
		return nil, apperror.ErrStorage(fmt.Errorf("commit tx: %w", err))
	}

	s.audit.Log(ctx, domain.NewAuditLog(cashIn.WalletID, domain.AuditActionCashInSettled, "cash_in", cashIn.ID))
	s.log.Info().
		Str("cashin_id", cashIn.ID).
		Str("wallet_id", cashIn.WalletID).
		Str("method", string(cashIn.Method)).
		Str("credited", cashIn.NetAmount().StringFixed(amountPlaces)).
		Str("balance", balance.StringFixed(amountPlaces)).
		Msg("cash-in completed")

	return &ports.CashInResult{Success: true, Status: cashIn.Status, CashIn: cashIn}, nil
}

func rejected(cashIn *domain.CashInTransaction, cause *apperror.AppError) *ports.CashInResult {
	res := &ports.CashInResult{Success: false, CashIn: cashIn, Err: cause}
	if cashIn != nil {
		res.Status = cashIn.Status
	}
	return res
}
