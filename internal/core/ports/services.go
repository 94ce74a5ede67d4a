package ports

import (
	"context"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CryptoService provides key management, signing and identifier generation.
type CryptoService interface {
	GenerateKeyPair() (publicKey string, privateKey string, err error)
	Sign(message []byte, privateKey string) (string, error)
	// Verify returns an error only for malformed key or signature material.
	Verify(message []byte, signature string, publicKey string) (bool, error)
	GenerateNonce() (string, error)
	GenerateWalletID() (string, error)
	// RecordID derives the ledger entry ID a payment nonce maps to in a wallet.
	RecordID(walletID string, nonce string) uuid.UUID
}

// PINHasher handles PIN hashing (Argon2id) salted by wallet ID.
type PINHasher interface {
	Hash(pin string, walletID string) (string, error)
	Verify(pin string, walletID string, encodedHash string) (bool, error)
}

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(walletID string) (*TokenClaims, string, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	WalletID  string
	TokenID   string // jti, used for revocation
	ExpiresAt time.Time
}

// TokenDenylist tracks revoked session tokens until they would have expired anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
	// Release drops a claim whose payment never committed.
	Release(ctx context.Context, scope string, nonce string) error
}

// VoucherLock serializes redemption attempts per voucher code.
type VoucherLock interface {
	// Acquire waits for the lock on code. ok is false if it could not be taken in time.
	Acquire(ctx context.Context, code string) (token string, ok bool, err error)
	Release(ctx context.Context, code string, token string) error
}

// AgentNetwork confirms agent cash-ins with the field agent.
type AgentNetwork interface {
	Confirm(ctx context.Context, agent *domain.Agent, cashIn *domain.CashInTransaction) error
}

// BankNetwork settles bank transfer cash-ins.
type BankNetwork interface {
	Settle(ctx context.Context, account *domain.BankAccount, cashIn *domain.CashInTransaction) error
}

// AuditService records security relevant actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// WalletService manages wallet identities and the active session.
type WalletService interface {
	CreateWallet(ctx context.Context, req CreateWalletRequest) (*domain.Identity, error)
	Login(ctx context.Context, walletID, pin string) (*domain.Identity, error)
	// RestoreSession loads an already authenticated wallet into the session carried by ctx.
	RestoreSession(ctx context.Context, walletID string) (*domain.Identity, error)
	Logout(ctx context.Context)
	ActiveSession(ctx context.Context) (*domain.Identity, bool)
	GetWalletBalance(ctx context.Context) (decimal.Decimal, error)
	MarkSynced(ctx context.Context, at time.Time) error
}

// CreateWalletRequest holds input for wallet creation.
type CreateWalletRequest struct {
	DisplayName string `validate:"required,max=100"`
	PhoneNumber string `validate:"required,phone_digits"`
	PIN         string `validate:"required,number,pin_length"`
}

// LedgerService applies verified payments and credits to wallet balances.
type LedgerService interface {
	ApplyIncomingPayment(ctx context.Context, qr string, activeWalletID string) (*domain.Transaction, error)
	// Credit adds amount to the wallet inside the caller's transaction and returns the new balance.
	Credit(ctx context.Context, tx pgx.Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error)
	GetHistory(ctx context.Context, walletID string, limit int) ([]domain.Transaction, error)
}

// PaymentService is the session-facing payment API.
type PaymentService interface {
	GeneratePaymentQR(ctx context.Context, req PaymentQRRequest) (*PaymentQR, error)
	ProcessScannedPayment(ctx context.Context, qr string) (*domain.Transaction, error)
	GetTransactionHistory(ctx context.Context, limit int) ([]domain.Transaction, error)
}

// PaymentQRRequest holds input for building a payment QR.
type PaymentQRRequest struct {
	ToWalletID  string
	Amount      decimal.Decimal
	Description string
	PNGSize     int // 0 skips image rendering
}

// PaymentQR is a signed payload and its QR renditions.
type PaymentQR struct {
	Payload *domain.PaymentPayload
	QR      string
	PNG     []byte
}

// CashInService creates and advances cash-in transactions.
type CashInService interface {
	CreateCashInTransaction(ctx context.Context, req CashInRequest) (*domain.CashInTransaction, error)
	ProcessCashInTransaction(ctx context.Context, id string) (*CashInResult, error)
	CompleteCashInTransaction(ctx context.Context, id string) (*CashInResult, error)
	ValidateVoucher(ctx context.Context, code string) (*VoucherValidation, error)
	GetAvailableAgents(ctx context.Context) ([]domain.Agent, error)
	GetAvailableVouchers(ctx context.Context) ([]domain.Voucher, error)
	GetUserBankAccounts(ctx context.Context, walletID string) ([]domain.BankAccount, error)
	GetCashInHistory(ctx context.Context, walletID string, limit int) ([]domain.CashInTransaction, error)
}

// CashInRequest holds input for a new cash-in.
type CashInRequest struct {
	WalletID      string
	Amount        decimal.Decimal
	Method        domain.CashInMethod
	AgentID       *string
	VoucherCode   *string
	BankAccountID *string
}

// CashInResult is the outcome of advancing a cash-in. Expected failures
// (not found, already processed, expired, channel rejection) are carried in Err.
type CashInResult struct {
	Success bool
	Status  domain.CashInStatus
	CashIn  *domain.CashInTransaction
	Err     *apperror.AppError
}

// VoucherValidation is the outcome of checking a voucher code.
type VoucherValidation struct {
	IsValid bool
	Voucher *domain.Voucher
	Error   string // one of the domain.VoucherReason* values
}
