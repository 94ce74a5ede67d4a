package ports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qr-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrDuplicateKey is returned by repositories when a unique constraint rejects a write.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrDuplicateWalletID is the ErrDuplicateKey returned when the wallet ID,
// not the phone number, is already taken.
var ErrDuplicateWalletID = fmt.Errorf("%w: wallet_id", ErrDuplicateKey)

// UserRepository defines persistence operations for wallet identities.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type UserRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByWalletID(ctx context.Context, walletID string) (*domain.Identity, error)
	GetByWalletIDForUpdate(ctx context.Context, tx pgx.Tx, walletID string) (*domain.Identity, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	WalletIDExists(ctx context.Context, walletID string) (bool, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID string, balance decimal.Decimal) error
	TouchSync(ctx context.Context, walletID string, at time.Time) error
}

// TransactionRepository defines persistence operations for payment ledger entries.
type TransactionRepository interface {
	// Create inserts a ledger entry. Returns false if an entry with the same ID already exists.
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) (bool, error)
	ListByWallet(ctx context.Context, walletID string, limit int) ([]domain.Transaction, error)
}

// InstrumentRepository exposes cash-in reference data: agents, vouchers and bank accounts.
type InstrumentRepository interface {
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	ListVouchers(ctx context.Context) ([]domain.Voucher, error)
	GetVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error)
	// MarkVoucherUsed claims the voucher only if it is still unused.
	// Returns false when another redemption got there first.
	MarkVoucherUsed(ctx context.Context, tx pgx.Tx, voucherID, walletID string, at time.Time) (bool, error)
	ListBankAccounts(ctx context.Context, walletID string) ([]domain.BankAccount, error)
	GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error)
}

// CashInRepository defines persistence operations for cash-in transactions.
type CashInRepository interface {
	Create(ctx context.Context, cashIn *domain.CashInTransaction) error
	GetByID(ctx context.Context, id string) (*domain.CashInTransaction, error)
	// TransitionStatus is a compare-and-swap on status. tx may be nil to run outside a transaction.
	// Returns false if the row was not in the expected status.
	TransitionStatus(ctx context.Context, tx pgx.Tx, id string, from, to domain.CashInStatus, reason *string) (bool, error)
	ListByWallet(ctx context.Context, walletID string, limit int) ([]domain.CashInTransaction, error)
	// ExpirePending fails every pending cash-in whose expiry is before now and returns their IDs.
	ExpirePending(ctx context.Context, now time.Time) ([]string, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// HealthChecker checks a storage dependency for GET /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
