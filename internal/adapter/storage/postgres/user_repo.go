package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Default names Postgres gives the UNIQUE columns in 001_init.sql.
const walletIDConstraint = "users_wallet_id_key"

const userColumns = `id, display_name, phone_number, wallet_id, pin_hash, public_key, private_key_enc,
	balance, created_at, last_sync_at`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new wallet identity.
func (r *UserRepo) Create(ctx context.Context, u *domain.Identity) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.DisplayName, u.PhoneNumber, u.WalletID, u.PINHash,
		u.PublicKey, u.PrivateKeyEnc, u.Balance, u.CreatedAt, u.LastSyncAt,
	)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok {
			if constraint == walletIDConstraint {
				return ports.ErrDuplicateWalletID
			}
			return ports.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByWalletID fetches a wallet identity. Returns nil if absent.
func (r *UserRepo) GetByWalletID(ctx context.Context, walletID string) (*domain.Identity, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, walletID))
}

// GetByWalletIDForUpdate fetches a wallet identity with a row lock (SELECT ... FOR UPDATE).
func (r *UserRepo) GetByWalletIDForUpdate(ctx context.Context, tx pgx.Tx, walletID string) (*domain.Identity, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_id = $1 FOR UPDATE`
	return scanUser(tx.QueryRow(ctx, query, walletID))
}

// PhoneExists reports whether a wallet is registered with phone.
func (r *UserRepo) PhoneExists(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE phone_number = $1)`, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check phone exists: %w", err)
	}
	return exists, nil
}

// WalletIDExists reports whether walletID is taken.
func (r *UserRepo) WalletIDExists(ctx context.Context, walletID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE wallet_id = $1)`, walletID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wallet id exists: %w", err)
	}
	return exists, nil
}

// UpdateBalance sets the wallet balance within a database transaction.
func (r *UserRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID string, balance decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `UPDATE users SET balance = $1 WHERE wallet_id = $2`, balance, walletID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// TouchSync records the last synchronization time of a wallet.
func (r *UserRepo) TouchSync(ctx context.Context, walletID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_sync_at = $1 WHERE wallet_id = $2`, at, walletID)
	if err != nil {
		return fmt.Errorf("touch sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.Identity, error) {
	u := &domain.Identity{}
	err := row.Scan(
		&u.ID, &u.DisplayName, &u.PhoneNumber, &u.WalletID, &u.PINHash,
		&u.PublicKey, &u.PrivateKeyEnc, &u.Balance, &u.CreatedAt, &u.LastSyncAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
