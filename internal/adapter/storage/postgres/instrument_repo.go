package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qr-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const (
	agentColumns   = `id, name, location, phone, public_key, is_active, max_amount, daily_limit, commission, created_at`
	voucherColumns = `id, code, amount, currency, is_used, used_by, used_at, expires_at, signature, series, created_at`
	accountColumns = `id, wallet_id, bank_name, account_number, account_holder, is_verified,
	daily_limit, monthly_limit, last_used, created_at`
)

// InstrumentRepo implements ports.InstrumentRepository over the agents,
// vouchers and bank_accounts tables.
type InstrumentRepo struct {
	pool Pool
}

// NewInstrumentRepo creates a new InstrumentRepo.
func NewInstrumentRepo(pool Pool) *InstrumentRepo {
	return &InstrumentRepo{pool: pool}
}

// ListAgents returns every registered agent ordered by name.
func (r *InstrumentRepo) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return collect(rows, "agent", scanAgent)
}

// GetAgent fetches an agent by ID. Returns nil if absent.
func (r *InstrumentRepo) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	a, err := scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	return orNil(a, err, "agent")
}

// ListVouchers returns every voucher ordered by expiry.
func (r *InstrumentRepo) ListVouchers(ctx context.Context) ([]domain.Voucher, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers ORDER BY expires_at`)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	return collect(rows, "voucher", scanVoucher)
}

// GetVoucherByCode fetches a voucher by its code. Returns nil if absent.
func (r *InstrumentRepo) GetVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	v, err := scanVoucher(r.pool.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code))
	return orNil(v, err, "voucher")
}

// MarkVoucherUsed claims an unused voucher within a database transaction.
// The is_used guard makes concurrent claims race on the row; only one wins.
func (r *InstrumentRepo) MarkVoucherUsed(ctx context.Context, tx pgx.Tx, voucherID, walletID string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE vouchers SET is_used = TRUE, used_by = $1, used_at = $2 WHERE id = $3 AND is_used = FALSE`,
		walletID, at, voucherID,
	)
	if err != nil {
		return false, fmt.Errorf("mark voucher used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListBankAccounts returns the bank accounts linked to walletID.
func (r *InstrumentRepo) ListBankAccounts(ctx context.Context, walletID string) ([]domain.BankAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM bank_accounts WHERE wallet_id = $1 ORDER BY bank_name`, walletID)
	if err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	return collect(rows, "bank account", scanAccount)
}

// GetBankAccount fetches a bank account by ID. Returns nil if absent.
func (r *InstrumentRepo) GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id = $1`, id))
	return orNil(a, err, "bank account")
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	a := &domain.Agent{}
	err := row.Scan(&a.ID, &a.Name, &a.Location, &a.Phone, &a.PublicKey, &a.IsActive,
		&a.MaxAmount, &a.DailyLimit, &a.Commission, &a.CreatedAt)
	return a, err
}

func scanVoucher(row pgx.Row) (*domain.Voucher, error) {
	v := &domain.Voucher{}
	err := row.Scan(&v.ID, &v.Code, &v.Amount, &v.Currency, &v.IsUsed, &v.UsedBy, &v.UsedAt,
		&v.ExpiresAt, &v.Signature, &v.Series, &v.CreatedAt)
	return v, err
}

func scanAccount(row pgx.Row) (*domain.BankAccount, error) {
	a := &domain.BankAccount{}
	err := row.Scan(&a.ID, &a.WalletID, &a.BankName, &a.AccountNumber, &a.AccountHolder, &a.IsVerified,
		&a.DailyLimit, &a.MonthlyLimit, &a.LastUsed, &a.CreatedAt)
	return a, err
}

// orNil maps pgx.ErrNoRows to (nil, nil).
func orNil[T any](v *T, err error, what string) (*T, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	return v, nil
}

func collect[T any](rows pgx.Rows, what string, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", what, err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", what, err)
	}
	return out, nil
}
