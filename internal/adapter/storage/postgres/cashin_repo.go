package postgres

import (
	"context"
	"fmt"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const cashInColumns = `id, wallet_id, amount, method, status, timestamp, expires_at, signature,
	agent_id, voucher_code, bank_account_id, fees, sync_status, failure_reason, updated_at`

// CashInRepo implements ports.CashInRepository.
type CashInRepo struct {
	pool Pool
}

// NewCashInRepo creates a new CashInRepo.
func NewCashInRepo(pool Pool) *CashInRepo {
	return &CashInRepo{pool: pool}
}

// Create inserts a new cash-in.
func (r *CashInRepo) Create(ctx context.Context, c *domain.CashInTransaction) error {
	query := `INSERT INTO cash_in_transactions (` + cashInColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.WalletID, c.Amount, c.Method, c.Status, c.Timestamp, c.ExpiresAt, c.Signature,
		c.AgentID, c.VoucherCode, c.BankAccountID, c.Fees, c.SyncStatus, c.FailureReason, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicateKey
		}
		return fmt.Errorf("insert cash-in: %w", err)
	}
	return nil
}

// GetByID fetches a cash-in by ID. Returns nil if absent.
func (r *CashInRepo) GetByID(ctx context.Context, id string) (*domain.CashInTransaction, error) {
	c, err := scanCashIn(r.pool.QueryRow(ctx, `SELECT `+cashInColumns+` FROM cash_in_transactions WHERE id = $1`, id))
	return orNil(c, err, "cash-in")
}

// TransitionStatus moves a cash-in from -> to only if it is still in from.
// It runs on tx when given, otherwise directly on the pool.
func (r *CashInRepo) TransitionStatus(ctx context.Context, tx pgx.Tx, id string, from, to domain.CashInStatus, reason *string) (bool, error) {
	tag, err := pick(r.pool, tx).Exec(ctx,
		`UPDATE cash_in_transactions SET status = $1, failure_reason = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		to, reason, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition cash-in %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByWallet returns a wallet's cash-ins, newest first.
func (r *CashInRepo) ListByWallet(ctx context.Context, walletID string, limit int) ([]domain.CashInTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+cashInColumns+` FROM cash_in_transactions WHERE wallet_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("list cash-ins: %w", err)
	}
	return collect(rows, "cash-in", scanCashIn)
}

// ExpirePending fails every pending cash-in that expired before now.
func (r *CashInRepo) ExpirePending(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE cash_in_transactions SET status = $1, failure_reason = 'expired', updated_at = NOW()
		 WHERE status = $2 AND expires_at < $3
		 RETURNING id`,
		domain.CashInStatusFailed, domain.CashInStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("expire pending cash-ins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired ids: %w", err)
	}
	return ids, nil
}

func scanCashIn(row pgx.Row) (*domain.CashInTransaction, error) {
	c := &domain.CashInTransaction{}
	err := row.Scan(
		&c.ID, &c.WalletID, &c.Amount, &c.Method, &c.Status, &c.Timestamp, &c.ExpiresAt, &c.Signature,
		&c.AgentID, &c.VoucherCode, &c.BankAccountID, &c.Fees, &c.SyncStatus, &c.FailureReason, &c.UpdatedAt,
	)
	return c, err
}
