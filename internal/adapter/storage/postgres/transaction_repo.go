package postgres

import (
	"context"
	"fmt"

	"qr-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a ledger entry within a database transaction. The record ID is
// derived from (wallet, nonce), so a replay hits the primary key and reports false.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) (bool, error) {
	query := `INSERT INTO transactions (id, wallet_id, from_wallet_id, to_wallet_id, amount, description,
		nonce, signature, timestamp_ms, status, direction, sync_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.FromWalletID, t.ToWalletID, t.Amount, t.Description,
		t.Nonce, t.Signature, t.Timestamp, t.Status, t.Direction, t.SyncStatus, t.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByWallet returns a wallet's ledger entries, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID string, limit int) ([]domain.Transaction, error) {
	query := `SELECT id, wallet_id, from_wallet_id, to_wallet_id, amount, description,
		nonce, signature, timestamp_ms, status, direction, sync_status, created_at
		FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC, timestamp_ms DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.WalletID, &t.FromWalletID, &t.ToWalletID, &t.Amount, &t.Description,
			&t.Nonce, &t.Signature, &t.Timestamp, &t.Status, &t.Direction, &t.SyncStatus, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}
