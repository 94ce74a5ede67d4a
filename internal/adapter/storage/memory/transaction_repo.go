package memory

import (
	"context"
	"sort"

	"qr-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	s *Store
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(s *Store) *TransactionRepo {
	return &TransactionRepo{s: s}
}

// Create inserts the ledger entry unless one with the same ID exists.
func (r *TransactionRepo) Create(_ context.Context, tx pgx.Tx, txn *domain.Transaction) (bool, error) {
	if err := r.s.checkTx(tx); err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.txns[txn.ID]; ok {
		return false, nil
	}
	cp := *txn
	r.s.txns[cp.ID] = &cp
	return true, r.s.onRollback(tx, func() { delete(r.s.txns, cp.ID) })
}

// ListByWallet returns up to limit entries owned by walletID, newest first.
func (r *TransactionRepo) ListByWallet(_ context.Context, walletID string, limit int) ([]domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for _, t := range r.s.txns {
		if t.WalletID == walletID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Timestamp > out[j].Timestamp
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
