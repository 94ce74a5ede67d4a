package memory

import (
	"context"
	"sort"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// CashInRepo implements ports.CashInRepository.
type CashInRepo struct {
	s *Store
}

// NewCashInRepo creates a new CashInRepo.
func NewCashInRepo(s *Store) *CashInRepo {
	return &CashInRepo{s: s}
}

// Create inserts a cash-in.
func (r *CashInRepo) Create(_ context.Context, cashIn *domain.CashInTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.cashIns[cashIn.ID]; ok {
		return ports.ErrDuplicateKey
	}
	cp := *cashIn
	r.s.cashIns[cp.ID] = &cp
	return nil
}

// GetByID returns nil if no cash-in has id.
func (r *CashInRepo) GetByID(_ context.Context, id string) (*domain.CashInTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.cashIns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// TransitionStatus sets status to `to` only if it is currently `from`.
func (r *CashInRepo) TransitionStatus(_ context.Context, tx pgx.Tx, id string, from, to domain.CashInStatus, reason *string) (bool, error) {
	if err := r.s.checkTx(tx); err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.cashIns[id]
	if !ok || c.Status != from {
		return false, nil
	}

	prev := *c
	c.Status = to
	c.FailureReason = reason
	c.UpdatedAt = time.Now().UTC()
	return true, r.s.onRollback(tx, func() { *c = prev })
}

// ListByWallet returns up to limit cash-ins of walletID, newest first.
func (r *CashInRepo) ListByWallet(_ context.Context, walletID string, limit int) ([]domain.CashInTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.CashInTransaction, 0)
	for _, c := range r.s.cashIns {
		if c.WalletID == walletID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ExpirePending fails every pending cash-in that expired before now.
func (r *CashInRepo) ExpirePending(_ context.Context, now time.Time) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reason := "expired"
	var ids []string
	for _, c := range r.s.cashIns {
		if c.Status == domain.CashInStatusPending && c.IsExpired(now) {
			c.Status = domain.CashInStatusFailed
			c.FailureReason = &reason
			c.UpdatedAt = now
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
