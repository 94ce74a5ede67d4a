package memory

import (
	"context"
	"sort"
	"time"

	"qr-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// InstrumentRepo implements ports.InstrumentRepository.
type InstrumentRepo struct {
	s *Store
}

// NewInstrumentRepo creates a new InstrumentRepo.
func NewInstrumentRepo(s *Store) *InstrumentRepo {
	return &InstrumentRepo{s: s}
}

// AddAgent stores or replaces an agent.
func (r *InstrumentRepo) AddAgent(a domain.Agent) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.agents[a.ID] = &a
}

// AddVoucher stores or replaces a voucher.
func (r *InstrumentRepo) AddVoucher(v domain.Voucher) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.vouchers[v.ID] = &v
}

// AddBankAccount stores or replaces a bank account.
func (r *InstrumentRepo) AddBankAccount(a domain.BankAccount) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts[a.ID] = &a
}

// ListAgents returns every agent ordered by name.
func (r *InstrumentRepo) ListAgents(context.Context) ([]domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Agent, 0, len(r.s.agents))
	for _, a := range r.s.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetAgent returns nil if no agent has id.
func (r *InstrumentRepo) GetAgent(_ context.Context, id string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.agents[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// ListVouchers returns every voucher ordered by expiry.
func (r *InstrumentRepo) ListVouchers(context.Context) ([]domain.Voucher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Voucher, 0, len(r.s.vouchers))
	for _, v := range r.s.vouchers {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// GetVoucherByCode returns nil if no voucher has code.
func (r *InstrumentRepo) GetVoucherByCode(_ context.Context, code string) (*domain.Voucher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, v := range r.s.vouchers {
		if v.Code == code {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

// MarkVoucherUsed claims an unused voucher for walletID. Returns false if it was already used.
func (r *InstrumentRepo) MarkVoucherUsed(_ context.Context, tx pgx.Tx, voucherID, walletID string, at time.Time) (bool, error) {
	if err := r.s.checkTx(tx); err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.vouchers[voucherID]
	if !ok || v.IsUsed {
		return false, nil
	}

	prev := *v
	usedBy, usedAt := walletID, at
	v.IsUsed = true
	v.UsedBy = &usedBy
	v.UsedAt = &usedAt
	return true, r.s.onRollback(tx, func() { *v = prev })
}

// ListBankAccounts returns the accounts linked to walletID.
func (r *InstrumentRepo) ListBankAccounts(_ context.Context, walletID string) ([]domain.BankAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.BankAccount, 0)
	for _, a := range r.s.accounts {
		if a.WalletID == walletID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BankName < out[j].BankName })
	return out, nil
}

// GetBankAccount returns nil if no account has id.
func (r *InstrumentRepo) GetBankAccount(_ context.Context, id string) (*domain.BankAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}
