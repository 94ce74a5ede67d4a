package memory

import (
	"context"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	s *Store
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(s *Store) *UserRepo {
	return &UserRepo{s: s}
}

// Create inserts a wallet. Wallet ID and phone number are unique.
func (r *UserRepo) Create(_ context.Context, identity *domain.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[identity.WalletID]; ok {
		return ports.ErrDuplicateWalletID
	}
	for _, u := range r.s.users {
		if u.PhoneNumber == identity.PhoneNumber {
			return ports.ErrDuplicateKey
		}
	}

	cp := *identity
	r.s.users[cp.WalletID] = &cp
	return nil
}

// GetByWalletID returns nil if the wallet is not stored here.
func (r *UserRepo) GetByWalletID(_ context.Context, walletID string) (*domain.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[walletID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// GetByWalletIDForUpdate reads the wallet inside tx. Holding tx already excludes other writers.
func (r *UserRepo) GetByWalletIDForUpdate(ctx context.Context, tx pgx.Tx, walletID string) (*domain.Identity, error) {
	if err := r.s.checkTx(tx); err != nil {
		return nil, err
	}
	return r.GetByWalletID(ctx, walletID)
}

// PhoneExists reports whether a wallet is registered with phone.
func (r *UserRepo) PhoneExists(_ context.Context, phone string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

// WalletIDExists reports whether walletID is taken.
func (r *UserRepo) WalletIDExists(_ context.Context, walletID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.users[walletID]
	return ok, nil
}

// UpdateBalance sets the wallet balance inside tx.
func (r *UserRepo) UpdateBalance(_ context.Context, tx pgx.Tx, walletID string, balance decimal.Decimal) error {
	if err := r.s.checkTx(tx); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[walletID]
	if !ok {
		return errNotFound("wallet", walletID)
	}
	prev := u.Balance
	u.Balance = balance
	return r.s.onRollback(tx, func() { u.Balance = prev })
}

// TouchSync records the last sync instant of the wallet.
func (r *UserRepo) TouchSync(_ context.Context, walletID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[walletID]
	if !ok {
		return errNotFound("wallet", walletID)
	}
	t := at
	u.LastSyncAt = &t
	return nil
}
