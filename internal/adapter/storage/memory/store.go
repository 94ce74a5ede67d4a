// Package memory is an in-process implementation of the persistence ports.
// It backs single-device demo deployments and the service level tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"qr-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrForeignTx is returned when a repository receives a transaction it did not begin.
var ErrForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds every table. Transactions are serialized by txMu; each
// individual read or write holds mu only for its own duration.
type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	users    map[string]*domain.Identity
	txns     map[uuid.UUID]*domain.Transaction
	agents   map[string]*domain.Agent
	vouchers map[string]*domain.Voucher
	accounts map[string]*domain.BankAccount
	cashIns  map[string]*domain.CashInTransaction
	audit    []domain.AuditLog
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]*domain.Identity),
		txns:     make(map[uuid.UUID]*domain.Transaction),
		agents:   make(map[string]*domain.Agent),
		vouchers: make(map[string]*domain.Voucher),
		accounts: make(map[string]*domain.BankAccount),
		cashIns:  make(map[string]*domain.CashInTransaction),
	}
}

// Tx is the pgx.Tx handed out by Transactor. Only Commit and Rollback are
// implemented; writes made through it are undone on Rollback.
type Tx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

// Commit keeps the writes and releases the store for the next transaction.
func (t *Tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

// Rollback reverts every write made through t. It is a no-op after Commit.
func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()

	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

// onRollback registers fn to run under mu if tx is rolled back. tx may be nil.
func (s *Store) onRollback(tx pgx.Tx, fn func()) error {
	if tx == nil {
		return nil
	}
	mt, ok := tx.(*Tx)
	if !ok || mt.store != s {
		return ErrForeignTx
	}
	if mt.done {
		return pgx.ErrTxClosed
	}
	mt.undo = append(mt.undo, fn)
	return nil
}

// checkTx rejects transactions from other stores before any write happens.
func (s *Store) checkTx(tx pgx.Tx) error {
	if tx == nil {
		return nil
	}
	mt, ok := tx.(*Tx)
	if !ok || mt.store != s {
		return ErrForeignTx
	}
	if mt.done {
		return pgx.ErrTxClosed
	}
	return nil
}

// Transactor implements ports.DBTransactor.
type Transactor struct {
	store *Store
}

// NewTransactor creates a new Transactor for s.
func NewTransactor(s *Store) *Transactor {
	return &Transactor{store: s}
}

// Begin waits for any running transaction to finish and starts a new one.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	locked := make(chan struct{})
	go func() {
		t.store.txMu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
		return &Tx{store: t.store}, nil
	case <-ctx.Done():
		// Hand the lock straight back once the waiter gets it.
		go func() {
			<-locked
			t.store.txMu.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// HealthCheck implements ports.HealthChecker.
type HealthCheck struct{}

// NewHealthCheck creates a health checker for the in-memory store.
func NewHealthCheck() *HealthCheck {
	return &HealthCheck{}
}

// Ping always succeeds.
func (HealthCheck) Ping(context.Context) error { return nil }

// Name returns the dependency name.
func (HealthCheck) Name() string { return "memory" }
