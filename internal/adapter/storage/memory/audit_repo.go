package memory

import (
	"context"
	"fmt"

	"qr-wallet/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

// Create appends an audit entry.
func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

// Entries returns a copy of the audit trail in insertion order.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.s.audit...)
}

func errNotFound(kind, id string) error {
	return fmt.Errorf("%s not found: %s", kind, id)
}
