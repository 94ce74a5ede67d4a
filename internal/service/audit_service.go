package service

import (
	"context"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"

	"github.com/rs/zerolog"
)

const auditWriteTimeout = 5 * time.Second

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates an audit trail that logs every entry and persists
// it to repo when one is given.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Log records entry in the background. The write outlives the caller's
// request but keeps its context values.
func (s *auditService) Log(ctx context.Context, entry *domain.AuditLog) {
	ctx = context.WithoutCancel(ctx)

	go func() {
		ev := s.log.Info()
		if entry.Action.IsFailure() {
			ev = s.log.Warn()
		}
		ev = ev.Str("audit_id", entry.ID.String()).
			Str("action", string(entry.Action)).
			Str("resource_type", entry.ResourceType)
		if entry.ResourceID != "" {
			ev = ev.Str("resource_id", entry.ResourceID)
		}
		if entry.WalletID != nil {
			ev = ev.Str("wallet_id", *entry.WalletID)
		}
		ev.Msg("audit")

		if s.repo == nil {
			return
		}

		writeCtx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
		defer cancel()
		if err := s.repo.Create(writeCtx, entry); err != nil {
			s.log.Error().Err(err).
				Str("audit_id", entry.ID.String()).
				Str("action", string(entry.Action)).
				Msg("audit entry not persisted")
		}
	}()
}
