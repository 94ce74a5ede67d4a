package service

import (
	"context"
	"fmt"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

// ExpirySweeper periodically fails pending cash-ins that are past their expiry.
type ExpirySweeper struct {
	cashIns  ports.CashInRepository
	audit    ports.AuditService
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewExpirySweeper creates a new ExpirySweeper.
func NewExpirySweeper(cashIns ports.CashInRepository, audit ports.AuditService, interval time.Duration, log zerolog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		cashIns:  cashIns,
		audit:    audit,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is canceled.
func (w *ExpirySweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Warn().Msg("expiry sweeper disabled: non-positive interval")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.interval).Msg("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.log.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}

// Sweep fails every overdue pending cash-in and returns how many it moved.
func (w *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := w.cashIns.ExpirePending(ctx, w.now().UTC())
	if err != nil {
		return 0, apperror.ErrStorage(fmt.Errorf("expire pending cash-ins: %w", err))
	}

	for _, id := range ids {
		w.audit.Log(ctx, domain.NewAuditLog("", domain.AuditActionCashInFailed, "cash_in", id))
	}
	if len(ids) > 0 {
		w.log.Info().Int("count", len(ids)).Msg("expired pending cash-ins")
	}
	return len(ids), nil
}
