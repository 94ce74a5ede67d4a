package service

import (
	"context"
	"errors"
	"fmt"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"

	"github.com/jackc/pgx/v5"
)

// cashInChannel settles a pending cash-in through one external channel.
type cashInChannel interface {
	process(ctx context.Context, cashIn *domain.CashInTransaction) (*ports.CashInResult, error)
}

func (s *CashInServiceImpl) channelFor(method domain.CashInMethod) (cashInChannel, error) {
	switch method {
	case domain.CashInMethodAgent:
		return agentChannel{s}, nil
	case domain.CashInMethodVoucher:
		return voucherChannel{s}, nil
	case domain.CashInMethodBanking:
		return bankChannel{s}, nil
	}
	return nil, apperror.ErrInvalidMethod(string(method))
}

// settlementFailure fails the cash-in after a channel error. When the caller
// itself went away the cash-in is left pending for a retry or the sweeper.
func (s *CashInServiceImpl) settlementFailure(ctx context.Context, cashIn *domain.CashInTransaction, err error) (*ports.CashInResult, error) {
	if ctx.Err() != nil {
		s.log.Warn().Err(err).Str("cashin_id", cashIn.ID).Msg("cash-in settlement abandoned by caller")
		return rejected(cashIn, apperror.ErrSettlementTimeout()), nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return s.fail(ctx, cashIn, reasonSettlementTimeout, apperror.ErrSettlementTimeout())
	}
	return s.fail(ctx, cashIn, err.Error(), apperror.ErrSettlementFailed(err))
}

// agentChannel waits for the field agent, marks the cash-in validated and then credits it.
type agentChannel struct{ s *CashInServiceImpl }

func (ch agentChannel) process(ctx context.Context, cashIn *domain.CashInTransaction) (*ports.CashInResult, error) {
	s := ch.s

	agent, err := s.instruments.GetAgent(ctx, *cashIn.AgentID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get agent: %w", err))
	}
	if agent == nil {
		return s.fail(ctx, cashIn, reasonAgentNotFound, apperror.ErrSettlementFailed(errors.New(reasonAgentNotFound)))
	}

	confirmCtx, cancel := context.WithTimeout(ctx, s.cfg.AgentTimeout)
	defer cancel()
	if err := s.agents.Confirm(confirmCtx, agent, cashIn); err != nil {
		return s.settlementFailure(ctx, cashIn, err)
	}

	ok, err := s.transition(ctx, nil, cashIn, domain.CashInStatusValidated, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return rejected(cashIn, apperror.ErrAlreadyProcessed()), nil
	}

	s.log.Info().Str("cashin_id", cashIn.ID).Str("agent_id", agent.ID).Msg("cash-in confirmed by agent")
	return s.settle(ctx, cashIn, nil)
}

// voucherChannel redeems a single-use voucher. Redemptions of one code are
// serialized by the voucher lock and the store only marks an unused voucher.
type voucherChannel struct{ s *CashInServiceImpl }

func (ch voucherChannel) process(ctx context.Context, cashIn *domain.CashInTransaction) (*ports.CashInResult, error) {
	s := ch.s
	code := *cashIn.VoucherCode

	token, ok, err := s.locks.Acquire(ctx, code)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("lock voucher: %w", err))
	}
	if !ok {
		return rejected(cashIn, apperror.ErrSettlementTimeout()), nil
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), code, token); err != nil {
			s.log.Warn().Err(err).Str("voucher_code", code).Msg("failed to release voucher lock")
		}
	}()

	voucher, reason, err := s.checkVoucher(ctx, code)
	if err != nil {
		return nil, err
	}
	if reason == "" && !voucher.Amount.Equal(cashIn.Amount) {
		reason = domain.VoucherReasonAmountMismatch
	}
	if reason != "" {
		return s.fail(ctx, cashIn, reason, apperror.ErrVoucherInvalid(reason))
	}

	res, err := s.settle(ctx, cashIn, func(ctx context.Context, dbTx pgx.Tx) (*apperror.AppError, string, error) {
		claimed, err := s.instruments.MarkVoucherUsed(ctx, dbTx, voucher.ID, cashIn.WalletID, s.now().UTC())
		if err != nil {
			return nil, "", apperror.ErrStorage(fmt.Errorf("mark voucher used: %w", err))
		}
		if !claimed {
			return apperror.ErrVoucherInvalid(domain.VoucherReasonAlreadyUsed), domain.VoucherReasonAlreadyUsed, nil
		}
		return nil, "", nil
	})
	if err == nil && res.Success {
		s.audit.Log(ctx, domain.NewAuditLog(cashIn.WalletID, domain.AuditActionVoucherRedeemed, "voucher", voucher.ID))
	}
	return res, err
}

// bankChannel waits for the bank transfer to settle and then credits the wallet.
type bankChannel struct{ s *CashInServiceImpl }

func (ch bankChannel) process(ctx context.Context, cashIn *domain.CashInTransaction) (*ports.CashInResult, error) {
	s := ch.s

	account, err := s.instruments.GetBankAccount(ctx, *cashIn.BankAccountID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get bank account: %w", err))
	}
	if account == nil {
		return s.fail(ctx, cashIn, reasonAccountNotFound, apperror.ErrSettlementFailed(errors.New(reasonAccountNotFound)))
	}

	settleCtx, cancel := context.WithTimeout(ctx, s.cfg.BankTimeout)
	defer cancel()
	if err := s.banks.Settle(settleCtx, account, cashIn); err != nil {
		return s.settlementFailure(ctx, cashIn, err)
	}

	return s.settle(ctx, cashIn, nil)
}
