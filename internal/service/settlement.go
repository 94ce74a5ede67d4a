package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qr-wallet/internal/core/domain"

	"github.com/rs/zerolog"
)

// Channel rejections. They fail the cash-in and are reported to the caller.
var (
	ErrAgentInactive       = errors.New("agent is not active")
	ErrAgentLimitExceeded  = errors.New("amount exceeds agent maximum")
	ErrAccountNotOwned     = errors.New("bank account does not belong to wallet")
	ErrAccountUnverified   = errors.New("bank account is not verified")
	ErrAccountLimitExceeds = errors.New("amount exceeds account daily limit")
)

// SimulatedAgentNetwork implements ports.AgentNetwork. It checks the agent can
// take the cash-in and then waits delay to stand in for the agent's confirmation.
type SimulatedAgentNetwork struct {
	delay time.Duration
	log   zerolog.Logger
}

// NewSimulatedAgentNetwork creates a simulated agent network.
func NewSimulatedAgentNetwork(delay time.Duration, log zerolog.Logger) *SimulatedAgentNetwork {
	return &SimulatedAgentNetwork{delay: delay, log: log}
}

// Confirm blocks for the configured delay or until ctx is done.
func (n *SimulatedAgentNetwork) Confirm(ctx context.Context, agent *domain.Agent, cashIn *domain.CashInTransaction) error {
	if !agent.IsActive {
		return ErrAgentInactive
	}
	if agent.MaxAmount.IsPositive() && cashIn.Amount.GreaterThan(agent.MaxAmount) {
		return ErrAgentLimitExceeded
	}

	if err := sleepCtx(ctx, n.delay); err != nil {
		return fmt.Errorf("awaiting agent %s: %w", agent.ID, err)
	}

	n.log.Debug().Str("agent_id", agent.ID).Str("cashin_id", cashIn.ID).Msg("agent confirmed cash-in")
	return nil
}

// SimulatedBankNetwork implements ports.BankNetwork with the same shape.
type SimulatedBankNetwork struct {
	delay time.Duration
	log   zerolog.Logger
}

// NewSimulatedBankNetwork creates a simulated bank network.
func NewSimulatedBankNetwork(delay time.Duration, log zerolog.Logger) *SimulatedBankNetwork {
	return &SimulatedBankNetwork{delay: delay, log: log}
}

// Settle blocks for the configured delay or until ctx is done.
func (n *SimulatedBankNetwork) Settle(ctx context.Context, account *domain.BankAccount, cashIn *domain.CashInTransaction) error {
	if account.WalletID != cashIn.WalletID {
		return ErrAccountNotOwned
	}
	if !account.IsVerified {
		return ErrAccountUnverified
	}
	if account.DailyLimit.IsPositive() && cashIn.Amount.GreaterThan(account.DailyLimit) {
		return ErrAccountLimitExceeds
	}

	if err := sleepCtx(ctx, n.delay); err != nil {
		return fmt.Errorf("awaiting bank %s: %w", account.BankName, err)
	}

	n.log.Debug().Str("account_id", account.ID).Str("cashin_id", cashIn.ID).Msg("bank settled cash-in")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
