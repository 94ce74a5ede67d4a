package service

import (
	"fmt"

	"qr-wallet/config"
	"qr-wallet/internal/core/domain"
	"qr-wallet/pkg/apperror"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeeRule is a fixed fee plus a percentage of the amount.
type FeeRule struct {
	Base    decimal.Decimal
	Percent decimal.Decimal
}

// FeeSchedule holds one FeeRule per cash-in method.
type FeeSchedule struct {
	rules map[domain.CashInMethod]FeeRule
}

// NewFeeSchedule parses the configured fee rules.
func NewFeeSchedule(cfg config.FeesConfig) (*FeeSchedule, error) {
	raw := map[domain.CashInMethod]config.FeeRule{
		domain.CashInMethodAgent:   cfg.Agent,
		domain.CashInMethodVoucher: cfg.Voucher,
		domain.CashInMethodBanking: cfg.Banking,
	}

	rules := make(map[domain.CashInMethod]FeeRule, len(raw))
	for method, r := range raw {
		base, err := parseFee(r.Base)
		if err != nil {
			return nil, fmt.Errorf("fees.%s.base: %w", method, err)
		}
		pct, err := parseFee(r.Percent)
		if err != nil {
			return nil, fmt.Errorf("fees.%s.percent: %w", method, err)
		}
		rules[method] = FeeRule{Base: base, Percent: pct}
	}
	return &FeeSchedule{rules: rules}, nil
}

func parseFee(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative, got %s", s)
	}
	return d, nil
}

// Fees returns the fee for a cash-in, rounded to cents. A known agent charges
// its own flat commission instead of the agent schedule.
func (f *FeeSchedule) Fees(method domain.CashInMethod, amount decimal.Decimal, agent *domain.Agent) (decimal.Decimal, error) {
	if method == domain.CashInMethodAgent && agent != nil {
		return agent.Commission.Round(amountPlaces), nil
	}

	rule, ok := f.rules[method]
	if !ok {
		return decimal.Zero, apperror.ErrInvalidMethod(string(method))
	}
	return rule.Base.Add(amount.Mul(rule.Percent).Div(hundred)).Round(amountPlaces), nil
}
