package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []CashInStatus{CashInStatusPending, CashInStatusValidated, CashInStatusCompleted, CashInStatusFailed}
	allowed := map[CashInMethod]map[CashInStatus][]CashInStatus{
		CashInMethodAgent: {
			CashInStatusPending:   {CashInStatusValidated, CashInStatusFailed},
			CashInStatusValidated: {CashInStatusCompleted},
		},
		CashInMethodVoucher: {
			CashInStatusPending: {CashInStatusCompleted, CashInStatusFailed},
		},
		CashInMethodBanking: {
			CashInStatusPending: {CashInStatusCompleted, CashInStatusFailed},
		},
	}

	for method, byFrom := range allowed {
		for _, from := range all {
			for _, to := range all {
				want := false
				for _, ok := range byFrom[from] {
					if ok == to {
						want = true
					}
				}
				assert.Equal(t, want, CanTransition(method, from, to), "%s: %s -> %s", method, from, to)
			}
		}
	}
}

func TestCanTransition_ValidatedOnlyCompletes(t *testing.T) {
	assert.True(t, CanTransition(CashInMethodAgent, CashInStatusValidated, CashInStatusCompleted))
	assert.False(t, CanTransition(CashInMethodAgent, CashInStatusValidated, CashInStatusFailed))

	for _, m := range []CashInMethod{CashInMethodVoucher, CashInMethodBanking} {
		assert.False(t, CanTransition(m, CashInStatusValidated, CashInStatusCompleted), m)
		assert.False(t, CanTransition(m, CashInStatusValidated, CashInStatusFailed), m)
	}
}

func TestCashInTransaction_InstrumentMatchesMethod(t *testing.T) {
	id := "x"
	empty := ""
	tests := []struct {
		name string
		c    CashInTransaction
		want bool
	}{
		{"agent", CashInTransaction{Method: CashInMethodAgent, AgentID: &id}, true},
		{"voucher", CashInTransaction{Method: CashInMethodVoucher, VoucherCode: &id}, true},
		{"banking", CashInTransaction{Method: CashInMethodBanking, BankAccountID: &id}, true},
		{"none", CashInTransaction{Method: CashInMethodAgent}, false},
		{"empty string", CashInTransaction{Method: CashInMethodAgent, AgentID: &empty}, false},
		{"wrong one", CashInTransaction{Method: CashInMethodBanking, AgentID: &id}, false},
		{"two", CashInTransaction{Method: CashInMethodVoucher, VoucherCode: &id, BankAccountID: &id}, false},
		{"unknown method", CashInTransaction{Method: "cheque", AgentID: &id}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.InstrumentMatchesMethod())
		})
	}
}

func TestCashInTransaction_ExpiryAndNet(t *testing.T) {
	now := time.Now()
	c := CashInTransaction{
		Amount:    decimal.NewFromInt(100),
		Fees:      decimal.RequireFromString("1.50"),
		ExpiresAt: now,
		Status:    CashInStatusValidated,
	}

	assert.False(t, c.IsExpired(now), "expiry instant itself is not past")
	assert.True(t, c.IsExpired(now.Add(time.Millisecond)))
	assert.True(t, c.NetAmount().Equal(decimal.RequireFromString("98.50")))
	assert.False(t, c.IsTerminal())

	c.Status = CashInStatusFailed
	assert.True(t, c.IsTerminal())
}

func TestVoucher_RejectReason(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "", (&Voucher{ExpiresAt: now.Add(time.Hour)}).RejectReason(now))
	assert.Equal(t, VoucherReasonAlreadyUsed, (&Voucher{IsUsed: true, ExpiresAt: now.Add(time.Hour)}).RejectReason(now))
	assert.Equal(t, VoucherReasonExpired, (&Voucher{ExpiresAt: now}).RejectReason(now))
}

func TestIdentity_CanAfford(t *testing.T) {
	i := Identity{Balance: decimal.NewFromInt(10)}
	assert.True(t, i.CanAfford(decimal.NewFromInt(10)))
	assert.False(t, i.CanAfford(decimal.RequireFromString("10.01")))
}

func TestCashInMethod_Valid(t *testing.T) {
	assert.True(t, CashInMethodVoucher.Valid())
	assert.False(t, CashInMethod("cheque").Valid())
}
