package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashInMethod is the settlement channel of a cash-in.
type CashInMethod string

const (
	CashInMethodAgent   CashInMethod = "agent"
	CashInMethodVoucher CashInMethod = "voucher"
	CashInMethodBanking CashInMethod = "banking"
)

// Valid reports whether m is a known method.
func (m CashInMethod) Valid() bool {
	switch m {
	case CashInMethodAgent, CashInMethodVoucher, CashInMethodBanking:
		return true
	}
	return false
}

// CashInStatus represents the lifecycle state of a cash-in.
type CashInStatus string

const (
	CashInStatusPending   CashInStatus = "pending"
	CashInStatusValidated CashInStatus = "validated" // agent confirmed, awaiting settlement
	CashInStatusCompleted CashInStatus = "completed" // funds credited
	CashInStatusFailed    CashInStatus = "failed"
)

// CashInTransaction is a deposit into a wallet through an external channel.
type CashInTransaction struct {
	ID            string          `json:"id"`
	WalletID      string          `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        CashInMethod    `json:"method"`
	Status        CashInStatus    `json:"status"`
	Timestamp     time.Time       `json:"timestamp"`
	ExpiresAt     time.Time       `json:"expires_at"`
	Signature     string          `json:"signature"`
	AgentID       *string         `json:"agent_id,omitempty"`
	VoucherCode   *string         `json:"voucher_code,omitempty"`
	BankAccountID *string         `json:"bank_account_id,omitempty"`
	Fees          decimal.Decimal `json:"fees"`
	SyncStatus    SyncStatus      `json:"sync_status"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsTerminal returns true if no further transition is possible.
func (c *CashInTransaction) IsTerminal() bool {
	return c.Status == CashInStatusCompleted || c.Status == CashInStatusFailed
}

// IsExpired reports whether now is past the expiry instant.
func (c *CashInTransaction) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// NetAmount is what the wallet receives once fees are deducted.
func (c *CashInTransaction) NetAmount() decimal.Decimal {
	return c.Amount.Sub(c.Fees)
}

// InstrumentMatchesMethod reports whether exactly one instrument reference is
// set and it is the one the method requires.
func (c *CashInTransaction) InstrumentMatchesMethod() bool {
	set := func(p *string) bool { return p != nil && *p != "" }
	agent, voucher, bank := set(c.AgentID), set(c.VoucherCode), set(c.BankAccountID)

	switch c.Method {
	case CashInMethodAgent:
		return agent && !voucher && !bank
	case CashInMethodVoucher:
		return voucher && !agent && !bank
	case CashInMethodBanking:
		return bank && !agent && !voucher
	}
	return false
}

// CanTransition reports whether a cash-in using method may move from -> to.
//
//	pending -> validated   (agent only)
//	pending -> completed   (voucher, banking)
//	pending -> failed
//	validated -> completed (agent only)
func CanTransition(method CashInMethod, from, to CashInStatus) bool {
	switch from {
	case CashInStatusPending:
		switch to {
		case CashInStatusValidated:
			return method == CashInMethodAgent
		case CashInStatusCompleted:
			return method == CashInMethodVoucher || method == CashInMethodBanking
		case CashInStatusFailed:
			return true
		}
	case CashInStatusValidated:
		return method == CashInMethodAgent && to == CashInStatusCompleted
	}
	return false
}
