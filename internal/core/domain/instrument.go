package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Agent is a field agent that accepts cash and credits wallets.
type Agent struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Location   string          `json:"location"`
	Phone      string          `json:"phone"`
	PublicKey  string          `json:"public_key"`
	IsActive   bool            `json:"is_active"`
	MaxAmount  decimal.Decimal `json:"max_amount"`
	DailyLimit decimal.Decimal `json:"daily_limit"`
	Commission decimal.Decimal `json:"commission"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Voucher reasons returned by validation.
const (
	VoucherReasonNotFound       = "not found"
	VoucherReasonAlreadyUsed    = "already used"
	VoucherReasonExpired        = "expired"
	VoucherReasonAmountMismatch = "amount mismatch"
)

// Voucher is a single-use prepaid code.
type Voucher struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	IsUsed    bool            `json:"is_used"`
	UsedBy    *string         `json:"used_by,omitempty"`
	UsedAt    *time.Time      `json:"used_at,omitempty"`
	ExpiresAt time.Time       `json:"expires_at"`
	Signature string          `json:"signature"`
	Series    string          `json:"series"`
	CreatedAt time.Time       `json:"created_at"`
}

// RejectReason returns why the voucher cannot be redeemed at now, or "" if it can.
func (v *Voucher) RejectReason(now time.Time) string {
	if v.IsUsed {
		return VoucherReasonAlreadyUsed
	}
	if !v.ExpiresAt.After(now) {
		return VoucherReasonExpired
	}
	return ""
}

// BankAccount is a bank account linked to a wallet.
type BankAccount struct {
	ID            string          `json:"id"`
	WalletID      string          `json:"wallet_id"`
	BankName      string          `json:"bank_name"`
	AccountNumber string          `json:"account_number"`
	AccountHolder string          `json:"account_holder"`
	IsVerified    bool            `json:"is_verified"`
	DailyLimit    decimal.Decimal `json:"daily_limit"`
	MonthlyLimit  decimal.Decimal `json:"monthly_limit"`
	LastUsed      *time.Time      `json:"last_used,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
