package dto

import (
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"

	"github.com/shopspring/decimal"
)

const amountPlaces = 2

// CreateWalletRequest is the request body for wallet registration.
type CreateWalletRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=100" sanitize:"-"`
	PhoneNumber string `json:"phone_number" binding:"required,max=32"`
	PIN         string `json:"pin" binding:"required,numeric,min=4,max=12"`
}

// LoginRequest is the request body for opening a session.
type LoginRequest struct {
	WalletID string `json:"wallet_id" binding:"required,wallet_id"`
	PIN      string `json:"pin" binding:"required,numeric"`
}

// SessionResponse is returned when a session is opened.
type SessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt int64          `json:"expires_at"` // Unix timestamp
	Wallet    WalletResponse `json:"wallet"`
}

// WalletResponse is the public view of a wallet identity.
type WalletResponse struct {
	WalletID    string  `json:"wallet_id"`
	DisplayName string  `json:"display_name"`
	PhoneNumber string  `json:"phone_number"`
	PublicKey   string  `json:"public_key"`
	Balance     string  `json:"balance"`
	CreatedAt   string  `json:"created_at"`
	LastSyncAt  *string `json:"last_sync_at,omitempty"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Balance  string `json:"balance"`
}

// PaymentQRRequest is the request body for generating a payment QR.
type PaymentQRRequest struct {
	ToWalletID  string          `json:"to_wallet_id" binding:"required,wallet_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"max=140" sanitize:"-"`
	PNGSize     int             `json:"png_size" binding:"omitempty,min=64,max=1024"`
}

// PaymentQRResponse carries the encoded QR and, if requested, its PNG.
type PaymentQRResponse struct {
	QR        string  `json:"qr"`
	PNG       []byte  `json:"png,omitempty"` // base64 in JSON
	Amount    string  `json:"amount"`
	From      string  `json:"from_wallet_id"`
	To        string  `json:"to_wallet_id"`
	Nonce     string  `json:"nonce"`
	Timestamp int64   `json:"timestamp"`
	Signature string  `json:"signature"`
	Desc      *string `json:"description,omitempty"`
}

// ScanRequest is the request body for applying a scanned QR.
type ScanRequest struct {
	QR string `json:"qr" binding:"required,max=2048" sanitize:"-"`
}

// TransactionResponse is a payment ledger entry.
type TransactionResponse struct {
	ID           string `json:"id"`
	FromWalletID string `json:"from_wallet_id"`
	ToWalletID   string `json:"to_wallet_id"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Direction    string `json:"direction"`
	Status       string `json:"status"`
	Timestamp    int64  `json:"timestamp"`
	CreatedAt    string `json:"created_at"`
}

// CreateCashInRequest is the request body for a new cash-in.
// wallet_id defaults to the session wallet.
type CreateCashInRequest struct {
	WalletID      string          `json:"wallet_id" binding:"omitempty,wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method" binding:"required,oneof=agent voucher banking"`
	AgentID       *string         `json:"agent_id,omitempty" binding:"omitempty,safe_id"`
	VoucherCode   *string         `json:"voucher_code,omitempty" binding:"omitempty,safe_id" sanitize:"upper"`
	BankAccountID *string         `json:"bank_account_id,omitempty" binding:"omitempty,safe_id"`
}

// CashInResponse is a cash-in transaction.
type CashInResponse struct {
	ID            string  `json:"id"`
	WalletID      string  `json:"wallet_id"`
	Amount        string  `json:"amount"`
	Fees          string  `json:"fees"`
	NetAmount     string  `json:"net_amount"`
	Method        string  `json:"method"`
	Status        string  `json:"status"`
	AgentID       *string `json:"agent_id,omitempty"`
	VoucherCode   *string `json:"voucher_code,omitempty"`
	BankAccountID *string `json:"bank_account_id,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	ExpiresAt     string  `json:"expires_at"`
}

// CashInResultResponse is the outcome of processing or completing a cash-in.
type CashInResultResponse struct {
	Success   bool            `json:"success"`
	Status    string          `json:"status"`
	ErrorCode string          `json:"error_code,omitempty"`
	Message   string          `json:"message,omitempty"`
	CashIn    *CashInResponse `json:"cash_in,omitempty"`
}

// ValidateVoucherRequest is the request body for a voucher check.
type ValidateVoucherRequest struct {
	Code string `json:"code" binding:"required,safe_id" sanitize:"upper"`
}

// VoucherValidationResponse is the outcome of a voucher check.
type VoucherValidationResponse struct {
	IsValid bool             `json:"is_valid"`
	Error   string           `json:"error,omitempty"`
	Voucher *VoucherResponse `json:"voucher,omitempty"`
}

// AgentResponse is a cash-in agent.
type AgentResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Phone      string `json:"phone"`
	MaxAmount  string `json:"max_amount"`
	Commission string `json:"commission"`
}

// VoucherResponse is a redeemable voucher.
type VoucherResponse struct {
	Code      string `json:"code"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	ExpiresAt string `json:"expires_at"`
	Series    string `json:"series"`
}

// BankAccountResponse is a linked bank account with the number masked.
type BankAccountResponse struct {
	ID            string `json:"id"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
	IsVerified    bool   `json:"is_verified"`
	DailyLimit    string `json:"daily_limit"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(amountPlaces)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NewWalletResponse maps an identity to its public view.
func NewWalletResponse(i *domain.Identity) WalletResponse {
	resp := WalletResponse{
		WalletID:    i.WalletID,
		DisplayName: i.DisplayName,
		PhoneNumber: i.PhoneNumber,
		PublicKey:   i.PublicKey,
		Balance:     money(i.Balance),
		CreatedAt:   stamp(i.CreatedAt),
	}
	if i.LastSyncAt != nil {
		s := stamp(*i.LastSyncAt)
		resp.LastSyncAt = &s
	}
	return resp
}

// NewPaymentQRResponse maps a generated QR.
func NewPaymentQRResponse(q *ports.PaymentQR) PaymentQRResponse {
	resp := PaymentQRResponse{
		QR:        q.QR,
		PNG:       q.PNG,
		Amount:    money(q.Payload.Amount),
		From:      q.Payload.FromWalletID,
		To:        q.Payload.ToWalletID,
		Nonce:     q.Payload.Nonce,
		Timestamp: q.Payload.Timestamp,
		Signature: q.Payload.Signature,
	}
	if q.Payload.Description != "" {
		resp.Desc = &q.Payload.Description
	}
	return resp
}

// NewTransactionResponse maps a ledger entry.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID.String(),
		FromWalletID: t.FromWalletID,
		ToWalletID:   t.ToWalletID,
		Amount:       money(t.Amount),
		Description:  t.Description,
		Direction:    string(t.Direction),
		Status:       string(t.Status),
		Timestamp:    t.Timestamp,
		CreatedAt:    stamp(t.CreatedAt),
	}
}

// NewCashInResponse maps a cash-in.
func NewCashInResponse(c *domain.CashInTransaction) CashInResponse {
	return CashInResponse{
		ID:            c.ID,
		WalletID:      c.WalletID,
		Amount:        money(c.Amount),
		Fees:          money(c.Fees),
		NetAmount:     money(c.NetAmount()),
		Method:        string(c.Method),
		Status:        string(c.Status),
		AgentID:       c.AgentID,
		VoucherCode:   c.VoucherCode,
		BankAccountID: c.BankAccountID,
		FailureReason: c.FailureReason,
		CreatedAt:     stamp(c.Timestamp),
		ExpiresAt:     stamp(c.ExpiresAt),
	}
}

// NewCashInResultResponse maps a processing outcome.
func NewCashInResultResponse(r *ports.CashInResult) CashInResultResponse {
	resp := CashInResultResponse{
		Success: r.Success,
		Status:  string(r.Status),
	}
	if r.Err != nil {
		resp.ErrorCode = r.Err.Code
		resp.Message = r.Err.Message
	}
	if r.CashIn != nil {
		c := NewCashInResponse(r.CashIn)
		resp.CashIn = &c
	}
	return resp
}

// NewAgentResponse maps an agent.
func NewAgentResponse(a *domain.Agent) AgentResponse {
	return AgentResponse{
		ID:         a.ID,
		Name:       a.Name,
		Location:   a.Location,
		Phone:      a.Phone,
		MaxAmount:  money(a.MaxAmount),
		Commission: money(a.Commission),
	}
}

// NewVoucherResponse maps a voucher. The signature and redemption details stay server side.
func NewVoucherResponse(v *domain.Voucher) VoucherResponse {
	return VoucherResponse{
		Code:      v.Code,
		Amount:    money(v.Amount),
		Currency:  v.Currency,
		ExpiresAt: stamp(v.ExpiresAt),
		Series:    v.Series,
	}
}

// NewBankAccountResponse maps a bank account.
func NewBankAccountResponse(a *domain.BankAccount) BankAccountResponse {
	return BankAccountResponse{
		ID:            a.ID,
		BankName:      a.BankName,
		AccountNumber: MaskAccountNumber(a.AccountNumber),
		AccountHolder: a.AccountHolder,
		IsVerified:    a.IsVerified,
		DailyLimit:    money(a.DailyLimit),
	}
}

// MaskAccountNumber keeps the last four characters.
func MaskAccountNumber(n string) string {
	const visible = 4
	if len(n) <= visible {
		return n
	}
	masked := make([]byte, len(n))
	for i := range masked {
		if i < len(n)-visible {
			masked[i] = '*'
		} else {
			masked[i] = n[i]
		}
	}
	return string(masked)
}
