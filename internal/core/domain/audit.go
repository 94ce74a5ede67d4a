package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateWallet    AuditAction = "CREATE_WALLET"
	AuditActionLogin           AuditAction = "LOGIN"
	AuditActionLoginFailed     AuditAction = "LOGIN_FAILED"
	AuditActionLogout          AuditAction = "LOGOUT"
	AuditActionAuthRejected    AuditAction = "AUTH_REJECTED"
	AuditActionPayment         AuditAction = "PAYMENT"
	AuditActionCashInCreated   AuditAction = "CASHIN_CREATED"
	AuditActionCashInSettled   AuditAction = "CASHIN_SETTLED"
	AuditActionCashInFailed    AuditAction = "CASHIN_FAILED"
	AuditActionVoucherRedeemed AuditAction = "VOUCHER_REDEEMED"
)

// IsFailure reports whether the action records a rejected or failed attempt.
func (a AuditAction) IsFailure() bool {
	switch a {
	case AuditActionLoginFailed, AuditActionAuthRejected, AuditActionCashInFailed:
		return true
	}
	return false
}

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	WalletID     *string     `json:"wallet_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time   `json:"created_at"`
}

// NewAuditLog builds an entry stamped with a fresh ID and the current time.
func NewAuditLog(walletID string, action AuditAction, resourceType, resourceID string) *AuditLog {
	var wid *string
	if walletID != "" {
		wid = &walletID
	}
	return &AuditLog{
		ID:           uuid.New(),
		WalletID:     wid,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CreatedAt:    time.Now().UTC(),
	}
}
