package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle state of a payment ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Direction is the side of a payment as seen from the owning wallet.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// SyncStatus tracks whether a local record has been pushed anywhere else.
type SyncStatus string

const (
	SyncStatusLocal       SyncStatus = "local"
	SyncStatusSynced      SyncStatus = "synced"
	SyncStatusPendingSync SyncStatus = "pending_sync"
)

// Transaction is an immutable payment ledger entry owned by one wallet.
// A payment between two local wallets produces one entry per wallet.
type Transaction struct {
	ID           uuid.UUID         `json:"id"`
	WalletID     string            `json:"wallet_id"` // Owning ledger
	FromWalletID string            `json:"from_wallet_id"`
	ToWalletID   string            `json:"to_wallet_id"`
	Amount       decimal.Decimal   `json:"amount"`
	Description  string            `json:"description"`
	Nonce        string            `json:"nonce"`
	Signature    string            `json:"signature"`
	Timestamp    int64             `json:"timestamp"` // Payload epoch millis
	Status       TransactionStatus `json:"status"`
	Direction    Direction         `json:"direction"`
	SyncStatus   SyncStatus        `json:"sync_status"`
	CreatedAt    time.Time         `json:"created_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}
