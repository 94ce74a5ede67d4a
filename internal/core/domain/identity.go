package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Identity is a wallet owner: cryptographic identity plus current balance.
type Identity struct {
	ID            string          `json:"id"`
	DisplayName   string          `json:"display_name"`
	PhoneNumber   string          `json:"phone_number"`
	WalletID      string          `json:"wallet_id"`
	PINHash       string          `json:"-"` // Never expose
	PublicKey     string          `json:"public_key"`
	PrivateKeyEnc string          `json:"-"` // AES-256-GCM encrypted, decrypted only to sign
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"created_at"`
	LastSyncAt    *time.Time      `json:"last_sync_at,omitempty"`
}

// CanAfford reports whether the wallet balance covers amount.
func (i *Identity) CanAfford(amount decimal.Decimal) bool {
	return i.Balance.GreaterThanOrEqual(amount)
}
