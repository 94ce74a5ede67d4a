package domain

import "github.com/shopspring/decimal"

// PaymentPayload is the signed message carried inside a payment QR code.
type PaymentPayload struct {
	Amount       decimal.Decimal `json:"amount"`
	FromWalletID string          `json:"from_wallet_id"`
	ToWalletID   string          `json:"to_wallet_id"`
	Description  string          `json:"description"`
	Timestamp    int64           `json:"timestamp"` // epoch millis
	Nonce        string          `json:"nonce"`
	Signature    string          `json:"signature"`
	PublicKey    string          `json:"public_key"`
}
