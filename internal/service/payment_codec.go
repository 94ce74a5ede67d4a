package service

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"strconv"
	"strings"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const (
	qrPrefix          = "QRW1:"
	amountPlaces      = 2
	maxDescriptionLen = 140
	maxQRLen          = 2048
)

// wirePayload is the JSON shape inside a QR string.
type wirePayload struct {
	Amount      string `json:"amount"`
	From        string `json:"from"`
	To          string `json:"to"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"public_key"`
}

// PaymentCodec builds, encodes and decodes signed payment payloads.
// It never verifies signatures.
type PaymentCodec struct {
	crypto ports.CryptoService
}

// NewPaymentCodec creates a new PaymentCodec.
func NewPaymentCodec(crypto ports.CryptoService) *PaymentCodec {
	return &PaymentCodec{crypto: crypto}
}

// SignableMessage returns the canonical bytes covered by the payload signature:
// amount, from, to, description, timestamp and nonce, each written as
// "<byte length>:<value>;". Length prefixes keep field boundaries unambiguous.
func SignableMessage(p *domain.PaymentPayload) []byte {
	return lengthPrefixed(
		p.Amount.StringFixed(amountPlaces),
		p.FromWalletID,
		p.ToWalletID,
		p.Description,
		strconv.FormatInt(p.Timestamp, 10),
		p.Nonce,
	)
}

func lengthPrefixed(fields ...string) []byte {
	var b bytes.Buffer
	for _, field := range fields {
		b.WriteString(strconv.Itoa(len(field)))
		b.WriteByte(':')
		b.WriteString(field)
		b.WriteByte(';')
	}
	return b.Bytes()
}

// BuildPayload creates a payment from the sender wallet to toWalletID, signed
// with the sender's plaintext private key.
func (c *PaymentCodec) BuildPayload(from *domain.Identity, privateKey string, toWalletID string, amount decimal.Decimal, description string, now time.Time) (*domain.PaymentPayload, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !amount.Equal(amount.Round(amountPlaces)) {
		return nil, apperror.Validation("Amount supports at most 2 decimal places")
	}
	if toWalletID == "" {
		return nil, apperror.Validation("Recipient wallet ID is required")
	}
	if toWalletID == from.WalletID {
		return nil, apperror.Validation("Cannot pay your own wallet")
	}
	if len(description) > maxDescriptionLen {
		return nil, apperror.Validation(fmt.Sprintf("Description exceeds %d bytes", maxDescriptionLen))
	}

	nonce, err := c.crypto.GenerateNonce()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate nonce: %w", err))
	}

	p := &domain.PaymentPayload{
		Amount:       amount.Round(amountPlaces),
		FromWalletID: from.WalletID,
		ToWalletID:   toWalletID,
		Description:  description,
		Timestamp:    now.UnixMilli(),
		Nonce:        nonce,
		PublicKey:    from.PublicKey,
	}

	sig, err := c.crypto.Sign(SignableMessage(p), privateKey)
	if err != nil {
		return nil, err
	}
	p.Signature = sig

	return p, nil
}

// Encode returns "QRW1:" + base64url(JSON).
func (c *PaymentCodec) Encode(p *domain.PaymentPayload) (string, error) {
	raw, err := json.Marshal(wirePayload{
		Amount:      p.Amount.StringFixed(amountPlaces),
		From:        p.FromWalletID,
		To:          p.ToWalletID,
		Description: p.Description,
		Timestamp:   p.Timestamp,
		Nonce:       p.Nonce,
		Signature:   p.Signature,
		PublicKey:   p.PublicKey,
	})
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("marshal payload: %w", err))
	}
	return qrPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses a QR string. Any structural problem fails with CRYPTO_003.
func (c *PaymentCodec) Decode(qr string) (*domain.PaymentPayload, error) {
	if len(qr) > maxQRLen {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("qr exceeds %d bytes", maxQRLen))
	}
	if !strings.HasPrefix(qr, qrPrefix) {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("missing %q prefix", qrPrefix))
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(qr, qrPrefix))
	if err != nil {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("decoding base64: %w", err))
	}

	var w wirePayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("decoding json: %w", err))
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("trailing data after payload"))
	}

	amount, err := decimal.NewFromString(w.Amount)
	if err != nil {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("parsing amount: %w", err))
	}

	switch {
	case !amount.IsPositive():
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("amount must be positive"))
	case !amount.Equal(amount.Round(amountPlaces)):
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("amount has more than %d decimals", amountPlaces))
	case w.Timestamp <= 0:
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("timestamp must be positive"))
	case w.From == "" || w.To == "":
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("wallet ids are required"))
	case w.From == w.To:
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("sender and receiver are the same wallet"))
	case w.Nonce == "" || w.Signature == "" || w.PublicKey == "":
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("nonce, signature and public key are required"))
	case len(w.Description) > maxDescriptionLen:
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("description exceeds %d bytes", maxDescriptionLen))
	}

	return &domain.PaymentPayload{
		Amount:       amount.Round(amountPlaces),
		FromWalletID: w.From,
		ToWalletID:   w.To,
		Description:  w.Description,
		Timestamp:    w.Timestamp,
		Nonce:        w.Nonce,
		Signature:    w.Signature,
		PublicKey:    w.PublicKey,
	}, nil
}

// RenderPNG draws qr as a PNG image of size x size pixels.
func RenderPNG(qr string, size int) ([]byte, error) {
	code, err := qrcode.New(qr, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("building qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code.Image(size)); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
