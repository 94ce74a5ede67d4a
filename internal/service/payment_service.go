package service

import (
	"context"
	"fmt"
	"time"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService on top of the ledger
// for whichever wallet is active in the caller's session.
type PaymentServiceImpl struct {
	ledger ports.LedgerService
	codec  *PaymentCodec
	encSvc ports.EncryptionService
	log    zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	ledger ports.LedgerService,
	crypto ports.CryptoService,
	encSvc ports.EncryptionService,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		ledger: ledger,
		codec:  NewPaymentCodec(crypto),
		encSvc: encSvc,
		log:    log,
	}
}

// GeneratePaymentQR signs a payment from the active wallet to req.ToWalletID.
func (s *PaymentServiceImpl) GeneratePaymentQR(ctx context.Context, req ports.PaymentQRRequest) (*ports.PaymentQR, error) {
	active, err := activeIdentity(ctx)
	if err != nil {
		return nil, err
	}

	privateKey, err := s.encSvc.Decrypt(active.PrivateKeyEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt private key: %w", err))
	}

	payload, err := s.codec.BuildPayload(active, privateKey, req.ToWalletID, req.Amount, req.Description, time.Now())
	if err != nil {
		return nil, err
	}

	qr, err := s.codec.Encode(payload)
	if err != nil {
		return nil, err
	}

	out := &ports.PaymentQR{Payload: payload, QR: qr}
	if req.PNGSize > 0 {
		out.PNG, err = RenderPNG(qr, req.PNGSize)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
	}

	s.log.Info().
		Str("from", payload.FromWalletID).
		Str("to", payload.ToWalletID).
		Str("amount", payload.Amount.StringFixed(amountPlaces)).
		Msg("payment qr generated")

	return out, nil
}

// ProcessScannedPayment applies a scanned QR on behalf of the active wallet.
func (s *PaymentServiceImpl) ProcessScannedPayment(ctx context.Context, qr string) (*domain.Transaction, error) {
	active, err := activeIdentity(ctx)
	if err != nil {
		return nil, err
	}
	return s.ledger.ApplyIncomingPayment(ctx, qr, active.WalletID)
}

// GetTransactionHistory lists the active wallet's ledger, newest first.
func (s *PaymentServiceImpl) GetTransactionHistory(ctx context.Context, limit int) ([]domain.Transaction, error) {
	active, err := activeIdentity(ctx)
	if err != nil {
		return nil, err
	}
	return s.ledger.GetHistory(ctx, active.WalletID, limit)
}
