package service

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"

	"qr-wallet/pkg/apperror"

	"github.com/google/uuid"
)

const (
	walletIDPrefix = "W"
	walletIDDigits = 12
	nonceBytes     = 16
)

// recordNamespace scopes ledger record IDs derived from (walletID, nonce).
var recordNamespace = uuid.MustParse("6f1c6a0e-3b4f-5d8e-9a42-7c1e2f0b9d55")

// Ed25519CryptoService implements ports.CryptoService.
// Keys and signatures travel as standard base64 strings.
type Ed25519CryptoService struct{}

// NewEd25519CryptoService creates a new Ed25519 crypto service.
func NewEd25519CryptoService() *Ed25519CryptoService {
	return &Ed25519CryptoService{}
}

// GenerateKeyPair creates a fresh Ed25519 key pair.
func (s *Ed25519CryptoService) GenerateKeyPair() (string, string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating key pair: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), base64.StdEncoding.EncodeToString(priv), nil
}

// Sign signs message with a base64 encoded private key.
func (s *Ed25519CryptoService) Sign(message []byte, privateKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return "", apperror.ErrCrypto(fmt.Errorf("decoding private key: %w", err))
	}
	if len(raw) != ed25519.PrivateKeySize {
		return "", apperror.ErrCrypto(fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw)))
	}
	sig := ed25519.Sign(ed25519.PrivateKey(raw), message)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks signature over message. A well-formed signature that does
// not match yields (false, nil); malformed material yields a CRYPTO_001 error.
func (s *Ed25519CryptoService) Verify(message []byte, signature string, publicKey string) (bool, error) {
	pub, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return false, apperror.ErrCrypto(fmt.Errorf("decoding public key: %w", err))
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, apperror.ErrCrypto(fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub)))
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, apperror.ErrCrypto(fmt.Errorf("decoding signature: %w", err))
	}
	if len(sig) != ed25519.SignatureSize {
		return false, apperror.ErrCrypto(fmt.Errorf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig)))
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig), nil
}

// GenerateNonce returns 16 random bytes, base64url encoded without padding.
func (s *Ed25519CryptoService) GenerateNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateWalletID returns "W" followed by 12 random decimal digits.
// Uniqueness is the caller's concern.
func (s *Ed25519CryptoService) GenerateWalletID() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(walletIDDigits), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating wallet id: %w", err)
	}
	return fmt.Sprintf("%s%0*d", walletIDPrefix, walletIDDigits, n), nil
}

// RecordID is a UUIDv5 of walletID and nonce, so the same payment maps to
// the same ledger row for a given wallet.
func (s *Ed25519CryptoService) RecordID(walletID string, nonce string) uuid.UUID {
	return uuid.NewSHA1(recordNamespace, []byte(walletID+":"+nonce))
}
