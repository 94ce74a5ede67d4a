package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"qr-wallet/config"

	"golang.org/x/crypto/argon2"
)

const argon2SaltLen = 16

// Argon2PINHasher implements ports.PINHasher using Argon2id.
// The salt is derived from the wallet ID so the hash is deterministic per wallet.
type Argon2PINHasher struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}

// NewArgon2PINHasher creates a PIN hasher with the configured cost parameters.
func NewArgon2PINHasher(cfg config.Argon2Config) *Argon2PINHasher {
	return &Argon2PINHasher{
		time:    cfg.Time,
		memory:  cfg.Memory,
		threads: cfg.Threads,
		keyLen:  cfg.KeyLen,
	}
}

// Hash returns format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func (s *Argon2PINHasher) Hash(pin string, walletID string) (string, error) {
	if walletID == "" {
		return "", fmt.Errorf("wallet id required for pin salt")
	}
	salt := walletSalt(walletID)
	hash := argon2.IDKey([]byte(pin), salt, s.time, s.memory, s.threads, s.keyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		s.memory, s.time, s.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify recomputes the hash with the stored parameters and compares in constant time.
func (s *Argon2PINHasher) Verify(pin string, walletID string, encodedHash string) (bool, error) {
	salt, hash, params, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare(salt, walletSalt(walletID)) != 1 {
		return false, nil
	}

	otherHash := argon2.IDKey([]byte(pin), salt, params.time, params.memory, params.threads, params.keyLen)

	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}

func walletSalt(walletID string) []byte {
	sum := sha256.Sum256([]byte(walletID))
	return sum[:argon2SaltLen]
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// decodeArgon2Hash parses the encoded hash string.
func decodeArgon2Hash(encodedHash string) (salt, hash []byte, params argon2Params, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, params, fmt.Errorf("invalid hash format: expected 6 parts, got %d", len(parts))
	}

	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version: %d", version)
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil {
		return nil, nil, params, fmt.Errorf("parsing params: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}

	params.keyLen = uint32(len(hash))

	return salt, hash, params, nil
}
