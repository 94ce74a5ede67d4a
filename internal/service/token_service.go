package service

import (
	"fmt"
	"time"

	"qr-wallet/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTTokenService implements ports.TokenService using HS256 JWT.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
	}
}

// Generate creates a signed session token for the given wallet.
func (s *JWTTokenService) Generate(walletID string) (*ports.TokenClaims, string, error) {
	now := time.Now()
	claims := &ports.TokenClaims{
		WalletID:  walletID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(s.expiry),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   walletID,
		ID:        claims.TokenID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, "", fmt.Errorf("signing token: %w", err)
	}

	return claims, tokenString, nil
}

// Validate parses and validates a JWT token, returning the claims.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &rc, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if rc.Subject == "" {
		return nil, fmt.Errorf("missing subject claim")
	}
	if rc.ID == "" {
		return nil, fmt.Errorf("missing token id claim")
	}

	return &ports.TokenClaims{
		WalletID:  rc.Subject,
		TokenID:   rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
