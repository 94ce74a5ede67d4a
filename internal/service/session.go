package service

import (
	"context"
	"sync"

	"qr-wallet/internal/core/domain"
	"qr-wallet/pkg/apperror"
)

// Session holds the wallet a caller is acting as. The host creates one per
// user (or per request) and carries it in the context.
type Session struct {
	mu       sync.RWMutex
	identity *domain.Identity
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Active returns a copy of the active identity.
func (s *Session) Active() (*domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, false
	}
	cp := *s.identity
	return &cp, true
}

// Set makes identity the active wallet.
func (s *Session) Set(identity *domain.Identity) {
	cp := *identity
	s.mu.Lock()
	s.identity = &cp
	s.mu.Unlock()
}

// Clear ends the session.
func (s *Session) Clear() {
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session carried by ctx, if any.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// activeIdentity returns the wallet acting in ctx or AUTH_003.
func activeIdentity(ctx context.Context) (*domain.Identity, error) {
	s, ok := SessionFrom(ctx)
	if !ok {
		return nil, apperror.ErrNotAuthenticated()
	}
	identity, ok := s.Active()
	if !ok {
		return nil, apperror.ErrNotAuthenticated()
	}
	return identity, nil
}
