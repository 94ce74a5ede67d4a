package handler

import (
	"fmt"
	"time"

	"qr-wallet/internal/adapter/http/dto"
	"qr-wallet/internal/adapter/http/middleware"
	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/internal/service"
	"qr-wallet/pkg/apperror"
	"qr-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionHandler opens and closes wallet sessions.
type SessionHandler struct {
	wallets  ports.WalletService
	tokens   ports.TokenService
	denylist ports.TokenDenylist
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(wallets ports.WalletService, tokens ports.TokenService, denylist ports.TokenDenylist, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{wallets: wallets, tokens: tokens, denylist: denylist, log: log}
}

// Login handles POST /api/v1/sessions.
func (h *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	ctx := service.WithSession(c.Request.Context(), service.NewSession())
	identity, err := h.wallets.Login(ctx, req.WalletID, req.PIN)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp, err := issueSession(h.tokens, identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Logout handles DELETE /api/v1/sessions. The token stays revoked until it
// would have expired.
func (h *SessionHandler) Logout(c *gin.Context) {
	raw, ok := c.Get(middleware.CtxTokenClaims)
	claims, _ := raw.(*ports.TokenClaims)
	if !ok || claims == nil {
		response.Error(c, apperror.ErrNotAuthenticated())
		return
	}

	if err := h.denylist.Revoke(c.Request.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
		response.Error(c, apperror.ErrStorage(fmt.Errorf("revoke token: %w", err)))
		return
	}
	h.wallets.Logout(c.Request.Context())

	h.log.Info().Str("wallet_id", claims.WalletID).Msg("session closed")
	response.NoContent(c)
}

func issueSession(tokens ports.TokenService, identity *domain.Identity) (dto.SessionResponse, error) {
	claims, token, err := tokens.Generate(identity.WalletID)
	if err != nil {
		return dto.SessionResponse{}, apperror.InternalError(fmt.Errorf("issue token: %w", err))
	}
	return dto.SessionResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Unix(),
		Wallet:    dto.NewWalletResponse(identity),
	}, nil
}

func walletIDFrom(c *gin.Context) string {
	return c.GetString(middleware.CtxWalletID)
}

func nowUTC() time.Time { return time.Now().UTC() }
