package handler

import (
	"qr-wallet/internal/adapter/http/dto"
	"qr-wallet/internal/core/ports"
	"qr-wallet/internal/service"
	"qr-wallet/pkg/apperror"
	"qr-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	wallets ports.WalletService
	tokens  ports.TokenService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallets ports.WalletService, tokens ports.TokenService) *WalletHandler {
	return &WalletHandler{wallets: wallets, tokens: tokens}
}

// CreateWallet handles POST /api/v1/wallets and opens a session for the new wallet.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	ctx := service.WithSession(c.Request.Context(), service.NewSession())
	identity, err := h.wallets.CreateWallet(ctx, ports.CreateWalletRequest{
		DisplayName: req.DisplayName,
		PhoneNumber: req.PhoneNumber,
		PIN:         req.PIN,
	})
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

// GetBalance handles GET /api/v1/wallets/me/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	balance, err := h.wallets.GetWalletBalance(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		WalletID: walletIDFrom(c),
		Balance:  balance.StringFixed(2),
	})
}

// Sync handles POST /api/v1/wallets/me/sync.
func (h *WalletHandler) Sync(c *gin.Context) {
	if err := h.wallets.MarkSynced(c.Request.Context(), nowUTC()); err != nil {
		response.Error(c, err)
		return
	}

	identity, ok := h.wallets.ActiveSession(c.Request.Context())
	if !ok {
		response.Error(c, apperror.ErrNotAuthenticated())
		return
	}
	response.OK(c, dto.NewWalletResponse(identity))
}
