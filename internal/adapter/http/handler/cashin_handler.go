package handler

import (
	"qr-wallet/internal/adapter/http/dto"
	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"
	"qr-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// CashInHandler handles cash-in endpoints.
type CashInHandler struct {
	cashIns ports.CashInService
}

// NewCashInHandler creates a new CashInHandler.
func NewCashInHandler(cashIns ports.CashInService) *CashInHandler {
	return &CashInHandler{cashIns: cashIns}
}

// Create handles POST /api/v1/cashins.
func (h *CashInHandler) Create(c *gin.Context) {
	var req dto.CreateCashInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	walletID := req.WalletID
	if walletID == "" {
		walletID = walletIDFrom(c)
	}

	cashIn, err := h.cashIns.CreateCashInTransaction(c.Request.Context(), ports.CashInRequest{
		WalletID:      walletID,
		Amount:        req.Amount,
		Method:        domain.CashInMethod(req.Method),
		AgentID:       req.AgentID,
		VoucherCode:   req.VoucherCode,
		BankAccountID: req.BankAccountID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewCashInResponse(cashIn))
}

// Process handles POST /api/v1/cashins/:id/process.
func (h *CashInHandler) Process(c *gin.Context) {
	result, err := h.cashIns.ProcessCashInTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeResult(c, result)
}

// Complete handles POST /api/v1/cashins/:id/complete.
func (h *CashInHandler) Complete(c *gin.Context) {
	result, err := h.cashIns.CompleteCashInTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeResult(c, result)
}

// writeResult reports expected failures with the error's status and the
// result body, so clients see both the code and the transaction.
func writeResult(c *gin.Context, result *ports.CashInResult) {
	body := dto.NewCashInResultResponse(result)
	if result.Err != nil {
		response.Status(c, result.Err.HTTPStatus, body)
		return
	}
	response.OK(c, body)
}

// List handles GET /api/v1/cashins.
func (h *CashInHandler) List(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	cashIns, err := h.cashIns.GetCashInHistory(c.Request.Context(), walletIDFrom(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.CashInResponse, 0, len(cashIns))
	for i := range cashIns {
		items = append(items, dto.NewCashInResponse(&cashIns[i]))
	}
	response.OK(c, items)
}

// Agents handles GET /api/v1/cashins/agents.
func (h *CashInHandler) Agents(c *gin.Context) {
	agents, err := h.cashIns.GetAvailableAgents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AgentResponse, 0, len(agents))
	for i := range agents {
		items = append(items, dto.NewAgentResponse(&agents[i]))
	}
	response.OK(c, items)
}

// Vouchers handles GET /api/v1/cashins/vouchers.
func (h *CashInHandler) Vouchers(c *gin.Context) {
	vouchers, err := h.cashIns.GetAvailableVouchers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.VoucherResponse, 0, len(vouchers))
	for i := range vouchers {
		items = append(items, dto.NewVoucherResponse(&vouchers[i]))
	}
	response.OK(c, items)
}

// ValidateVoucher handles POST /api/v1/cashins/vouchers/validate.
func (h *CashInHandler) ValidateVoucher(c *gin.Context) {
	var req dto.ValidateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.cashIns.ValidateVoucher(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.VoucherValidationResponse{IsValid: result.IsValid, Error: result.Error}
	if result.Voucher != nil {
		v := dto.NewVoucherResponse(result.Voucher)
		resp.Voucher = &v
	}
	response.OK(c, resp)
}

// BankAccounts handles GET /api/v1/cashins/bank-accounts.
func (h *CashInHandler) BankAccounts(c *gin.Context) {
	accounts, err := h.cashIns.GetUserBankAccounts(c.Request.Context(), walletIDFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.BankAccountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, dto.NewBankAccountResponse(&accounts[i]))
	}
	response.OK(c, items)
}
