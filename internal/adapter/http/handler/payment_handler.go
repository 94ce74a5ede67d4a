package handler

import (
	"strconv"

	"qr-wallet/internal/adapter/http/dto"
	"qr-wallet/internal/core/ports"
	"qr-wallet/pkg/apperror"
	"qr-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles QR payment endpoints.
type PaymentHandler struct {
	payments ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// GenerateQR handles POST /api/v1/payments/qr.
func (h *PaymentHandler) GenerateQR(c *gin.Context) {
	var req dto.PaymentQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	qr, err := h.payments.GeneratePaymentQR(c.Request.Context(), ports.PaymentQRRequest{
		ToWalletID:  req.ToWalletID,
		Amount:      req.Amount,
		Description: req.Description,
		PNGSize:     req.PNGSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewPaymentQRResponse(qr))
}

// Scan handles POST /api/v1/payments/scan.
func (h *PaymentHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.payments.ProcessScannedPayment(c.Request.Context(), req.QR)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewTransactionResponse(txn))
}

// History handles GET /api/v1/payments/history.
func (h *PaymentHandler) History(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	txns, err := h.payments.GetTransactionHistory(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.NewTransactionResponse(&txns[i]))
	}
	response.OK(c, items)
}

// queryLimit reads ?limit=. Zero means the service default.
func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperror.Validation("limit must be a non-negative integer")
	}
	return limit, nil
}
