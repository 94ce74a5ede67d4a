package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the AppError code carried by err, or "" if err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_002", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrInvalidMethod(method string) *AppError {
	return New("VAL_003", fmt.Sprintf("Unsupported cash-in method %q", method), http.StatusBadRequest)
}

func ErrInstrumentMismatch() *AppError {
	return New("VAL_004", "Exactly one instrument matching the cash-in method is required", http.StatusBadRequest)
}

// ---- Identity conflicts (ID) ----

func ErrDuplicatePhone() *AppError {
	return New("ID_001", "Phone number already registered", http.StatusConflict)
}

func ErrIDGenerationExhausted() *AppError {
	return New("ID_002", "Could not allocate a unique wallet ID", http.StatusServiceUnavailable)
}

// ---- Authentication (AUTH) ----

func ErrWalletNotFound() *AppError {
	return New("AUTH_001", "Wallet not found", http.StatusNotFound)
}

func ErrInvalidPIN() *AppError {
	return New("AUTH_002", "Invalid PIN", http.StatusUnauthorized)
}

func ErrNotAuthenticated() *AppError {
	return New("AUTH_003", "No active session for this wallet", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_004", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Cryptography (CRYPTO) ----

// ErrCrypto reports malformed key or signature material.
func ErrCrypto(err error) *AppError {
	return Wrap("CRYPTO_001", "Malformed key material", http.StatusBadRequest, err)
}

func ErrInvalidSignature() *AppError {
	return New("CRYPTO_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrMalformedPayload(err error) *AppError {
	return Wrap("CRYPTO_003", "Malformed payment payload", http.StatusBadRequest, err)
}

func ErrNonceReplayed() *AppError {
	return New("CRYPTO_004", "Payment nonce has already been used", http.StatusConflict)
}

func ErrUnknownSender() *AppError {
	return New("CRYPTO_005", "Sender public key cannot be resolved", http.StatusUnprocessableEntity)
}

// ---- State (STATE) ----

func ErrCashInNotFound() *AppError {
	return New("STATE_001", "Cash-in transaction not found", http.StatusNotFound)
}

func ErrAlreadyProcessed() *AppError {
	return New("STATE_002", "Cash-in transaction already processed", http.StatusConflict)
}

func ErrExpired() *AppError {
	return New("STATE_003", "Cash-in transaction expired", http.StatusGone)
}

// ErrVoucherInvalid carries one of the voucher validation reasons
// ("not found", "already used", "expired", "amount mismatch").
func ErrVoucherInvalid(reason string) *AppError {
	return New("STATE_004", reason, http.StatusUnprocessableEntity)
}

func ErrSettlementFailed(err error) *AppError {
	return Wrap("STATE_005", "Settlement channel rejected the cash-in", http.StatusUnprocessableEntity, err)
}

func ErrSettlementTimeout() *AppError {
	return New("STATE_006", "Settlement channel timed out", http.StatusGatewayTimeout)
}

// ---- Funds (PAY) ----

func ErrInsufficientBalance() *AppError {
	return New("PAY_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrStorage(err error) *AppError {
	return Wrap("SYS_001", "Persistent store failure", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_002", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_003 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_003", "Internal server error", http.StatusInternalServerError, err)
}
