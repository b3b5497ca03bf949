package apperror

import (
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

// ---- Assets & Providers (ASSET/PROV/RATE) ----

func ErrUnsupportedAsset(asset string) *AppError {
	return New("ASSET_001", fmt.Sprintf("Unsupported asset: %s", asset), http.StatusBadRequest)
}

func ErrAllProvidersFailed(chain string) *AppError {
	return New("PROV_001", fmt.Sprintf("All providers failed for chain %s", chain), http.StatusServiceUnavailable)
}

func ErrRateUnavailable(asset string) *AppError {
	return New("RATE_001", fmt.Sprintf("Exchange rate not available for %s", asset), http.StatusBadRequest)
}

// ---- Invoices (INV) ----

func ErrInvoiceNotFound() *AppError {
	return New("INV_001", "Invoice not found", http.StatusNotFound)
}

func ErrInvalidToken() *AppError {
	return New("INV_002", "Invalid status token", http.StatusForbidden)
}

func ErrInvalidAmount() *AppError {
	return New("INV_003", "Invalid amount", http.StatusBadRequest)
}

// ---- Merchants (MER) ----

func ErrMerchantNotFound() *AppError {
	return New("MER_001", "Merchant not found", http.StatusNotFound)
}

func ErrMerchantInactive() *AppError {
	return New("MER_002", "Merchant is not active", http.StatusBadRequest)
}

func ErrNoStoreConfigured() *AppError {
	return New("MER_003", "No store configured for merchant", http.StatusBadRequest)
}

func ErrNoWebhookConfigured() *AppError {
	return New("MER_004", "No webhook URL configured for merchant", http.StatusBadRequest)
}

// ---- Balances & Withdrawals (BAL) ----

func ErrInsufficientBalance() *AppError {
	return New("BAL_001", "Insufficient available balance", http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

func ErrRateLimitExceeded() *AppError {
	return New("SYS_002", "Rate limit exceeded", http.StatusTooManyRequests)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns an INV_003-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("INV_003", message, http.StatusBadRequest)
}
