package dto

// CheckoutRequest is the request body for invoice creation.
type CheckoutRequest struct {
	MerchantID string  `json:"merchant_id" binding:"required,uuid"`
	Asset      string  `json:"asset" binding:"required,max=20"`
	AmountFiat string  `json:"amount_fiat" binding:"required,max=32"`
	ExternalID *string `json:"external_id,omitempty" binding:"omitempty,max=100,safe_id"`
}

// CheckoutResponse is the response body for a created invoice.
type CheckoutResponse struct {
	InvoiceID             string `json:"invoice_id"`
	StatusToken           string `json:"status_token"`
	Asset                 string `json:"asset"`
	Address               string `json:"address"`
	AmountFiat            string `json:"amount_fiat"`
	AmountCrypto          string `json:"amount_crypto"`
	Rate                  string `json:"rate"`
	ConfirmationsRequired int    `json:"confirmations_required"`
	ExpiresAt             string `json:"expires_at"`
}

// WithdrawalRequest is the request body for a withdrawal intent.
type WithdrawalRequest struct {
	MerchantID string `json:"merchant_id" binding:"required,uuid"`
	Asset      string `json:"asset" binding:"required,max=20"`
	Amount     string `json:"amount" binding:"required,max=32"`
	Address    string `json:"address" binding:"required,max=100,safe_id"`
}

// WithdrawalResponse is the response body for a recorded withdrawal.
type WithdrawalResponse struct {
	WithdrawalID string `json:"withdrawal_id"`
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
	Address      string `json:"address"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// WebhookTestRequest is the request body for a test webhook delivery.
type WebhookTestRequest struct {
	MerchantID string `json:"merchant_id" binding:"required,uuid"`
}

// WebhookTestResponse acknowledges a queued test delivery.
type WebhookTestResponse struct {
	DeliveryID string `json:"delivery_id"`
}
