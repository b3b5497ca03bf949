package handler

import (
	"time"

	"crypto-payment-gateway/internal/adapter/http/dto"
	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
	"crypto-payment-gateway/pkg/apperror"
	"crypto-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalHandler handles withdrawal intents.
type WithdrawalHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(ledgerSvc ports.LedgerService) *WithdrawalHandler {
	return &WithdrawalHandler{ledgerSvc: ledgerSvc}
}

// Create handles POST /v1/withdrawals.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid merchant_id"))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	w, err := h.ledgerSvc.RequestWithdrawal(c.Request.Context(), merchantID, domain.Asset(req.Asset), amount, req.Address)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.WithdrawalResponse{
		WithdrawalID: w.ID,
		Asset:        string(w.Asset),
		Amount:       w.Amount.String(),
		Address:      w.Address,
		Status:       w.Status,
		CreatedAt:    w.CreatedAt.UTC().Format(time.RFC3339),
	})
}
