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

// CheckoutHandler handles invoice creation and status polling.
type CheckoutHandler struct {
	invoiceSvc ports.InvoiceService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(invoiceSvc ports.InvoiceService) *CheckoutHandler {
	return &CheckoutHandler{invoiceSvc: invoiceSvc}
}

// Checkout handles POST /v1/checkout.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
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

	amount, err := decimal.NewFromString(req.AmountFiat)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	inv, err := h.invoiceSvc.CreateInvoice(c.Request.Context(), ports.CreateInvoiceRequest{
		MerchantID: merchantID,
		Asset:      domain.Asset(req.Asset),
		AmountFiat: amount,
		ExternalID: req.ExternalID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CheckoutResponse{
		InvoiceID:             inv.ID,
		StatusToken:           inv.StatusToken,
		Asset:                 string(inv.Asset),
		Address:               inv.Address,
		AmountFiat:            inv.AmountFiat.String(),
		AmountCrypto:          inv.AmountCrypto.String(),
		Rate:                  inv.Rate.String(),
		ConfirmationsRequired: inv.ConfirmationsRequired,
		ExpiresAt:             inv.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Status handles GET /v1/status/:invoiceID/:token.
func (h *CheckoutHandler) Status(c *gin.Context) {
	view, err := h.invoiceSvc.ReadStatus(c.Request.Context(), c.Param("invoiceID"), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}
