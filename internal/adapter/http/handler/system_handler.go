package handler

import (
	"net/http"

	"crypto-payment-gateway/internal/core/domain"
	"crypto-payment-gateway/internal/core/ports"
	"crypto-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// SystemHandler exposes operational introspection endpoints.
type SystemHandler struct {
	pool    ports.ProviderPool
	rateSvc ports.RateService
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(pool ports.ProviderPool, rateSvc ports.RateService) *SystemHandler {
	return &SystemHandler{pool: pool, rateSvc: rateSvc}
}

// Providers handles GET /v1/system/providers. It returns the health
// classification of every registered (chain, backend) pair.
func (h *SystemHandler) Providers(c *gin.Context) {
	response.OK(c, gin.H{"providers": h.pool.Health()})
}

// Rates handles GET /v1/system/rates. It quotes every supported asset
// through the cache; a cold cache triggers live fetches.
func (h *SystemHandler) Rates(c *gin.Context) {
	rates := make(map[string]string, len(domain.SupportedAssets))
	for _, asset := range domain.SupportedAssets {
		rate, err := h.rateSvc.GetRate(c.Request.Context(), asset)
		if err != nil {
			response.Error(c, err)
			return
		}
		rates[string(asset)] = rate.String()
	}
	response.OK(c, gin.H{"currency": "USD", "rates": rates})
}

// RatesCache handles GET /v1/system/rates/cache.
func (h *SystemHandler) RatesCache(c *gin.Context) {
	response.OK(c, h.rateSvc.Stats())
}

// ClearRatesCache handles DELETE /v1/system/rates/cache.
func (h *SystemHandler) ClearRatesCache(c *gin.Context) {
	h.rateSvc.Clear()
	c.Status(http.StatusNoContent)
}

// HealthCheck handles GET /healthz — deep health check verifying all
// infrastructure dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Check(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
