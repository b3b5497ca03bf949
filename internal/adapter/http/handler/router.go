package handler

import (
	"crypto-payment-gateway/internal/adapter/http/middleware"
	redisStore "crypto-payment-gateway/internal/adapter/storage/redis"
	"crypto-payment-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	InvoiceSvc     ports.InvoiceService
	LedgerSvc      ports.LedgerService
	WebhookSvc     ports.WebhookService
	RateSvc        ports.RateService
	ProviderPool   ports.ProviderPool
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/healthz", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/v1")

	checkoutHandler := NewCheckoutHandler(deps.InvoiceSvc)
	v1.POST("/checkout", rl("checkout"), checkoutHandler.Checkout)
	v1.GET("/status/:invoiceID/:token", rl("status"), checkoutHandler.Status)

	withdrawalHandler := NewWithdrawalHandler(deps.LedgerSvc)
	v1.POST("/withdrawals", rl("withdrawals"), withdrawalHandler.Create)

	webhookHandler := NewWebhookHandler(deps.WebhookSvc)
	v1.POST("/webhooks/test", rl("webhooks_test"), webhookHandler.Test)

	systemHandler := NewSystemHandler(deps.ProviderPool, deps.RateSvc)
	system := v1.Group("/system")
	{
		system.GET("/providers", rl("system"), systemHandler.Providers)
		system.GET("/rates", rl("system"), systemHandler.Rates)
		system.GET("/rates/cache", rl("system"), systemHandler.RatesCache)
		system.DELETE("/rates/cache", rl("system"), systemHandler.ClearRatesCache)
	}

	return r
}
