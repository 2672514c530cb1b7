package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Release      bool
	FrontendURL  string
	AdminToken   string
	WebhookRPS   float64
	WebhookBurst int
}

// SetupRouter wires middleware and routes. authMiddleware authenticates every
// /api/v1 route except the Kaspi webhook.
func SetupRouter(h *Handler, authMiddleware gin.HandlerFunc, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidation()

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware(cfg.FrontendURL))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/payments/kaspi/webhook", RateLimitMiddleware(cfg.WebhookRPS, cfg.WebhookBurst), h.KaspiWebhook)

		authed := api.Group("", authMiddleware)

		payments := authed.Group("/payments")
		{
			payments.POST("/subscribe", h.Subscribe)
			payments.POST("/kaspi/create-order", h.CreateKaspiOrder)
			payments.GET("/history", h.PaymentHistory)
			payments.GET("/:id", h.GetPayment)
		}

		wallet := authed.Group("/wallet")
		{
			wallet.GET("", h.GetWallet)
			wallet.POST("/add", h.TopUp)
			wallet.POST("/withdraw", h.Withdraw)
			wallet.PUT("/currency", h.UpdateCurrency)
			wallet.GET("/transactions", h.WalletTransactions)
		}

		subscription := authed.Group("/subscription")
		{
			subscription.GET("", h.GetSubscription)
			subscription.POST("/auto-renew", h.SetAutoRenew)
		}

		admin := api.Group("/admin", AdminTokenMiddleware(cfg.AdminToken))
		{
			admin.POST("/subscriptions/sweep", h.RunSweep)
			admin.POST("/subscriptions/expiry-check", h.RunExpiryCheck)
		}
	}

	return r
}
