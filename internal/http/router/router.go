package router

import (
	"github.com/gin-gonic/gin"

	"github.com/mzansigig/gigwork-backend/internal/config"
	"github.com/mzansigig/gigwork-backend/internal/http/handlers"
	"github.com/mzansigig/gigwork-backend/internal/http/middleware"
	"github.com/mzansigig/gigwork-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	gigHandler *handlers.GigHandler,
	applicationHandler *handlers.ApplicationHandler,
	paymentHandler *handlers.PaymentHandler,
	walletHandler *handlers.WalletHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	adminHandler *handlers.AdminHandler,
	webhookHandler *handlers.WebhookHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	// Gateways authenticate with HMAC signatures, not JWT.
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/paystack", webhookHandler.HandleCardWebhook)
		webhooks.POST("/truzo", webhookHandler.HandleEscrowWebhook)
	}

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// Public routes.
	api.GET("/gigs", gigHandler.ListGigs)

	// Authenticated routes.
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/gigs", gigHandler.CreateGig)
		protected.GET("/gigs/mine", gigHandler.ListMyGigs)
		protected.GET("/gigs/:id", middleware.UUIDValidator("id"), gigHandler.GetGig)
		protected.POST("/gigs/:id/cancel", middleware.UUIDValidator("id"), gigHandler.CancelGig)

		protected.POST("/gigs/:id/applications", middleware.UUIDValidator("id"), applicationHandler.Apply)
		protected.GET("/gigs/:id/applications", middleware.UUIDValidator("id"), applicationHandler.ListByGig)
		protected.GET("/applications/mine", applicationHandler.ListMine)
		protected.GET("/applications/:id", middleware.UUIDValidator("id"), applicationHandler.GetApplication)
		protected.POST("/applications/:id/accept", middleware.UUIDValidator("id"), applicationHandler.Accept)
		protected.POST("/applications/:id/reject", middleware.UUIDValidator("id"), applicationHandler.Reject)
		protected.POST("/applications/:id/withdraw", middleware.UUIDValidator("id"), applicationHandler.Withdraw)
		protected.POST("/applications/:id/counter", middleware.UUIDValidator("id"), applicationHandler.Counter)
		protected.POST("/applications/:id/agree", middleware.UUIDValidator("id"), applicationHandler.Agree)
		protected.POST("/applications/:id/complete", middleware.UUIDValidator("id"), applicationHandler.RequestCompletion)

		protected.POST("/gigs/:id/checkout", middleware.UUIDValidator("id"), paymentHandler.InitiateCheckout)
		protected.POST("/gigs/:id/checkout/escrow", middleware.UUIDValidator("id"), paymentHandler.InitiateEscrowCheckout)
		protected.GET("/gigs/:id/escrow", middleware.UUIDValidator("id"), paymentHandler.GetEscrow)
		protected.POST("/gigs/:id/confirm", middleware.UUIDValidator("id"), paymentHandler.ConfirmCompletion)
		protected.POST("/payments/:id/verify", paymentHandler.VerifyPayment)
		protected.POST("/payments/:id/dispute", middleware.UUIDValidator("id"), paymentHandler.DisputePayment)

		protected.GET("/wallet", walletHandler.GetBalance)
		protected.GET("/wallet/history", walletHandler.ListHistory)

		protected.POST("/withdrawals", withdrawalHandler.CreateWithdrawal)
		protected.GET("/withdrawals", withdrawalHandler.ListWithdrawals)
		protected.GET("/withdrawals/:id", middleware.UUIDValidator("id"), withdrawalHandler.GetWithdrawal)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireAdmin())
	{
		admin.GET("/fee-config", adminHandler.GetFeeConfig)
		admin.PUT("/fee-config", adminHandler.UpdateFeeConfig)
		admin.GET("/fee-config/preview", adminHandler.PreviewFees)

		admin.POST("/withdrawals/:id/approve", middleware.UUIDValidator("id"), adminHandler.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", middleware.UUIDValidator("id"), adminHandler.RejectWithdrawal)

		admin.POST("/escrows/release-due", adminHandler.ReleaseDueEscrows)
		admin.POST("/payments/expire-due", adminHandler.ExpireDuePayments)
	}

	return r
}
