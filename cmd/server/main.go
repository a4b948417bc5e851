package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/mzansigig/gigwork-backend/internal/config"
	"github.com/mzansigig/gigwork-backend/internal/db"
	"github.com/mzansigig/gigwork-backend/internal/gateway/paystack"
	"github.com/mzansigig/gigwork-backend/internal/gateway/truzo"
	httpHandlers "github.com/mzansigig/gigwork-backend/internal/http/handlers"
	httpRouter "github.com/mzansigig/gigwork-backend/internal/http/router"
	"github.com/mzansigig/gigwork-backend/internal/logger"
	"github.com/mzansigig/gigwork-backend/internal/repository"
	"github.com/mzansigig/gigwork-backend/internal/service"
)

func main() {
	// Context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: failed to load configuration: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Database and migrations.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: failed to connect to the database: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: migrations failed: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	// Fee config cache: shared via redis when configured, in-process otherwise.
	var feeCache service.FeeConfigCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		feeCache = service.NewRedisFeeConfigCache(rdb, 5*time.Minute)
	} else {
		feeCache = service.NewMemoryFeeConfigCache(5 * time.Minute)
	}

	// Payment gateways.
	cardGateway := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	escrowGateway := truzo.NewClient(cfg.TruzoEndpoint, cfg.TruzoAPIKey)

	// Repositories.
	gigRepo := repository.NewGigRepository(dbConn)
	applicationRepo := repository.NewApplicationRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	walletRepo := repository.NewWalletRepository(dbConn)
	withdrawalRepo := repository.NewWithdrawalRepository(dbConn)
	feeConfigRepo := repository.NewFeeConfigRepository(dbConn)
	historyRepo := repository.NewHistoryRepository(dbConn)

	// Services.
	feeConfigService := service.NewFeeConfigService(feeConfigRepo, feeCache)
	gigService := service.NewGigService(gigRepo, feeConfigService)
	applicationService := service.NewApplicationService(applicationRepo, gigRepo, feeConfigService)
	escrowService := service.NewEscrowService(escrowRepo, applicationRepo, gigRepo, feeConfigService, cardGateway, escrowGateway)
	walletService := service.NewWalletService(walletRepo, historyRepo)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo)

	// HTTP handlers.
	gigHandler := httpHandlers.NewGigHandler(gigService)
	applicationHandler := httpHandlers.NewApplicationHandler(applicationService, escrowService)
	paymentHandler := httpHandlers.NewPaymentHandler(escrowService)
	walletHandler := httpHandlers.NewWalletHandler(walletService)
	withdrawalHandler := httpHandlers.NewWithdrawalHandler(withdrawalService)
	adminHandler := httpHandlers.NewAdminHandler(feeConfigService, withdrawalService, escrowService)
	webhookHandler := httpHandlers.NewWebhookHandler(escrowService, cfg.PaystackWebhookSecret, cfg.TruzoWebhookSecret)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(
		cfg,
		gigHandler,
		applicationHandler,
		paymentHandler,
		walletHandler,
		withdrawalHandler,
		adminHandler,
		webhookHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: http server shutdown error: %v", err)
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("server starting")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: http server error: %v", err)
	}
	logger.Log.Info("server stopped")
}

func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		log.Printf("main: failed to close the database connection: %v", err)
	}
}
