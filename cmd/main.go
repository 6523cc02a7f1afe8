package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"farm-market/internal/api"
	"farm-market/internal/config"
	"farm-market/internal/db"
	"farm-market/internal/logger"
	"farm-market/internal/metrics"
	"farm-market/internal/middleware"
	"farm-market/internal/payment"
	"farm-market/internal/service"
	"farm-market/pkg"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(zapLogger)
	appLogger := pkg.NewZapLogger(zapLogger)

	dbConn, err := db.Connect(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	if err := db.Migrate(dbConn); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	userDB := db.NewUserDB(dbConn)
	ledgerDB := db.NewLedgerDB(dbConn)
	catalogDB := db.NewCatalogDB(dbConn)
	purchaseDB := db.NewPurchaseDB(dbConn)
	payoutDB := db.NewPayoutDB(dbConn)
	redemptionDB := db.NewRedemptionDB(dbConn)
	farmDB := db.NewFarmDB(dbConn)
	fieldDB := db.NewFieldDB(dbConn)
	orderDB := db.NewOrderDB(dbConn)
	rentalDB := db.NewRentalDB(dbConn)
	complaintDB := db.NewComplaintDB(dbConn)

	provider := payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, appLogger)
	ledger := service.NewLedger(ledgerDB, appLogger)

	handlers := &api.Handlers{
		AuthService:      service.NewAuthService(userDB, appLogger, cfg.JWTSecret, cfg.JWTTTL),
		FarmService:      service.NewFarmService(farmDB, appLogger),
		FieldService:     service.NewFieldService(farmDB, fieldDB, appLogger),
		OrderService:     service.NewOrderService(orderDB, fieldDB, ledger, appLogger),
		RentalService:    service.NewRentalService(rentalDB, fieldDB, ledger, appLogger),
		ComplaintService: service.NewComplaintService(complaintDB, orderDB, appLogger),
		CoinService:      service.NewCoinService(ledgerDB, catalogDB, ledger, appLogger),
		PurchaseService: service.NewPurchaseService(purchaseDB, catalogDB, ledger, provider, appLogger,
			cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL),
		PayoutService: service.NewPayoutService(payoutDB, appLogger),
		RedemptionService: service.NewRedemptionService(redemptionDB, payoutDB, catalogDB, ledger, provider, appLogger,
			cfg.MinRedemptionCoins),
		DB:     dbConn,
		Logger: appLogger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, appLogger)
	limiter.StartCleanup(time.Minute, ctx.Done())

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		logger.GinLogger(zapLogger),
		metrics.GinMiddleware(),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)
	api.RegisterHandlers(r, handlers, cfg.JWTSecret, limiter)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Failed to run server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Failed to shut down server", zap.Error(err))
	}
}
