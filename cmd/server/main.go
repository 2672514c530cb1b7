package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crmbilling/internal/auth"
	"crmbilling/internal/config"
	"crmbilling/internal/gateway/kaspi"
	"crmbilling/internal/handler"
	"crmbilling/internal/infrastructure/cache"
	"crmbilling/internal/infrastructure/database"
	"crmbilling/internal/infrastructure/lock"
	"crmbilling/internal/infrastructure/mq"
	"crmbilling/internal/job"
	"crmbilling/internal/repository"
	"crmbilling/internal/service"
	"crmbilling/pkg/idgen"
	"crmbilling/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Mode)
	defer func() { _ = log.Sync() }()

	if err := idgen.Init(1); err != nil {
		log.Fatal("init id generator", zap.Error(err))
	}

	db, err := database.Open(cfg.Database, !cfg.IsRelease(), log)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("migrate database", zap.Error(err))
		}
	}
	uow := repository.NewUnitOfWork(db)

	var chargeLocker service.ChargeLocker
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(cfg.Redis, log)
		if err != nil {
			log.Fatal("connect redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		chargeLocker = lock.NewChargeLocker(rdb)
	} else {
		log.Warn("redis disabled, charges are serialised by row locks only")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("create kafka producer", zap.Error(err))
		}
		defer func() { _ = producer.Close() }()

		sender := job.NewOutboxSender(uow.Repos().Outbox, producer, cfg.Jobs.OutboxInterval, cfg.Jobs.BatchSize, cfg.Jobs.MaxRetryCount, log)
		go sender.Start(ctx)
	} else {
		log.Warn("kafka disabled, outbox messages stay pending")
	}

	if cfg.Kaspi.WebhookSecret == "" && !cfg.Kaspi.RequireWebhookSignature {
		log.Warn("kaspi webhook secret not set, callbacks are accepted unsigned")
	}
	gateway := kaspi.NewClient(cfg.Kaspi, cfg.Billing.GatewayCurrency, log)
	verifier := kaspi.NewVerifier(cfg.Kaspi.WebhookSecret, cfg.Kaspi.RequireWebhookSignature, log)

	settings := service.SettingsFromConfig(cfg)
	payments := service.NewPaymentService(uow, gateway, chargeLocker, settings, log)
	subscriptions := service.NewSubscriptionService(uow, payments, settings, log)
	wallets := service.NewWalletService(uow, settings, log)
	users := service.NewUserService(uow)

	if cfg.Jobs.SweepInterval > 0 {
		go job.NewSubscriptionSweepJob(subscriptions, cfg.Jobs.SweepInterval, log).Start(ctx)
	}
	if cfg.Jobs.ExpiryInterval > 0 {
		go job.NewExpiryCheckJob(subscriptions, cfg.Jobs.ExpiryInterval, log).Start(ctx)
	}
	if cfg.Jobs.ReconcileInterval > 0 {
		go job.NewGatewayReconcileJob(payments, cfg.Jobs.ReconcileInterval, cfg.Jobs.ReconcileAfter, cfg.Jobs.BatchSize, log).Start(ctx)
	}

	if cfg.Auth.DevMode {
		log.Warn("auth dev mode on, X-User-Email is trusted without a token")
	}
	authMiddleware := auth.Middleware(auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), users, cfg.Auth.DevMode, log)

	h := handler.NewHandler(payments, wallets, subscriptions, verifier, log, !cfg.IsRelease())
	router := handler.SetupRouter(h, authMiddleware, handler.RouterConfig{
		Release:      cfg.IsRelease(),
		FrontendURL:  cfg.Server.FrontendURL,
		AdminToken:   cfg.Admin.Token,
		WebhookRPS:   cfg.Server.WebhookRPS,
		WebhookBurst: cfg.Server.WebhookBurst,
	}, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.Server.Port), zap.String("mode", cfg.Server.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
