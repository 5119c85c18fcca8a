package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stagepay/config"
	"stagepay/internal/handler"
	"stagepay/internal/httpserver"
	"stagepay/internal/notify"
	"stagepay/internal/payment"
	"stagepay/internal/repository"
	"stagepay/internal/service/admin"
	"stagepay/internal/service/billing"
	"stagepay/internal/service/dispute"
	"stagepay/internal/service/stagedoc"
	"stagepay/internal/service/manualpay"
	"stagepay/internal/service/query"
	"stagepay/internal/service/stage"
	"stagepay/internal/service/webhook"
	"stagepay/pkg/db"
	"stagepay/pkg/lock"
	"stagepay/pkg/logger"
	"stagepay/pkg/mq"
	"stagepay/pkg/otel"
	"stagepay/pkg/outbox"
	redisclient "stagepay/pkg/redis"
	"stagepay/pkg/util"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting stagepay api...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("port", cfg.Server.Port),
	)

	shutdownOTel, err := otel.Init(cfg.OTel, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOTel()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()
	store := repository.NewPgStore(dbConn, log)

	// MQ Publisher（通知直接发布，项目事件走 outbox）
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Redis: 支付锁 + webhook 去重
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	redisclient.CheckAvailable(context.Background(), rdb, log)
	locker := lock.NewLocker(rdb, log)
	deduper := util.NewDeduper(rdb, cfg.DedupTTL, log)

	gateway := payment.NewStripeGateway(cfg.Stripe, log)
	notifier := notify.NewDispatcher(publisher, log)

	// Services
	escrow := stage.NewEscrow(store, gateway, locker, cfg.Stripe.Currency, cfg.Payment.ChargeTimeout, log)
	stageService := stage.NewService(store, escrow, notifier, log)
	queryService := query.NewService(store)
	docService := stagedoc.NewService(store, log)
	disputeService := dispute.NewService(store, notifier, log)
	manualService := manualpay.NewService(store, notifier, cfg.Stripe.Currency, log)
	billingService := billing.NewService(store, gateway, log)
	webhookService := webhook.NewService(store, gateway, deduper, log)
	adminService := admin.NewService(store, log)
	replayService := outbox.NewReplayService(store.Outbox(), publisher, log).WithMaxRetries(cfg.Outbox.MaxRetries)

	router, err := httpserver.NewRouter(httpserver.Handlers{
		Project: handler.NewProjectHandler(stageService, queryService, docService, log),
		Dispute: handler.NewDisputeHandler(disputeService, log),
		Payment: handler.NewPaymentHandler(manualService, billingService, webhookService, log),
		Admin:   handler.NewAdminHandler(adminService, replayService, log),
	}, cfg.JWT.Secret, dbConn, publisher, log)
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := httpserver.NewServer(cfg.Server.Port, router, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("stagepay api is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down stagepay api gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("stagepay api shutdown complete")
}
