package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stagepay/config"
	mqcontracts "stagepay/contracts/mq"
	"stagepay/internal/httpserver"
	"stagepay/internal/mqhandler"
	"stagepay/internal/payment"
	"stagepay/internal/repository"
	"stagepay/internal/service/reconcile"
	pkgconfig "stagepay/pkg/config"
	"stagepay/pkg/db"
	"stagepay/pkg/lock"
	"stagepay/pkg/logger"
	"stagepay/pkg/mq"
	"stagepay/pkg/otel"
	"stagepay/pkg/outbox"
	redisclient "stagepay/pkg/redis"
	"stagepay/pkg/util"
)

const notificationQueue = "notification.created.q"

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting stagepay worker...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
	)

	shutdownOTel, err := otel.Init(cfg.OTel, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOTel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	store := repository.NewPgStore(dbConn, log)

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	redisclient.CheckAvailable(context.Background(), rdb, log)
	deduper := util.NewDeduper(rdb, cfg.DedupTTL, log)
	locker := lock.NewLocker(rdb, log)

	// Outbox Dispatcher
	dispatcher := outbox.NewDispatcher(store.Outbox(), publisher, log).
		WithMaxRetries(cfg.Outbox.MaxRetries).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize)
	go dispatcher.Start(ctx)

	// MQ Consumer for notification.created
	if err := publisher.EnsureDLQ(mqcontracts.RoutingKeyNotificationCreated); err != nil {
		log.Fatal("Failed to declare DLQ", zap.Error(err))
	}
	consumer, err := mq.NewConsumer(cfg.MQ.URL, notificationQueue, mqcontracts.RoutingKeyNotificationCreated, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()

	notificationHandler := mqhandler.NewNotificationCreatedHandler(
		repository.NewNotificationRepository(dbConn, log), deduper, log)
	consumer.WithDeadLetter(publisher).SetHandler(notificationHandler.Handle)

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("Notification consumer failed", zap.Error(err))
		}
	}()

	// Reconciliation
	reconciler := reconcile.NewService(store, payment.NewStripeGateway(cfg.Stripe, log), locker, reconcile.Config{
		Schedule:    cfg.Reconcile.Schedule,
		MinAge:      cfg.Reconcile.MinAge,
		OrphanAfter: cfg.Reconcile.OrphanAfter,
		BatchSize:   cfg.Reconcile.BatchSize,
	}, log)
	if err := reconciler.Start(ctx); err != nil {
		log.Fatal("Failed to schedule reconciliation", zap.Error(err))
	}

	// HTTP Server (health + metrics)
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "consumer_connected": consumer.IsConnected()})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	srv := httpserver.NewServer(pkgconfig.GetEnv("WORKER_PORT", ":8081"), engine, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("stagepay worker is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down stagepay worker gracefully...")

	consumer.Stop()
	reconciler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("stagepay worker shutdown complete")
}
