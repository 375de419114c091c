package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketplace-service/config"
	"marketplace-service/internal/api"
	"marketplace-service/internal/broker"
	"marketplace-service/internal/gateway"
	"marketplace-service/internal/notify"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"
	"marketplace-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, util.LogFileOptions{
		Path:       cfg.Observ.LogFile,
		MaxSizeMB:  cfg.Observ.LogMaxSizeMB,
		MaxBackups: cfg.Observ.LogMaxBackups,
		MaxAgeDays: cfg.Observ.LogMaxAgeDays,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting marketplace service")

	if missing := cfg.Validate(); len(missing) > 0 {
		if cfg.IsProduction() {
			logger.Fatal("Missing required configuration", zap.String("keys", strings.Join(missing, ",")))
		}
		logger.Warn("Missing configuration, running with insecure defaults", zap.Strings("keys", missing))
	}

	tp, err := util.InitTracer("marketplace-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewPostgres(cfg.Database.URL, store.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	migrateCancel()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

	eventPublisher := broker.NewEventPublisher(producer)

	var mailer notify.Mailer
	if cfg.Rabbit.URL != "" {
		rabbit, err := notify.NewRabbitMailer(cfg.Rabbit.URL, cfg.Rabbit.EmailQueue)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		mailer = rabbit
	} else {
		logger.Warn("RABBITMQ_URL not set, notifications are logged only")
		mailer = notify.NewLogMailer(logger)
	}

	gw := gateway.New(gateway.Options{
		BaseURL:        cfg.Payment.GatewayURL,
		SecretKey:      cfg.Payment.SecretKey,
		WebhookSecret:  cfg.Payment.WebhookSecret,
		Tolerance:      cfg.Payment.Tolerance,
		Currency:       cfg.Payment.Currency,
		RequestTimeout: cfg.Payment.RequestTimeout,
		Sandbox:        cfg.Payment.Sandbox,
	})

	timeouts := service.Timeouts{Query: cfg.Database.QueryTimeout, Tx: cfg.Database.TxTimeout}

	couponService := service.NewCouponService(db, redisClient, cfg.Business.CouponValidateLimit, timeouts)
	settlementService := service.NewSettlementService(db, eventPublisher, redisClient, timeouts)
	paymentService := service.NewPaymentService(db, gw, settlementService, redisClient, timeouts)
	orderService := service.NewOrderService(db, gw, couponService, eventPublisher, redisClient, service.OrderOptions{
		Currency:       cfg.Payment.Currency,
		IdempotencyTTL: cfg.Business.IdempotencyTTL,
		Timeouts:       timeouts,
	})
	vendorService := service.NewVendorService(db, eventPublisher, cfg.Business.DefaultCommissionRate, timeouts)
	catalogService := service.NewCatalogService(db, redisClient, cfg.Redis.CacheTTL, timeouts)
	wishlistService := service.NewWishlistService(db, timeouts)
	reconciliationService := service.NewReconciliationService(db, timeouts)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup, logger)
	notificationWorker := worker.NewNotificationWorker(consumer, mailer, cfg.Rabbit.OpsEmail)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			logger.Error("Notification worker stopped", zap.Error(err))
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Orders:         orderService,
		Payments:       paymentService,
		Coupons:        couponService,
		Vendors:        vendorService,
		Catalog:        catalogService,
		Wishlist:       wishlistService,
		Reconciliation: reconciliationService,
		Database:       db,
	}, api.Options{
		JWTSecret:       cfg.Auth.JWTSecret,
		SignatureHeader: cfg.Payment.SignatureHeader,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := notificationWorker.Stop(); err != nil {
		logger.Warn("Notification worker close failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
