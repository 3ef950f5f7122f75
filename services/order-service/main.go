package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	aws_pkg "github.com/Mahender-77/KTLServer/pkg/aws"
	"github.com/Mahender-77/KTLServer/pkg/tracer"
	"github.com/Mahender-77/KTLServer/services/common/logger"
	commonmw "github.com/Mahender-77/KTLServer/services/common/middleware"
	"github.com/Mahender-77/KTLServer/services/order-service/controllers"
	"github.com/Mahender-77/KTLServer/services/order-service/database"
	"github.com/Mahender-77/KTLServer/services/order-service/kafka"
	"github.com/Mahender-77/KTLServer/services/order-service/rabbitmq"
	"github.com/Mahender-77/KTLServer/services/order-service/repository"
	"github.com/Mahender-77/KTLServer/services/order-service/routes"
	"github.com/Mahender-77/KTLServer/services/order-service/services"
)

const serviceName = "order-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Initialize(os.Getenv("ENV"))
	zap.ReplaceGlobals(logger.Log)

	cfg, err := LoadConfig(ctx)
	if err != nil {
		logger.Log.Fatal("Failed to load configuration", zap.Error(err))
	}

	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		logger.Log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	if cfg.CloudWatchEnabled {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName, true)
		if err != nil {
			logger.Log.Warn("CloudWatch Logs unavailable, logging to stdout only", zap.Error(err))
		} else {
			logger.InitializeWithWriter(cfg.Env, cwLogs)
			zap.ReplaceGlobals(logger.Log)
		}
	}
	log := logger.Log.With(zap.String("service", serviceName))
	defer log.Sync()

	tp, err := tracer.InitTracer(ctx, serviceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	db, err := database.Connect(cfg.Postgres, log)
	if err != nil {
		log.Fatal("Error connecting to database", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	store := repository.NewGormStore(db)

	var idem services.IdempotencyStore
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, checkout idempotency falls back to the database key", zap.Error(err))
		} else {
			defer func(c *redis.Client) { _ = c.Close() }(rdb)
			idem = repository.NewIdempotencyRepository(rdb, cfg.IdempotencyTTL)
		}
	}

	events, closeEvents := newEventPublisher(cfg, awsCfg, log)
	defer closeEvents()

	metricsClient := aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)

	orderService := services.NewOrderService(store, idem, events, metricsClient, log)
	inventoryService := services.NewInventoryService(store, metricsClient, log)
	productService := services.NewProductService(store, log)
	deliveryService := services.NewDeliveryService(store, events, metricsClient, log)

	if err := commonmw.InitFlowControl(map[string]float64{routes.CheckoutResource: cfg.CheckoutQPS}); err != nil {
		log.Warn("Flow control disabled", zap.Error(err))
	}

	var sqsConsumer *aws_pkg.SQSConsumer
	if cfg.CheckoutQueueURL != "" {
		sqsConsumer = aws_pkg.NewSQSConsumer(awsCfg, cfg.CheckoutQueueURL, log)
	}
	checkout := services.NewSQSCheckoutConsumer(sqsConsumer, orderService, metricsClient, log)
	if sqsConsumer != nil {
		go checkout.Start(ctx)
	}
	if cfg.KafkaCheckoutTopic != "" {
		go kafka.NewCheckoutConsumer(cfg.KafkaBrokers, cfg.KafkaCheckoutTopic, cfg.KafkaConsumerGroup, log).
			Start(ctx, checkout.HandleMessage)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(commonmw.RequestLogger(log))
	r.Use(commonmw.MetricsMiddleware(metricsClient, serviceName))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(commonmw.RateLimitMiddleware(600, 50))
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.Register(r, routes.Dependencies{
		Orders:              controllers.NewOrderController(orderService, deliveryService),
		Delivery:            controllers.NewDeliveryController(deliveryService),
		Products:            controllers.NewProductController(productService, inventoryService),
		JWTSecret:           []byte(cfg.JWTSecret),
		TrustGatewayHeaders: cfg.TrustGatewayHeaders,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info("Order Service starting", zap.String("port", cfg.Port), zap.String("event_bus", cfg.EventBus))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}

// newEventPublisher builds the configured event bus. A bus that cannot be reached is logged and
// skipped; events are best-effort.
func newEventPublisher(cfg *Config, awsCfg sdkaws.Config, log *zap.Logger) (services.EventPublisher, func()) {
	noop := func() {}

	switch cfg.EventBus {
	case EventBusSNS:
		if cfg.OrderEventsTopicArn == "" {
			log.Warn("ORDER_EVENTS_TOPIC_ARN not set, order events disabled")
			return nil, noop
		}
		return services.NewSNSEventPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.OrderEventsTopicArn), noop
	case EventBusKafka:
		p := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, log)
		return p, func() { _ = p.Close() }
	case EventBusRabbitMQ:
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, order events disabled", zap.Error(err))
			return nil, noop
		}
		return p, func() { _ = p.Close() }
	default:
		return nil, noop
	}
}
