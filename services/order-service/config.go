package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	aws_pkg "github.com/Mahender-77/KTLServer/pkg/aws"
	"github.com/Mahender-77/KTLServer/services/order-service/database"
)

const (
	EventBusSNS      = "sns"
	EventBusKafka    = "kafka"
	EventBusRabbitMQ = "rabbitmq"
	EventBusNone     = "none"
)

type Config struct {
	Env                 string
	Port                string
	Postgres            database.PostgresConfig
	RedisURL            string
	IdempotencyTTL      time.Duration
	JWTSecret           string
	TrustGatewayHeaders bool
	AllowedOrigins      string
	EventBus            string
	OrderEventsTopicArn string
	KafkaBrokers        []string
	KafkaOrderTopic     string
	KafkaCheckoutTopic  string
	KafkaConsumerGroup  string
	RabbitMQURL         string
	RabbitMQExchange    string
	CheckoutQueueURL    string
	CheckoutQPS         float64
	OTLPEndpoint        string
	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
	UseSecrets          bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8083")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("TRUST_GATEWAY_HEADERS", false)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("EVENT_BUS", EventBusSNS)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_ORDER_TOPIC", "order-events")
	v.SetDefault("KAFKA_CHECKOUT_TOPIC", "")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "order-service")
	v.SetDefault("RABBITMQ_EXCHANGE", "order-events")
	v.SetDefault("CHECKOUT_QPS", 50)
	v.SetDefault("CLOUDWATCH_ENABLED", false)
	v.SetDefault("CLOUDWATCH_NAMESPACE", "KTLServer/OrderService")
	v.SetDefault("CLOUDWATCH_LOG_GROUP", "/ktlserver/order-service")
	v.SetDefault("AWS_USE_SECRETS", false)
}

// LoadConfig reads .env, an optional config.yaml and the environment, in increasing priority.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ktlserver")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := fromViper(v)

	if cfg.UseSecrets {
		if err := applySecrets(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Env:  v.GetString("ENV"),
		Port: v.GetString("PORT"),
		Postgres: database.PostgresConfig{
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
			TimeZone: v.GetString("POSTGRES_TIMEZONE"),
		},
		RedisURL:            v.GetString("REDIS_URL"),
		IdempotencyTTL:      v.GetDuration("IDEMPOTENCY_TTL"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		TrustGatewayHeaders: v.GetBool("TRUST_GATEWAY_HEADERS"),
		AllowedOrigins:      v.GetString("ALLOWED_ORIGINS"),
		EventBus:            strings.ToLower(v.GetString("EVENT_BUS")),
		OrderEventsTopicArn: v.GetString("ORDER_EVENTS_TOPIC_ARN"),
		KafkaOrderTopic:     v.GetString("KAFKA_ORDER_TOPIC"),
		KafkaCheckoutTopic:  v.GetString("KAFKA_CHECKOUT_TOPIC"),
		KafkaConsumerGroup:  v.GetString("KAFKA_CONSUMER_GROUP"),
		RabbitMQURL:         v.GetString("RABBITMQ_URL"),
		RabbitMQExchange:    v.GetString("RABBITMQ_EXCHANGE"),
		CheckoutQueueURL:    v.GetString("CHECKOUT_QUEUE_URL"),
		CheckoutQPS:         v.GetFloat64("CHECKOUT_QPS"),
		OTLPEndpoint:        v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CloudWatchEnabled:   v.GetBool("CLOUDWATCH_ENABLED"),
		CloudWatchNamespace: v.GetString("CLOUDWATCH_NAMESPACE"),
		CloudWatchLogGroup:  v.GetString("CLOUDWATCH_LOG_GROUP"),
		UseSecrets:          v.GetBool("AWS_USE_SECRETS"),
	}
	for _, b := range strings.Split(v.GetString("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}
	return cfg
}

// applySecrets overrides database credentials and the JWT secret from Secrets Manager.
// Missing secrets keep the environment values.
func applySecrets(ctx context.Context, cfg *Config) error {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config for secrets: %w", err)
	}
	sm := aws_pkg.NewSecretsClient(awsCfg)

	if m, err := sm.GetSecretMap(ctx, "order/DB_CREDENTIALS"); err == nil {
		overrideString(&cfg.Postgres.User, m["POSTGRES_USER"])
		overrideString(&cfg.Postgres.Password, m["POSTGRES_PASSWORD"])
		overrideString(&cfg.Postgres.DBName, m["POSTGRES_DB"])
		overrideString(&cfg.Postgres.Host, m["POSTGRES_HOST"])
		overrideString(&cfg.Postgres.Port, m["POSTGRES_PORT"])
	} else {
		zap.L().Warn("DB credentials secret unavailable, using environment", zap.Error(err))
	}

	if secret, err := sm.GetSecret(ctx, "order/JWT_SECRET"); err == nil {
		overrideString(&cfg.JWTSecret, secret)
	} else {
		zap.L().Warn("JWT secret unavailable in Secrets Manager, using environment", zap.Error(err))
	}
	return nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	p := c.Postgres
	if p.User == "" || p.Password == "" || p.DBName == "" || p.Host == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.EventBus {
	case EventBusSNS, EventBusKafka, EventBusRabbitMQ, EventBusNone:
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}
	if c.EventBus == EventBusKafka && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS=kafka")
	}
	if c.KafkaCheckoutTopic != "" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_CHECKOUT_TOPIC is set")
	}
	if c.EventBus == EventBusRabbitMQ && c.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required when EVENT_BUS=rabbitmq")
	}
	return nil
}
