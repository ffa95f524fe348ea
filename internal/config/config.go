package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/corray333/backend-labs/cafe/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CAFE_STORAGE_DRIVER for storage.driver.
const EnvPrefix = "CAFE"

func MustInit() {
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	SetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/cafe-svc")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic("error while reading config file: " + err.Error())
		}
	}

	SetupLogger()
}

// SetDefaults registers a default for every configuration key.
func SetDefaults() {
	viper.SetDefault("log.level", "info")

	viper.SetDefault("server.http.port", "8080")
	viper.SetDefault("server.http.read_header_timeout", 10*time.Second)
	viper.SetDefault("server.http.cors.allowed_origins", []string{"*"})
	viper.SetDefault("server.http.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"})
	viper.SetDefault("server.http.cors.allowed_headers", []string{"Accept", "Content-Type", "X-Request-Id"})
	viper.SetDefault("server.http.cors.exposed_headers", []string{"X-Request-Id"})
	viper.SetDefault("server.http.cors.allow_credentials", false)
	viper.SetDefault("server.http.cors.max_age", 300)

	viper.SetDefault("server.grpc.port", "9090")
	viper.SetDefault("server.grpc.keepalive.max_connection_idle", 15)
	viper.SetDefault("server.grpc.keepalive.max_connection_age", 30)
	viper.SetDefault("server.grpc.keepalive.max_connection_age_grace", 5)
	viper.SetDefault("server.grpc.keepalive.time", 5)
	viper.SetDefault("server.grpc.keepalive.timeout", 1)
	viper.SetDefault("server.grpc.keepalive.min_time", 5)
	viper.SetDefault("server.grpc.keepalive.permit_without_stream", true)

	viper.SetDefault("storage.driver", "memory")
	viper.SetDefault("storage.pebble.dir", "./data/orders")

	viper.SetDefault("catalog.source", "config")
	viper.SetDefault("catalog.products", []map[string]any{
		{"id": 1, "name": "Americano", "price": "25.00"},
		{"id": 2, "name": "Cappuccino", "price": "35.00"},
		{"id": 3, "name": "Latte", "price": "38.00"},
		{"id": 4, "name": "Espresso", "price": "20.00"},
		{"id": 5, "name": "Hot Chocolate", "price": "32.00"},
		{"id": 6, "name": "Croissant", "price": "28.00"},
		{"id": 7, "name": "Blueberry Muffin", "price": "30.00", "available": false},
	})

	viper.SetDefault("hub.delivery_timeout", 2*time.Second)
	viper.SetDefault("hub.max_parallel", 32)
	viper.SetDefault("ws.ping_interval", 30*time.Second)
	viper.SetDefault("ws.write_timeout", 5*time.Second)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.jaeger_endpoint", "http://jaeger:14268/api/traces")

	viper.SetDefault("events.relay.enabled", false)
	viper.SetDefault("events.relay.broker", "rabbitmq")
	viper.SetDefault("events.relay.exchange", "cafe.events")
	viper.SetDefault("events.relay.routing_key", "cafe.order")

	viper.SetDefault("outbox.poll_interval_seconds", 5)
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.retry_interval_seconds", 30)
	viper.SetDefault("outbox.max_attempts", 10)

	viper.SetDefault("rabbitmq.host", "rabbitmq")
	viper.SetDefault("rabbitmq.port", 5672)

	viper.SetDefault("kafka.brokers", []string{"kafka:9092"})
	viper.SetDefault("kafka.topic", "cafe.order-events")
}

func SetupLogger() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}

	handler := logger.NewHandler(&slog.HandlerOptions{Level: level})
	log := slog.New(handler)
	slog.SetDefault(log)
}
