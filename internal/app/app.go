package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/correlation"
	"github.com/corray333/backend-labs/cafe/internal/dal/catalog"
	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/iorderstore"
	"github.com/corray333/backend-labs/cafe/internal/dal/kafka"
	"github.com/corray333/backend-labs/cafe/internal/dal/orderstore/memory"
	"github.com/corray333/backend-labs/cafe/internal/dal/orderstore/pebble"
	pgstore "github.com/corray333/backend-labs/cafe/internal/dal/orderstore/postgres"
	"github.com/corray333/backend-labs/cafe/internal/dal/postgres"
	"github.com/corray333/backend-labs/cafe/internal/dal/rabbitmq"
	outboxrepo "github.com/corray333/backend-labs/cafe/internal/dal/repositories/outbox/postgres"
	productrepo "github.com/corray333/backend-labs/cafe/internal/dal/repositories/product/postgres"
	"github.com/corray333/backend-labs/cafe/internal/notify"
	"github.com/corray333/backend-labs/cafe/internal/otel"
	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
	"github.com/corray333/backend-labs/cafe/internal/service/services/ordersvc"
	grpctransport "github.com/corray333/backend-labs/cafe/internal/transport/grpc"
	httptransport "github.com/corray333/backend-labs/cafe/internal/transport/http"
	outboxworker "github.com/corray333/backend-labs/cafe/internal/worker/outbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
)

const (
	driverPostgres = "postgres"
	driverPebble   = "pebble"
	driverMemory   = "memory"

	brokerRabbitMQ = "rabbitmq"
	brokerKafka    = "kafka"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	httpTransport  *httptransport.HTTPTransport
	grpcTransport  *grpctransport.GRPCTransport
	hub            *notify.Hub
	tokens         *correlation.Registry
	store          iorderstore.OrderStore
	outboxWorker   *outboxworker.Worker
	broker         io.Closer
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{otelController: otelController}

	var (
		postgresClient *postgres.Client
		menu           *catalog.Catalog
	)

	driver := viper.GetString("storage.driver")
	switch driver {
	case driverPostgres:
		postgresClient = postgres.MustNewClient(context.Background())

		if viper.GetBool("events.relay.enabled") {
			a.store = pgstore.NewStore(postgresClient, pgstore.WithOutbox(outbox.Route{
				Exchange:         viper.GetString("events.relay.exchange"),
				RoutingKeyPrefix: viper.GetString("events.relay.routing_key"),
				MaxAttempts:      viper.GetInt("outbox.max_attempts"),
			}))
		} else {
			a.store = pgstore.NewStore(postgresClient)
		}
	case driverPebble:
		a.store = pebble.MustOpen(viper.GetString("storage.pebble.dir"))
	case driverMemory:
		a.store = memory.NewStore()
	default:
		panic(fmt.Sprintf("unknown storage driver %q", driver))
	}
	slog.Info("Order store initialized", "driver", driver)

	source := viper.GetString("catalog.source")
	switch source {
	case driverPostgres:
		if postgresClient == nil {
			panic("catalog.source=postgres requires storage.driver=postgres")
		}

		var err error
		menu, err = catalog.Load(context.Background(), productrepo.NewPostgresProductRepository(postgresClient.Pool()))
		if err != nil {
			panic(err)
		}
	default:
		var err error
		menu, err = catalog.FromConfig()
		if err != nil {
			panic(err)
		}
	}
	slog.Info("Catalog loaded", "source", source, "products", len(menu.List()))

	a.hub = notify.New(notify.Config{
		DeliveryTimeout: viper.GetDuration("hub.delivery_timeout"),
		MaxParallel:     viper.GetInt("hub.max_parallel"),
		Logger:          slog.Default().With("component", "hub"),
		Registerer:      registry,
	})
	a.tokens = correlation.NewRegistry()

	a.orderSvc = ordersvc.MustNewOrderService(
		ordersvc.WithOrderStore(a.store),
		ordersvc.WithCatalog(menu),
		ordersvc.WithHub(a.hub),
		ordersvc.WithTokenRegistry(a.tokens),
	)

	a.httpTransport = httptransport.NewHTTPTransport(a.orderSvc, a.hub, registry)
	a.httpTransport.RegisterRoutes()

	a.grpcTransport = grpctransport.NewGRPCTransport()

	if viper.GetBool("events.relay.enabled") {
		if postgresClient == nil {
			panic("events.relay.enabled requires storage.driver=postgres")
		}
		a.outboxWorker = a.mustNewOutboxWorker(postgresClient)
	}

	return a
}

func (a *App) mustNewOutboxWorker(postgresClient *postgres.Client) *outboxworker.Worker {
	repo := outboxrepo.NewPostgresOutboxRepository(postgresClient.Pool())

	broker := viper.GetString("events.relay.broker")
	switch broker {
	case brokerRabbitMQ:
		client := rabbitmq.MustNewClient()
		if err := client.DeclareExchange(viper.GetString("events.relay.exchange")); err != nil {
			panic(err)
		}
		a.broker = client

		return outboxworker.NewWorker(repo, client, outboxworker.ConfigFromViper())
	case brokerKafka:
		producer := kafka.NewProducer(viper.GetStringSlice("kafka.brokers"), viper.GetString("kafka.topic"))
		a.broker = producer

		return outboxworker.NewWorker(repo, producer, outboxworker.ConfigFromViper())
	default:
		panic(fmt.Sprintf("unknown events.relay.broker %q", broker))
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.httpTransport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting gRPC server")
		if err := a.grpcTransport.Run(); err != nil {
			slog.Error("gRPC server error", "error", err)
		}
	}()

	if a.outboxWorker != nil {
		go func() {
			slog.Info("Starting outbox worker")
			a.outboxWorker.Start(ctx)
		}()
	}

	<-stop
	slog.Info("Shutdown signal received")
	cancel()

	a.gracefulShutdown()
}

// gracefulShutdown stops accepting traffic first, then releases the hub,
// the relay and the store, and flushes traces last.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.grpcTransport.SetServing(false)

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.grpcTransport.Shutdown(ctx); err != nil {
		slog.Error("gRPC server shutdown error", "error", err)
	} else {
		slog.Info("gRPC server stopped gracefully")
	}

	if err := a.hub.Close(); err != nil {
		slog.Error("Hub close error", "error", err)
	} else {
		slog.Info("Hub closed, subscribers disconnected")
	}
	a.tokens.Close()

	if a.outboxWorker != nil {
		a.outboxWorker.Stop()
		slog.Info("Outbox worker stopped gracefully")
	}

	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			slog.Error("Broker connection close error", "error", err)
		} else {
			slog.Info("Broker connection closed gracefully")
		}
	}

	if err := a.store.Close(); err != nil {
		slog.Error("Order store close error", "error", err)
	} else {
		slog.Info("Order store closed gracefully")
	}

	if err := a.otelController.Shutdown(ctx); err != nil {
		slog.Error("Otel trace provider close error", "error", err)
	} else {
		slog.Info("Otel trace provider closed gracefully")
	}

	select {
	case <-ctx.Done():
		slog.Warn("Shutdown timeout exceeded")
	default:
		slog.Info("Application shutdown complete")
	}
}
