package grpctransport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health check name of the order API.
const ServiceName = "cafe.OrderService"

// GRPCTransport exposes the health of the café order API to orchestrators and load balancers.
type GRPCTransport struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
}

// NewGRPCTransport listens on server.grpc.port and registers health and reflection.
// Both names report NOT_SERVING until Run.
func NewGRPCTransport() *GRPCTransport {
	listener, err := net.Listen("tcp", ":"+viper.GetString("server.grpc.port"))
	if err != nil {
		panic(err)
	}

	g := &GRPCTransport{
		server:   newGRPCServer(),
		listener: listener,
		health:   health.NewServer(),
	}
	healthpb.RegisterHealthServer(g.server, g.health)
	reflection.Register(g.server)
	g.SetServing(false)

	return g
}

// Addr returns the listen address.
func (g *GRPCTransport) Addr() net.Addr {
	return g.listener.Addr()
}

// Run marks the order API as serving and blocks serving gRPC.
func (g *GRPCTransport) Run() error {
	g.SetServing(true)
	slog.Info("Starting gRPC server", "address", g.listener.Addr().String())

	return g.server.Serve(g.listener)
}

// SetServing reports the overall and the order service health.
func (g *GRPCTransport) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}

	g.health.SetServingStatus("", st)
	g.health.SetServingStatus(ServiceName, st)
}

// Shutdown reports NOT_SERVING and drains in-flight calls until ctx expires.
func (g *GRPCTransport) Shutdown(ctx context.Context) error {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		g.server.Stop()

		return ctx.Err()
	}
}

// logUnary logs every unary call at debug level and failures at warn.
func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	attrs := []any{"method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start)}
	if err != nil {
		slog.Warn("gRPC call failed", append(attrs, "error", err)...)
	} else {
		slog.Debug("gRPC call served", attrs...)
	}

	return resp, err
}

func newGRPCServer() *grpc.Server {
	keepaliveParams := keepalive.ServerParameters{
		MaxConnectionIdle:     minutes("server.grpc.keepalive.max_connection_idle"),
		MaxConnectionAge:      minutes("server.grpc.keepalive.max_connection_age"),
		MaxConnectionAgeGrace: seconds("server.grpc.keepalive.max_connection_age_grace"),
		Time:                  seconds("server.grpc.keepalive.time"),
		Timeout:               seconds("server.grpc.keepalive.timeout"),
	}

	keepalivePolicy := keepalive.EnforcementPolicy{
		MinTime:             seconds("server.grpc.keepalive.min_time"),
		PermitWithoutStream: viper.GetBool("server.grpc.keepalive.permit_without_stream"),
	}

	return grpc.NewServer(
		grpc.KeepaliveParams(keepaliveParams),
		grpc.KeepaliveEnforcementPolicy(keepalivePolicy),
		grpc.ChainUnaryInterceptor(logUnary),
	)
}

func minutes(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Minute
}

func seconds(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Second
}
