package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/cafe/internal/notify"
	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/product"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/service/models/statuslog"
	"github.com/corray333/backend-labs/cafe/internal/service/services/ordersvc"
	createorder "github.com/corray333/backend-labs/cafe/internal/transport/http/create_order"
	getorder "github.com/corray333/backend-labs/cafe/internal/transport/http/get_order"
	"github.com/corray333/backend-labs/cafe/internal/transport/http/httperr"
	listorders "github.com/corray333/backend-labs/cafe/internal/transport/http/list_orders"
	listproducts "github.com/corray333/backend-labs/cafe/internal/transport/http/list_products"
	orderevents "github.com/corray333/backend-labs/cafe/internal/transport/http/order_events"
	orderhistory "github.com/corray333/backend-labs/cafe/internal/transport/http/order_history"
	transitionorder "github.com/corray333/backend-labs/cafe/internal/transport/http/transition_order"
	"github.com/corray333/backend-labs/cafe/pkg/http/middleware/metrics"
	"github.com/corray333/backend-labs/cafe/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/cafe/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

type service interface {
	SubmitOrder(ctx context.Context, model ordersvc.SubmitOrderModel) (order.View, error)
	TransitionOrder(ctx context.Context, id int64, next status.Status) (order.View, error)
	GetOrder(ctx context.Context, id int64) (order.View, error)
	ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.View, error)
	OrderHistory(ctx context.Context, id int64) ([]statuslog.Entry, error)
	ListProducts(ctx context.Context) []product.Product
}

type hub interface {
	Subscribe(sink notify.Sink) (*notify.Subscription, error)
	Unsubscribe(sub *notify.Subscription)
}

type HTTPTransport struct {
	server   *http.Server
	router   *chi.Mux
	service  service
	hub      hub
	registry *prometheus.Registry
	wsConfig orderevents.Config
}

// NewHTTPTransport creates the transport. HTTP metrics are registered on registry,
// which is also what /metrics serves.
func NewHTTPTransport(service service, hub hub, registry *prometheus.Registry) *HTTPTransport {
	router := newRouter(registry)
	server := newServer(router)

	return &HTTPTransport{
		server:   server,
		router:   router,
		service:  service,
		hub:      hub,
		registry: registry,
		wsConfig: orderevents.Config{
			PingInterval: viper.GetDuration("ws.ping_interval"),
			WriteTimeout: viper.GetDuration("ws.write_timeout"),
		},
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
// Hijacked websocket connections are closed by the hub.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the router, e.g. for httptest.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.Post("/", h.createOrder)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getOrder)
				r.Put("/status", h.transitionOrder)
				r.Patch("/status", h.transitionOrder)
				r.Get("/history", h.orderHistory)
			})
		})
		r.Get("/products", h.listProducts)
	})

	h.router.Get("/ws/orders", h.orderEvents)
	h.router.Get("/healthz", healthz)
	h.router.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.service)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.service)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.service)
}

func (h *HTTPTransport) transitionOrder(w http.ResponseWriter, r *http.Request) {
	transitionorder.TransitionOrder(w, r, h.service)
}

func (h *HTTPTransport) orderHistory(w http.ResponseWriter, r *http.Request) {
	orderhistory.OrderHistory(w, r, h.service)
}

func (h *HTTPTransport) listProducts(w http.ResponseWriter, r *http.Request) {
	listproducts.ListProducts(w, r, h.service)
}

func (h *HTTPTransport) orderEvents(w http.ResponseWriter, r *http.Request) {
	orderevents.Stream(w, r, h.hub, h.wsConfig)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	httperr.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func newRouter(registry *prometheus.Registry) *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware)
	router.Use(metrics.NewServerMetrics(registry, "api").Middleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: viper.GetDuration("server.http.read_header_timeout"),
	}
}
