// Package api exposes the storefront over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safar/storefront/internal/cache"
	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/metrics"
)

// OrderPlacer is satisfied by *checkout.Coordinator.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*checkout.Receipt, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	// DB serves the single-statement collaborator endpoints.
	DB     database.Querier
	Pinger Pinger
	Orders OrderPlacer

	Events   events.Publisher
	Cache    cache.Orders
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	Currency       string
	RequestTimeout time.Duration
}

type Server struct {
	db       database.Querier
	pinger   Pinger
	orders   OrderPlacer
	events   events.Publisher
	cache    cache.Orders
	metrics  *metrics.Metrics
	logger   *slog.Logger
	currency string
}

func NewServer(d Deps) *Server {
	s := &Server{
		db:       d.DB,
		pinger:   d.Pinger,
		orders:   d.Orders,
		events:   d.Events,
		cache:    d.Cache,
		metrics:  d.Metrics,
		logger:   d.Logger,
		currency: d.Currency,
	}
	if s.events == nil {
		s.events = events.Noop{}
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NewRouter builds the full HTTP surface.
func NewRouter(d Deps) http.Handler {
	s := NewServer(d)

	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger, s.metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", s.healthz)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", s.placeOrder)
		r.Get("/orders/{id}", s.getOrder)

		r.Post("/register", s.createMember)
		r.Post("/login", s.login)
		r.Post("/members", s.createMember)
		r.Get("/members/{id}", s.getMember)
		r.Get("/members/{id}/orders", s.listMemberOrders)

		r.Get("/categories", s.listCategories)
		r.Post("/categories", s.createCategory)
		r.Get("/products", s.listProducts)
		r.Post("/products", s.createProduct)
		r.Get("/products/{id}", s.getProduct)
		r.Get("/products/{id}/reviews", s.listReviews)
		r.Post("/products/{id}/restock", s.restockProduct)

		r.Get("/cart", s.listCart)
		r.Post("/cart", s.addToCart)
		r.Put("/cart/{id}", s.updateCartEntry)
		r.Delete("/cart/{id}", s.deleteCartEntry)

		r.Post("/reviews", s.createReview)
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.PingContext(r.Context()); err != nil {
			s.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			respondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
