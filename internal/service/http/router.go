package httpsvc

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	"github.com/vladislavdragonenkov/orderapp/internal/metrics"
)

// DefaultAllowedOrigins — источники, которым разрешены кросс-доменные запросы по умолчанию.
var DefaultAllowedOrigins = []string{
	"http://localhost:8080",
	"http://localhost:3000",
	"http://127.0.0.1:8080",
	"https://plumaverde.site",
	"https://www.plumaverde.site",
	"http://plumaverde.site",
	"http://www.plumaverde.site",
}

const corsMaxAge = 3600

// CORSOptions возвращает настройки CORS для заданных источников.
// Пустой список заменяется на DefaultAllowedOrigins.
func CORSOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "X-CSRF-TOKEN", "X-API-KEY", IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Content-Type", "Authorization", "X-Total-Count", "X-Page-Number", IdempotencyReplayedHeader},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}
}

// RouterConfig описывает окружение API-роутера.
type RouterConfig struct {
	AllowedOrigins []string
	Metrics        *metrics.HTTPMetrics
	RequestTimeout time.Duration

	// Idempotency включает поддержку Idempotency-Key для POST /api/orders.
	Idempotency        domain.IdempotencyRepository
	IdempotencyTTL     time.Duration
	IdempotencyMetrics *metrics.IdempotencyMetrics
}

// NewRouter собирает chi-роутер со всеми маршрутами /api.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	router := chi.NewMux()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(accessLog(h.logger))
	router.Use(observe(cfg.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(cors.New(CORSOptions(cfg.AllowedOrigins)).Handler)
	if cfg.RequestTimeout > 0 {
		router.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, r, domain.ErrNotFound)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed", Message: "method not allowed"})
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.With(idempotent(cfg.Idempotency, cfg.IdempotencyTTL, cfg.IdempotencyMetrics, h)).Post("/", h.createOrder)
			r.Get("/customer/{customerId}", h.listCustomerOrders)
			r.Get("/{id}", h.getOrder)
			r.Delete("/{id}", h.deleteOrder)
			r.Patch("/{id}/status", h.updateOrderStatus)
			r.Get("/{id}/timeline", h.orderTimeline)
		})
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.listCustomers)
			r.Post("/", h.createCustomer)
			r.Get("/{id}", h.getCustomer)
			r.Put("/{id}", h.updateCustomer)
			r.Delete("/{id}", h.deleteCustomer)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Post("/", h.createProduct)
			r.Get("/search", h.searchProducts)
			r.Get("/{id}", h.getProduct)
			r.Put("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
		})
	})

	return router
}
