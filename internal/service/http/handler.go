package httpsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	"github.com/vladislavdragonenkov/orderapp/internal/service/catalog"
	"github.com/vladislavdragonenkov/orderapp/internal/service/order"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// OrderService — сценарии заказов, которые нужны HTTP-слою.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID int64, lines []order.Line) (domain.Order, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	OrderTimeline(ctx context.Context, id int64) ([]domain.TimelineEvent, error)
}

// CustomerService — сценарии клиентов.
type CustomerService interface {
	CreateCustomer(ctx context.Context, in domain.Customer) (domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, in domain.Customer) (domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
}

// CatalogService — сценарии каталога товаров.
type CatalogService interface {
	CreateProduct(ctx context.Context, in catalog.ProductInput) (domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	SearchProducts(ctx context.Context, name string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, in catalog.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Handler обслуживает REST API заказов, клиентов и товаров.
type Handler struct {
	orders    OrderService
	customers CustomerService
	catalog   CatalogService
	logger    *log.Entry
}

// NewHandler создаёт Handler. Если logger nil, используется logger по умолчанию.
func NewHandler(orders OrderService, customers CustomerService, catalog CatalogService, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{
		orders:    orders,
		customers: customers,
		catalog:   catalog,
		logger:    logger,
	}
}

// decodeJSON читает тело запроса и проверяет struct-теги.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %w: empty body", domain.ErrValidation, errMalformedBody)
		}
		return fmt.Errorf("%w: %w: %v", domain.ErrValidation, errMalformedBody, err)
	}
	return domain.ValidateStruct(dst)
}

// pathID разбирает положительный int64 из параметра маршрута.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %w %s=%q", domain.ErrValidation, errInvalidID, name, raw)
	}
	return id, nil
}
