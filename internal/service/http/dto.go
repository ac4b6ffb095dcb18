package httpsvc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	"github.com/vladislavdragonenkov/orderapp/internal/service/catalog"
	"github.com/vladislavdragonenkov/orderapp/internal/service/order"
)

type createOrderRequest struct {
	CustomerID int64              `json:"customerId" validate:"required,gt=0"`
	Items      []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// orderItemRequest принимает id товара в поле productId; поле id поддерживается для старых клиентов.
type orderItemRequest struct {
	ProductID *int64 `json:"productId"`
	LegacyID  *int64 `json:"id"`
	Quantity  int    `json:"quantity"`
}

func (r orderItemRequest) productID() (int64, bool) {
	switch {
	case r.ProductID != nil:
		return *r.ProductID, true
	case r.LegacyID != nil:
		return *r.LegacyID, true
	default:
		return 0, false
	}
}

func (r createOrderRequest) lines() ([]order.Line, error) {
	lines := make([]order.Line, 0, len(r.Items))
	for i, item := range r.Items {
		id, ok := item.productID()
		if !ok {
			return nil, fmt.Errorf("%w: items[%d].productId: failed on 'required'", domain.ErrValidation, i)
		}
		lines = append(lines, order.Line{ProductID: id, Quantity: item.Quantity})
	}
	return lines, nil
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type customerRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
	Phone int64  `json:"phone" validate:"required,gt=0"`
}

func (r customerRequest) toDomain() domain.Customer {
	return domain.Customer{Name: r.Name, Email: r.Email, Phone: r.Phone}
}

type productRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=100"`
	Price       decimal.Decimal `json:"price"`
	Active      *bool           `json:"active"`
}

func (r productRequest) toInput() catalog.ProductInput {
	return catalog.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Active:      r.Active,
	}
}

// money выводит сумму числом с двумя знаками после запятой.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(domain.MoneyScale))
}

type orderItemResponse struct {
	ID          int64       `json:"id"`
	ProductID   int64       `json:"productId"`
	ProductName string      `json:"productName"`
	Quantity    int         `json:"quantity"`
	UnitPrice   json.Number `json:"unitPrice"`
	Subtotal    json.Number `json:"subtotal"`
}

type orderResponse struct {
	ID            int64               `json:"id"`
	CustomerID    int64               `json:"customerId"`
	CustomerName  string              `json:"customerName"`
	CustomerEmail string              `json:"customerEmail"`
	Items         []orderItemResponse `json:"items"`
	TotalAmount   json.Number         `json:"totalAmount"`
	Status        string              `json:"status"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   money(item.UnitPrice),
			Subtotal:    money(item.Subtotal()),
		})
	}
	return orderResponse{
		ID:            o.ID,
		CustomerID:    o.Customer.ID,
		CustomerName:  o.Customer.Name,
		CustomerEmail: o.Customer.Email,
		Items:         items,
		TotalAmount:   money(o.TotalAmount),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

type timelineEventResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Occurred time.Time `json:"occurred"`
}

type customerResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone int64  `json:"phone"`
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone}
}

type productResponse struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Active      bool        `json:"active"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Active:      p.Active,
	}
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}
