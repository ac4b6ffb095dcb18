package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// EventType определяет тип события заказа.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderDeleted       EventType = "order.deleted"
)

// AggregateOrder — тип агрегата в outbox для событий заказа.
const AggregateOrder = "order"

// Topics по умолчанию.
const (
	TopicOrderEvents     = "orders.order.events"
	TopicDeadLetterQueue = "orders.dlq"
)

// Заголовки сообщений DLQ.
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderEventType     = "x-event-type"
	HeaderFailedAt      = "x-failed-at"
)

// OrderItemEvent — позиция заказа в событии.
type OrderItemEvent struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// OrderEvent — полезная нагрузка событий заказа.
type OrderEvent struct {
	EventType      EventType        `json:"event_type"`
	OrderID        int64            `json:"order_id"`
	CustomerID     int64            `json:"customer_id"`
	Status         string           `json:"status"`
	PreviousStatus string           `json:"previous_status,omitempty"`
	TotalAmount    string           `json:"total_amount"`
	Items          []OrderItemEvent `json:"items,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// NewOrderEvent собирает событие по состоянию заказа. Позиции включаются только в order.created.
func NewOrderEvent(eventType EventType, order domain.Order, previous domain.OrderStatus) OrderEvent {
	event := OrderEvent{
		EventType:      eventType,
		OrderID:        order.ID,
		CustomerID:     order.Customer.ID,
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		TotalAmount:    order.TotalAmount.StringFixed(domain.MoneyScale),
		Timestamp:      time.Now().UTC(),
	}
	if eventType == EventTypeOrderCreated {
		event.Items = make([]OrderItemEvent, 0, len(order.Items))
		for _, item := range order.Items {
			event.Items = append(event.Items, OrderItemEvent{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice.StringFixed(domain.MoneyScale),
			})
		}
	}
	return event
}
