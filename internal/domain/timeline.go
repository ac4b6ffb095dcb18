package domain

import (
	"fmt"
	"time"
)

// Типы записей истории заказа.
const (
	TimelineOrderCreated       = "OrderCreated"
	TimelineOrderStatusChanged = "OrderStatusChanged"
)

// TimelineEvent — запись истории заказа. Reason хранит начальный статус
// для OrderCreated и переход "FROM -> TO" для OrderStatusChanged.
type TimelineEvent struct {
	OrderID  int64
	Type     string
	Reason   string
	Occurred time.Time
}

// OrderCreatedEvent фиксирует создание заказа.
func OrderCreatedEvent(o Order) TimelineEvent {
	return TimelineEvent{
		OrderID:  o.ID,
		Type:     TimelineOrderCreated,
		Reason:   string(o.Status),
		Occurred: o.CreatedAt,
	}
}

// StatusChangedEvent фиксирует смену статуса с from на текущий статус заказа.
func StatusChangedEvent(o Order, from OrderStatus) TimelineEvent {
	return TimelineEvent{
		OrderID:  o.ID,
		Type:     TimelineOrderStatusChanged,
		Reason:   fmt.Sprintf("%s -> %s", from, o.Status),
		Occurred: o.UpdatedAt,
	}
}
