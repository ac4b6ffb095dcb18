package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ожидает подтверждения.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed — заказ подтверждён.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusProcessing — заказ собирается.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered — заказ получен клиентом. Терминальный статус.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён. Терминальный статус.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// allowedTransitions — таблица переходов для строгого режима.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

// ParseOrderStatus разбирает статус без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// Valid сообщает, известен ли статус.
func (s OrderStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(allowedTransitions[s]) == 0
}

// CanTransitionTo проверяет переход по таблице.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID int64
	// OrderID — обратная ссылка на заказ, её поддерживает сам агрегат.
	OrderID   int64
	ProductID int64
	// ProductName заполняется при чтении и нужен только для отображения.
	ProductName string
	Quantity    int
	// UnitPrice — цена товара на момент создания заказа.
	UnitPrice decimal.Decimal
}

// Subtotal возвращает quantity * unitPrice.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          int64
	Customer    CustomerRef
	Items       []OrderItem
	TotalAmount decimal.Decimal
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOrder создаёт пустой заказ клиента в статусе PENDING.
func NewOrder(customer Customer, now time.Time) *Order {
	return &Order{
		Customer:    customer.Ref(),
		TotalAmount: decimal.Zero,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CalculateTotal суммирует подытоги позиций. Для пустого списка возвращает ноль.
func CalculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// MaxItemQuantity — верхняя граница количества в позиции (колонка INT).
const MaxItemQuantity = math.MaxInt32

// CheckQuantity проверяет, что количество попадает в (0, MaxItemQuantity].
func CheckQuantity(quantity int) error {
	switch {
	case quantity <= 0:
		return fmt.Errorf("%w: got %d", ErrItemQtyInvalid, quantity)
	case quantity > MaxItemQuantity:
		return fmt.Errorf("%w: %d > %d", ErrItemQtyTooLarge, quantity, MaxItemQuantity)
	}
	return nil
}

// AddItem добавляет товар в заказ, фиксируя его текущую цену.
// Позиция не добавляется, если сумма заказа превысит MaxOrderTotal.
func (o *Order) AddItem(product Product, quantity int) error {
	if err := CheckQuantity(quantity); err != nil {
		return fmt.Errorf("product %d: %w", product.ID, err)
	}
	if !product.Active {
		return fmt.Errorf("%w: %s", ErrProductInactive, product.Name)
	}

	item := OrderItem{
		OrderID:     o.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.Price,
	}
	if total := o.TotalAmount.Add(item.Subtotal()); total.GreaterThan(MaxOrderTotal) {
		return fmt.Errorf("%w: %s > %s", ErrOrderTotalTooLarge, total.StringFixed(MoneyScale), MaxOrderTotal.StringFixed(MoneyScale))
	}

	o.Items = append(o.Items, item)
	o.recalculate()
	return nil
}

// RemoveItem удаляет позицию по индексу и возвращает её без обратной ссылки.
func (o *Order) RemoveItem(index int) (OrderItem, error) {
	if index < 0 || index >= len(o.Items) {
		return OrderItem{}, fmt.Errorf("%w: %d", ErrItemIndexInvalid, index)
	}

	removed := o.Items[index]
	removed.OrderID = 0
	o.Items = append(o.Items[:index:index], o.Items[index+1:]...)
	o.recalculate()
	return removed, nil
}

// AssignID фиксирует идентификатор заказа и обновляет обратные ссылки позиций.
func (o *Order) AssignID(id int64) {
	o.ID = id
	for i := range o.Items {
		o.Items[i].OrderID = id
	}
}

// ChangeStatus переводит заказ в новый статус.
// В строгом режиме переход проверяется по таблице, иначе статус перезаписывается.
func (o *Order) ChangeStatus(next OrderStatus, now time.Time, strict bool) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(next))
	}
	if strict && !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrStatusTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// Deletable сообщает, можно ли удалить заказ (только PENDING и CANCELLED).
func (o *Order) Deletable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusCancelled
}

// EnsureDeletable возвращает ErrOrderNotDeletable для защищённых статусов.
func (o *Order) EnsureDeletable() error {
	if o.Deletable() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOrderNotDeletable, o.Status)
}

func (o *Order) recalculate() {
	o.TotalAmount = CalculateTotal(o.Items)
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.Customer.ID == 0 {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}

	for _, item := range o.Items {
		switch {
		case item.Quantity <= 0:
			errs = append(errs, ErrItemQtyInvalid)
		case item.Quantity > MaxItemQuantity:
			errs = append(errs, ErrItemQtyTooLarge)
		}
		if !item.UnitPrice.IsPositive() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.OrderID != o.ID {
			errs = append(errs, ErrItemBackLink)
		}
	}
	// Сверяем сумму заказа с суммой позиций: quantity * unitPrice.
	if !CalculateTotal(o.Items).Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
