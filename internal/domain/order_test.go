package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

func money(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", raw, err)
	}
	return d
}

// helper для создания заказа с одной позицией.
func makeOrder(t *testing.T) *domain.Order {
	t.Helper()
	now := time.Now().UTC()
	order := domain.NewOrder(domain.Customer{ID: 1, Name: "Ana", Email: "ana@x.com", Phone: 5550001}, now)
	if err := order.AddItem(domain.Product{ID: 1, Name: "Widget", Price: money(t, "100.00"), Active: true}, 2); err != nil {
		t.Fatalf("add item: %v", err)
	}
	order.AssignID(10)
	return order
}

func TestNewOrder_PendingAndEmpty(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	order := domain.NewOrder(domain.Customer{ID: 3, Name: "Bo", Email: "bo@x.com"}, now)

	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", order.Status)
	}
	if len(order.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(order.Items))
	}
	if !order.TotalAmount.IsZero() {
		t.Fatalf("expected zero total, got %s", order.TotalAmount)
	}
	if order.Customer.ID != 3 || order.Customer.Name != "Bo" || order.Customer.Email != "bo@x.com" {
		t.Fatalf("unexpected customer ref: %+v", order.Customer)
	}
	if !order.CreatedAt.Equal(now) || !order.UpdatedAt.Equal(now) {
		t.Fatal("expected timestamps to be set to now")
	}
}

func TestOrderAddItem_SnapshotsPriceAndTotal(t *testing.T) {
	order := makeOrder(t)

	if !order.TotalAmount.Equal(money(t, "200.00")) {
		t.Fatalf("expected total 200.00, got %s", order.TotalAmount)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if !item.Subtotal().Equal(money(t, "200.00")) {
		t.Fatalf("expected subtotal 200.00, got %s", item.Subtotal())
	}
	if item.OrderID != order.ID {
		t.Fatalf("expected back-link %d, got %d", order.ID, item.OrderID)
	}

	// Изменение цены товара после создания не влияет на позицию.
	product := domain.Product{ID: 1, Name: "Widget", Price: money(t, "100.00"), Active: true}
	product.Price = money(t, "150.00")
	if !order.Items[0].UnitPrice.Equal(money(t, "100.00")) {
		t.Fatalf("unit price must stay 100.00, got %s", order.Items[0].UnitPrice)
	}
}

func TestOrderAddItem_ExactDecimalArithmetic(t *testing.T) {
	order := domain.NewOrder(domain.Customer{ID: 1}, time.Now())
	products := []domain.Product{
		{ID: 1, Name: "a", Price: money(t, "0.10"), Active: true},
		{ID: 2, Name: "b", Price: money(t, "0.20"), Active: true},
		{ID: 3, Name: "c", Price: money(t, "19.99"), Active: true},
	}
	for i, p := range products {
		if err := order.AddItem(p, i+1); err != nil {
			t.Fatalf("add item %d: %v", i, err)
		}
	}

	// 0.10*1 + 0.20*2 + 19.99*3 = 60.47
	if !order.TotalAmount.Equal(money(t, "60.47")) {
		t.Fatalf("expected 60.47, got %s", order.TotalAmount)
	}
}

func TestOrderAddItem_InactiveProduct(t *testing.T) {
	order := domain.NewOrder(domain.Customer{ID: 1}, time.Now())

	err := order.AddItem(domain.Product{ID: 1, Name: "Widget", Price: money(t, "100.00")}, 1)
	if !errors.Is(err, domain.ErrProductInactive) {
		t.Fatalf("expected ErrProductInactive, got %v", err)
	}
	if !domain.IsInvalidState(err) {
		t.Fatal("expected invalid state kind")
	}
	if err.Error() != "product not active: Widget" {
		t.Fatalf("unexpected message: %s", err)
	}
	if len(order.Items) != 0 {
		t.Fatal("inactive product must not be added")
	}
}

func TestOrderAddItem_NonPositiveQuantity(t *testing.T) {
	order := domain.NewOrder(domain.Customer{ID: 1}, time.Now())

	for _, qty := range []int{0, -3} {
		err := order.AddItem(domain.Product{ID: 1, Name: "Widget", Price: money(t, "1.00"), Active: true}, qty)
		if !errors.Is(err, domain.ErrItemQtyInvalid) {
			t.Fatalf("qty=%d: expected ErrItemQtyInvalid, got %v", qty, err)
		}
	}
}

func TestOrderAddItem_StorageBounds(t *testing.T) {
	order := domain.NewOrder(domain.Customer{ID: 1}, time.Now())
	cent := domain.Product{ID: 1, Name: "Bolt", Price: money(t, "0.01"), Active: true}

	if err := order.AddItem(cent, domain.MaxItemQuantity); err != nil {
		t.Fatalf("max quantity must be accepted: %v", err)
	}
	if got := order.TotalAmount.StringFixed(2); got != "21474836.47" {
		t.Fatalf("expected 21474836.47, got %s", got)
	}

	err := order.AddItem(cent, domain.MaxItemQuantity+1)
	if !errors.Is(err, domain.ErrItemQtyTooLarge) || !domain.IsValidation(err) {
		t.Fatalf("expected ErrItemQtyTooLarge validation error, got %v", err)
	}

	luxury := domain.Product{ID: 2, Name: "Yacht", Price: domain.MaxPrice, Active: true}
	err = order.AddItem(luxury, 100)
	if !errors.Is(err, domain.ErrOrderTotalTooLarge) || !domain.IsValidation(err) {
		t.Fatalf("expected ErrOrderTotalTooLarge validation error, got %v", err)
	}
	if len(order.Items) != 1 || order.TotalAmount.StringFixed(2) != "21474836.47" {
		t.Fatalf("rejected item must leave the order unchanged: %+v", order)
	}
}

func TestOrderRemoveItem_RecalculatesTotal(t *testing.T) {
	order := makeOrder(t)
	if err := order.AddItem(domain.Product{ID: 2, Name: "Gadget", Price: money(t, "5.50"), Active: true}, 4); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if !order.TotalAmount.Equal(money(t, "222.00")) {
		t.Fatalf("expected 222.00, got %s", order.TotalAmount)
	}

	removed, err := order.RemoveItem(0)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if removed.ProductID != 1 || removed.OrderID != 0 {
		t.Fatalf("unexpected removed item: %+v", removed)
	}
	if !order.TotalAmount.Equal(money(t, "22.00")) {
		t.Fatalf("expected 22.00, got %s", order.TotalAmount)
	}

	if _, err := order.RemoveItem(5); !errors.Is(err, domain.ErrItemIndexInvalid) {
		t.Fatalf("expected ErrItemIndexInvalid, got %v", err)
	}
}

func TestCalculateTotal_Empty(t *testing.T) {
	if total := domain.CalculateTotal(nil); !total.IsZero() {
		t.Fatalf("expected zero, got %s", total)
	}
}

func TestOrderChangeStatus_PermissiveOverwrite(t *testing.T) {
	order := makeOrder(t)
	later := order.UpdatedAt.Add(time.Minute)

	if err := order.ChangeStatus(domain.OrderStatusDelivered, later, false); err != nil {
		t.Fatalf("permissive change: %v", err)
	}
	if err := order.ChangeStatus(domain.OrderStatusPending, later, false); err != nil {
		t.Fatalf("permissive change back: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", order.Status)
	}
	if !order.UpdatedAt.Equal(later) {
		t.Fatal("expected UpdatedAt to be touched")
	}
}

func TestOrderChangeStatus_Strict(t *testing.T) {
	order := makeOrder(t)
	now := time.Now()

	path := []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	}
	for _, next := range path {
		if err := order.ChangeStatus(next, now, true); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	err := order.ChangeStatus(domain.OrderStatusCancelled, now, true)
	if !errors.Is(err, domain.ErrStatusTransition) {
		t.Fatalf("expected ErrStatusTransition from terminal state, got %v", err)
	}
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("status must stay DELIVERED, got %s", order.Status)
	}
}

func TestOrderChangeStatus_Unknown(t *testing.T) {
	order := makeOrder(t)
	err := order.ChangeStatus(domain.OrderStatus("LOST"), time.Now(), false)
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestParseOrderStatus(t *testing.T) {
	cases := map[string]domain.OrderStatus{
		"PENDING":    domain.OrderStatusPending,
		"confirmed":  domain.OrderStatusConfirmed,
		" Shipped ":  domain.OrderStatusShipped,
		"cancelled":  domain.OrderStatusCancelled,
		"processing": domain.OrderStatusProcessing,
		"DELIVERED":  domain.OrderStatusDelivered,
	}
	for raw, want := range cases {
		got, err := domain.ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}

	if _, err := domain.ParseOrderStatus("canceled"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	if !domain.OrderStatusDelivered.Terminal() || !domain.OrderStatusCancelled.Terminal() {
		t.Fatal("DELIVERED and CANCELLED must be terminal")
	}
	if domain.OrderStatusShipped.Terminal() {
		t.Fatal("SHIPPED must not be terminal")
	}
	for _, s := range []domain.OrderStatus{
		domain.OrderStatusPending, domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing, domain.OrderStatusShipped,
	} {
		if !s.CanTransitionTo(domain.OrderStatusCancelled) {
			t.Fatalf("%s must allow cancellation", s)
		}
	}
}

func TestOrderDeletable(t *testing.T) {
	cases := map[domain.OrderStatus]bool{
		domain.OrderStatusPending:    true,
		domain.OrderStatusCancelled:  true,
		domain.OrderStatusConfirmed:  false,
		domain.OrderStatusProcessing: false,
		domain.OrderStatusShipped:    false,
		domain.OrderStatusDelivered:  false,
	}
	for status, want := range cases {
		order := makeOrder(t)
		order.Status = status
		if got := order.Deletable(); got != want {
			t.Fatalf("%s: expected deletable=%v, got %v", status, want, got)
		}
		err := order.EnsureDeletable()
		if want && err != nil {
			t.Fatalf("%s: unexpected error %v", status, err)
		}
		if !want && !errors.Is(err, domain.ErrOrderNotDeletable) {
			t.Fatalf("%s: expected ErrOrderNotDeletable, got %v", status, err)
		}
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder(t)
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{
			name: "no customer",
			mut:  func(o *domain.Order) { o.Customer.ID = 0 },
			want: domain.ErrCustomerRequired,
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
				o.TotalAmount = decimal.Zero
			},
			want: domain.ErrItemsRequired,
		},
		{
			name: "qty invalid",
			mut:  func(o *domain.Order) { o.Items[0].Quantity = 0 },
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "price invalid",
			mut:  func(o *domain.Order) { o.Items[0].UnitPrice = decimal.NewFromInt(-5) },
			want: domain.ErrItemPriceInvalid,
		},
		{
			name: "amount mismatch",
			mut:  func(o *domain.Order) { o.TotalAmount = decimal.NewFromInt(999) },
			want: domain.ErrAmountMismatch,
		},
		{
			name: "broken back-link",
			mut:  func(o *domain.Order) { o.Items[0].OrderID = 99 },
			want: domain.ErrItemBackLink,
		},
		{
			name: "unknown status",
			mut:  func(o *domain.Order) { o.Status = "LOST" },
			want: domain.ErrInvalidStatus,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder(t)
			tc.mut(order)

			errs := order.ValidateInvariants()
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestTimelineEvents(t *testing.T) {
	order := makeOrder(t)

	created := domain.OrderCreatedEvent(*order)
	if created.Type != domain.TimelineOrderCreated || created.Reason != "PENDING" || created.OrderID != 10 {
		t.Fatalf("unexpected created event: %+v", created)
	}

	if err := order.ChangeStatus(domain.OrderStatusConfirmed, order.CreatedAt.Add(time.Minute), true); err != nil {
		t.Fatalf("change status: %v", err)
	}
	changed := domain.StatusChangedEvent(*order, domain.OrderStatusPending)
	if changed.Type != domain.TimelineOrderStatusChanged || changed.Reason != "PENDING -> CONFIRMED" {
		t.Fatalf("unexpected status event: %+v", changed)
	}
	if !changed.Occurred.Equal(order.UpdatedAt) {
		t.Fatalf("expected occurred %s, got %s", order.UpdatedAt, changed.Occurred)
	}
}
