package order_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	"github.com/vladislavdragonenkov/orderapp/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderapp/internal/metrics"
	"github.com/vladislavdragonenkov/orderapp/internal/service/order"
	"github.com/vladislavdragonenkov/orderapp/internal/storage/memory"
)

type env struct {
	store    *memory.Store
	svc      *order.Service
	customer domain.Customer
	widget   domain.Product
	retired  domain.Product
	clock    *fakeClock
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newEnv(t *testing.T, options ...order.Option) env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()

	customer, err := repos.Customers.Create(ctx, domain.Customer{Name: "Ana", Email: "ana@x.com", Phone: 5550001})
	require.NoError(t, err)
	widget, err := repos.Products.Create(ctx, domain.Product{Name: "Widget", Price: decimal.RequireFromString("100.00"), Active: true})
	require.NoError(t, err)
	retired, err := repos.Products.Create(ctx, domain.Product{Name: "Old", Price: decimal.RequireFromString("5.00"), Active: false})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	options = append([]order.Option{
		order.WithClock(clock.Now),
		order.WithMetrics(metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry())),
	}, options...)

	return env{
		store:    store,
		svc:      order.NewService(store, options...),
		customer: customer,
		widget:   widget,
		retired:  retired,
		clock:    clock,
	}
}

func (e env) create(t *testing.T, qty int) domain.Order {
	t.Helper()
	created, err := e.svc.CreateOrder(context.Background(), e.customer.ID, []order.Line{{ProductID: e.widget.ID, Quantity: qty}})
	require.NoError(t, err)
	return created
}

func TestCreateOrder_SnapshotsPriceAndTotal(t *testing.T) {
	e := newEnv(t)

	created := e.create(t, 2)

	assert.NotZero(t, created.ID)
	assert.Equal(t, domain.OrderStatusPending, created.Status)
	assert.Equal(t, "200.00", created.TotalAmount.StringFixed(2))
	assert.Equal(t, "Ana", created.Customer.Name)
	assert.Equal(t, "ana@x.com", created.Customer.Email)
	require.Len(t, created.Items, 1)
	assert.Equal(t, "Widget", created.Items[0].ProductName)
	assert.True(t, created.Items[0].UnitPrice.Equal(decimal.RequireFromString("100.00")))
	assert.Empty(t, created.ValidateInvariants())

	// Изменение цены товара не влияет на существующий заказ.
	repos := e.store.Repositories()
	e.widget.Price = decimal.RequireFromString("150.00")
	_, err := repos.Products.Update(context.Background(), e.widget)
	require.NoError(t, err)

	got, err := e.svc.GetOrder(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "200.00", got.TotalAmount.StringFixed(2))
}

func TestCreateOrder_InactiveProductLeavesNoOrder(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.CreateOrder(context.Background(), e.customer.ID, []order.Line{
		{ProductID: e.widget.ID, Quantity: 1},
		{ProductID: e.retired.ID, Quantity: 1},
	})

	require.ErrorIs(t, err, domain.ErrProductInactive)
	assert.True(t, domain.IsInvalidState(err))
	assert.Contains(t, err.Error(), "product not active: Old")

	orders, err := e.svc.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrder_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pricey, err := e.store.Repositories().Products.Create(ctx, domain.Product{Name: "Yacht", Price: domain.MaxPrice, Active: true})
	require.NoError(t, err)

	cases := map[string]struct {
		customerID int64
		lines      []order.Line
		target     error
		kind       func(error) bool
	}{
		"no items":         {e.customer.ID, nil, domain.ErrItemsRequired, domain.IsValidation},
		"zero quantity":    {e.customer.ID, []order.Line{{ProductID: e.widget.ID, Quantity: 0}}, domain.ErrItemQtyInvalid, domain.IsValidation},
		"negative qty":     {e.customer.ID, []order.Line{{ProductID: e.widget.ID, Quantity: -2}}, domain.ErrItemQtyInvalid, domain.IsValidation},
		"huge quantity":    {e.customer.ID, []order.Line{{ProductID: e.widget.ID, Quantity: math.MaxInt64}}, domain.ErrItemQtyTooLarge, domain.IsValidation},
		"total overflow":   {e.customer.ID, []order.Line{{ProductID: pricey.ID, Quantity: 1000}}, domain.ErrOrderTotalTooLarge, domain.IsValidation},
		"unknown customer": {999, []order.Line{{ProductID: e.widget.ID, Quantity: 1}}, domain.ErrCustomerNotFound, domain.IsNotFound},
		"unknown product":  {e.customer.ID, []order.Line{{ProductID: 999, Quantity: 1}}, domain.ErrProductNotFound, domain.IsNotFound},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.svc.CreateOrder(ctx, tc.customerID, tc.lines)
			require.ErrorIs(t, err, tc.target)
			assert.True(t, tc.kind(err))
		})
	}

	orders, err := e.svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestListOrdersByCustomer_NewestFirst(t *testing.T) {
	e := newEnv(t)
	first := e.create(t, 1)
	second := e.create(t, 2)

	list, err := e.svc.ListOrdersByCustomer(context.Background(), e.customer.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	empty, err := e.svc.ListOrdersByCustomer(context.Background(), 12345)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateOrderStatus_PermissiveByDefault(t *testing.T) {
	e := newEnv(t)
	created := e.create(t, 1)

	updated, err := e.svc.UpdateOrderStatus(context.Background(), created.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, updated.Status)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	// Из терминального статуса тоже можно выйти без строгого режима.
	updated, err = e.svc.UpdateOrderStatus(context.Background(), created.ID, domain.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, updated.Status)

	_, err = e.svc.UpdateOrderStatus(context.Background(), 999, domain.OrderStatusShipped)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = e.svc.UpdateOrderStatus(context.Background(), created.ID, domain.OrderStatus("LOST"))
	require.True(t, domain.IsValidation(err))
}

func TestUpdateOrderStatus_Strict(t *testing.T) {
	e := newEnv(t, order.WithStrictTransitions(true))
	created := e.create(t, 1)
	ctx := context.Background()

	_, err := e.svc.UpdateOrderStatus(ctx, created.ID, domain.OrderStatusShipped)
	require.ErrorIs(t, err, domain.ErrStatusTransition)
	assert.True(t, domain.IsInvalidState(err))

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		_, err := e.svc.UpdateOrderStatus(ctx, created.ID, next)
		require.NoError(t, err, "transition to %s", next)
	}

	_, err = e.svc.UpdateOrderStatus(ctx, created.ID, domain.OrderStatusCancelled)
	require.ErrorIs(t, err, domain.ErrStatusTransition)

	got, err := e.svc.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, got.Status)
}

func TestDeleteOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pending := e.create(t, 1)
	require.NoError(t, e.svc.DeleteOrder(ctx, pending.ID))
	_, err := e.svc.GetOrder(ctx, pending.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	shipped := e.create(t, 1)
	_, err = e.svc.UpdateOrderStatus(ctx, shipped.ID, domain.OrderStatusShipped)
	require.NoError(t, err)

	err = e.svc.DeleteOrder(ctx, shipped.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotDeletable)
	assert.True(t, domain.IsInvalidState(err))
	_, err = e.svc.GetOrder(ctx, shipped.ID)
	require.NoError(t, err)

	cancelled := e.create(t, 1)
	_, err = e.svc.UpdateOrderStatus(ctx, cancelled.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	require.NoError(t, e.svc.DeleteOrder(ctx, cancelled.ID))

	require.ErrorIs(t, e.svc.DeleteOrder(ctx, 999), domain.ErrOrderNotFound)
}

func TestOrderTimeline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created := e.create(t, 1)

	_, err := e.svc.UpdateOrderStatus(ctx, created.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)

	events, err := e.svc.OrderTimeline(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.TimelineOrderCreated, events[0].Type)
	assert.Equal(t, domain.TimelineOrderStatusChanged, events[1].Type)
	assert.Equal(t, "PENDING -> CONFIRMED", events[1].Reason)

	_, err = e.svc.OrderTimeline(ctx, 999)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestEvents_EnqueuedOnlyWhenEnabled(t *testing.T) {
	ctx := context.Background()

	disabled := newEnv(t)
	disabled.create(t, 1)
	stats, err := disabled.store.Repositories().Outbox.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)

	enabled := newEnv(t, order.WithEvents(true))
	created := enabled.create(t, 2)
	_, err = enabled.svc.UpdateOrderStatus(ctx, created.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	require.NoError(t, enabled.svc.DeleteOrder(ctx, created.ID))

	pending, err := enabled.store.Repositories().Outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, string(kafka.EventTypeOrderCreated), pending[0].EventType)
	assert.Equal(t, string(kafka.EventTypeOrderStatusChanged), pending[1].EventType)
	assert.Equal(t, string(kafka.EventTypeOrderDeleted), pending[2].EventType)

	var event kafka.OrderEvent
	require.NoError(t, json.Unmarshal(pending[0].Payload, &event))
	assert.Equal(t, created.ID, event.OrderID)
	assert.Equal(t, "200.00", event.TotalAmount)
	require.Len(t, event.Items, 1)

	require.NoError(t, json.Unmarshal(pending[1].Payload, &event))
	assert.Equal(t, "PENDING", event.PreviousStatus)
	assert.Equal(t, "CANCELLED", event.Status)
}

func TestCreateOrder_RollsBackWhenOutboxFails(t *testing.T) {
	e := newEnv(t, order.WithEvents(true))
	storage := &failingOutboxStorage{Store: e.store}
	svc := order.NewService(storage, order.WithEvents(true))

	_, err := svc.CreateOrder(context.Background(), e.customer.ID, []order.Line{{ProductID: e.widget.ID, Quantity: 1}})
	require.Error(t, err)
	assert.False(t, domain.IsValidation(err) || domain.IsNotFound(err) || domain.IsInvalidState(err))

	orders, err := e.svc.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// failingOutboxStorage подменяет outbox внутри транзакции на отказывающий.
type failingOutboxStorage struct {
	*memory.Store
}

func (s *failingOutboxStorage) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		tx.Outbox = failingOutbox{tx.Outbox}
		return fn(ctx, tx)
	})
}

type failingOutbox struct {
	domain.OutboxRepository
}

func (failingOutbox) Enqueue(context.Context, domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, errors.New("outbox unavailable")
}
