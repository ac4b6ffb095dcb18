package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	"github.com/vladislavdragonenkov/orderapp/internal/storage/memory"
)

type fixture struct {
	store    *memory.Store
	repos    domain.Repositories
	customer domain.Customer
	product  domain.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()

	customer, err := repos.Customers.Create(ctx, domain.Customer{Name: "Ana", Email: "ana@x.com", Phone: 5550001})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	product, err := repos.Products.Create(ctx, domain.Product{Name: "Widget", Price: decimal.RequireFromString("100.00"), Active: true})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return fixture{store: store, repos: repos, customer: customer, product: product}
}

func (f fixture) newOrder(t *testing.T, createdAt time.Time, qty int) *domain.Order {
	t.Helper()
	order := domain.NewOrder(f.customer, createdAt)
	if err := order.AddItem(f.product, qty); err != nil {
		t.Fatalf("add item: %v", err)
	}
	return order
}

func TestOrderRepository_CreateGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t, time.Now().UTC(), 2)

	if err := f.repos.Orders.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if order.ID == 0 || order.Items[0].ID == 0 {
		t.Fatalf("expected ids to be assigned: %+v", order)
	}
	if order.Items[0].OrderID != order.ID {
		t.Fatal("expected item back-link to be updated")
	}

	stored, err := f.repos.Orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Customer.Name != "Ana" || stored.Customer.Email != "ana@x.com" {
		t.Fatalf("expected resolved customer, got %+v", stored.Customer)
	}
	if stored.Items[0].ProductName != "Widget" {
		t.Fatalf("expected resolved product name, got %q", stored.Items[0].ProductName)
	}
	if !stored.TotalAmount.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("unexpected total: %s", stored.TotalAmount)
	}
	if errs := stored.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("stored order violates invariants: %v", errs)
	}
}

func TestOrderRepository_GetMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.repos.Orders.Get(context.Background(), 404)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_CreateRejectsUnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.newOrder(t, time.Now(), 1)
	order.Customer.ID = 999
	if err := f.repos.Orders.Create(ctx, order); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}

	order = f.newOrder(t, time.Now(), 1)
	order.Items[0].ProductID = 999
	if err := f.repos.Orders.Create(ctx, order); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestOrderRepository_ListByCustomerNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	older := f.newOrder(t, base, 1)
	newer := f.newOrder(t, base.Add(time.Hour), 1)
	sameTime := f.newOrder(t, base.Add(time.Hour), 3)
	for _, o := range []*domain.Order{older, newer, sameTime} {
		if err := f.repos.Orders.Create(ctx, o); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	orders, err := f.repos.Orders.ListByCustomer(ctx, f.customer.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	if orders[0].ID != sameTime.ID || orders[1].ID != newer.ID || orders[2].ID != older.ID {
		t.Fatalf("unexpected order: %d, %d, %d", orders[0].ID, orders[1].ID, orders[2].ID)
	}

	none, err := f.repos.Orders.ListByCustomer(ctx, 12345)
	if err != nil {
		t.Fatalf("list unknown customer: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty list, got %d", len(none))
	}
}

func TestOrderRepository_SaveDeleteAndCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t, time.Now().UTC(), 1)
	if err := f.repos.Orders.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	later := order.UpdatedAt.Add(time.Minute)
	order.Status = domain.OrderStatusShipped
	order.UpdatedAt = later
	if err := f.repos.Orders.Save(ctx, *order); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	stored, err := f.repos.Orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != domain.OrderStatusShipped || !stored.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected stored order: %+v", stored)
	}

	count, err := f.repos.Orders.CountByProduct(ctx, f.product.ID)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 reference, got %d (%v)", count, err)
	}

	if err := f.repos.Orders.Delete(ctx, order.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := f.repos.Orders.Delete(ctx, order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on second delete, got %v", err)
	}
	if err := f.repos.Orders.Save(ctx, *order); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save, got %v", err)
	}
}

func TestOrderRepository_DeleteByCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := f.repos.Orders.Create(ctx, f.newOrder(t, time.Now(), 1)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	deleted, err := f.repos.Orders.DeleteByCustomer(ctx, f.customer.ID)
	if err != nil {
		t.Fatalf("delete by customer: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	all, _ := f.repos.Orders.List(ctx)
	if len(all) != 0 {
		t.Fatalf("expected no orders left, got %d", len(all))
	}
}
