package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository.
type orderRepository struct {
	access access
}

// Create сохраняет заказ и присваивает ID заказу и позициям.
// Ссылки на клиента и товары проверяются так же, как внешние ключи в БД.
func (r *orderRepository) Create(_ context.Context, order *domain.Order) error {
	return r.access.write(func(st *state) error {
		if _, ok := st.customers[order.Customer.ID]; !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrCustomerNotFound, order.Customer.ID)
		}
		for _, item := range order.Items {
			if _, ok := st.products[item.ProductID]; !ok {
				return fmt.Errorf("%w: id=%d", domain.ErrProductNotFound, item.ProductID)
			}
		}

		st.orderSeq++
		order.AssignID(st.orderSeq)
		for i := range order.Items {
			st.itemSeq++
			order.Items[i].ID = st.itemSeq
		}

		// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
		stored := *order
		stored.Items = append([]domain.OrderItem(nil), order.Items...)
		st.orders[order.ID] = storedOrder{order: stored, customerID: order.Customer.ID}
		return nil
	})
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepository) Get(_ context.Context, id int64) (domain.Order, error) {
	var order domain.Order
	err := r.access.read(func(st *state) error {
		stored, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrOrderNotFound, id)
		}
		order = resolve(st, stored)
		return nil
	})
	return order, err
}

func (r *orderRepository) List(_ context.Context) ([]domain.Order, error) {
	var result []domain.Order
	err := r.access.read(func(st *state) error {
		result = make([]domain.Order, 0, len(st.orders))
		for _, stored := range st.orders {
			result = append(result, resolve(st, stored))
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, err
}

// ListByCustomer возвращает заказы клиента: сначала новые, при равном времени — больший ID.
func (r *orderRepository) ListByCustomer(_ context.Context, customerID int64) ([]domain.Order, error) {
	var result []domain.Order
	err := r.access.read(func(st *state) error {
		result = make([]domain.Order, 0)
		for _, stored := range st.orders {
			if stored.customerID != customerID {
				continue
			}
			result = append(result, resolve(st, stored))
		}
		return nil
	})

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, err
}

// Save перезаписывает статус и время изменения заказа.
func (r *orderRepository) Save(_ context.Context, order domain.Order) error {
	return r.access.write(func(st *state) error {
		stored, ok := st.orders[order.ID]
		if !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrOrderNotFound, order.ID)
		}
		stored.order.Status = order.Status
		stored.order.UpdatedAt = order.UpdatedAt
		st.orders[order.ID] = stored
		return nil
	})
}

// Delete удаляет заказ, его позиции и историю.
func (r *orderRepository) Delete(_ context.Context, id int64) error {
	return r.access.write(func(st *state) error {
		if _, ok := st.orders[id]; !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrOrderNotFound, id)
		}
		delete(st.orders, id)
		delete(st.timeline, id)
		return nil
	})
}

func (r *orderRepository) DeleteByCustomer(_ context.Context, customerID int64) (int, error) {
	deleted := 0
	err := r.access.write(func(st *state) error {
		for id, stored := range st.orders {
			if stored.customerID != customerID {
				continue
			}
			delete(st.orders, id)
			delete(st.timeline, id)
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (r *orderRepository) CountByProduct(_ context.Context, productID int64) (int, error) {
	count := 0
	err := r.access.read(func(st *state) error {
		for _, stored := range st.orders {
			for _, item := range stored.order.Items {
				if item.ProductID == productID {
					count++
				}
			}
		}
		return nil
	})
	return count, err
}

// resolve подставляет актуальные имя и email клиента и названия товаров.
func resolve(st *state, stored storedOrder) domain.Order {
	order := stored.order
	order.Items = append([]domain.OrderItem(nil), stored.order.Items...)

	if customer, ok := st.customers[stored.customerID]; ok {
		order.Customer = customer.Ref()
	}
	for i := range order.Items {
		if product, ok := st.products[order.Items[i].ProductID]; ok {
			order.Items[i].ProductName = product.Name
		}
	}
	return order
}

var _ domain.OrderRepository = (*orderRepository)(nil)
