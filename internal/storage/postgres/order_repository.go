package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

const ordersCustomerFkey = "orders_customer_id_fkey"

type orderRepository struct {
	db dbtx
}

// Create сохраняет заказ и позиции. Вызывается внутри InTx, поэтому своя транзакция не нужна.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		order.Customer.ID, order.TotalAmount, string(order.Status), order.CreatedAt, order.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err, ordersCustomerFkey) {
			return fmt.Errorf("%w: id=%d", domain.ErrCustomerNotFound, order.Customer.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	order.AssignID(id)

	for i := range order.Items {
		item := &order.Items[i]
		if err := r.db.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, position, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`,
			order.ID, item.ProductID, i, item.Quantity, item.UnitPrice,
		).Scan(&item.ID); err != nil {
			if isForeignKeyViolation(err, orderItemsProductFkey) {
				return fmt.Errorf("%w: id=%d", domain.ErrProductNotFound, item.ProductID)
			}
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	orders, err := r.query(ctx, selectOrders().Where(sq.Eq{"o.id": id}))
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, fmt.Errorf("%w: id=%d", domain.ErrOrderNotFound, id)
	}
	return orders[0], nil
}

func (r *orderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.query(ctx, selectOrders().OrderBy("o.id"))
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	return r.query(ctx, selectOrders().
		Where(sq.Eq{"o.customer_id": customerID}).
		OrderBy("o.created_at DESC", "o.id DESC"))
}

// Save применяет новый статус; last write wins.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
	`, order.ID, string(order.Status), order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return expectAffected(res, domain.ErrOrderNotFound, order.ID)
}

// Delete удаляет историю, позиции и сам заказ. Атомарность обеспечивает InTx.
func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.deleteChildren(ctx, sq.Eq{"order_id": id}); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return expectAffected(res, domain.ErrOrderNotFound, id)
}

func (r *orderRepository) DeleteByCustomer(ctx context.Context, customerID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ownedOrders := sq.Expr("order_id IN (SELECT id FROM orders WHERE customer_id = ?)", customerID)
	if err := r.deleteChildren(ctx, ownedOrders); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE customer_id = $1`, customerID)
	if err != nil {
		return 0, fmt.Errorf("delete customer orders: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *orderRepository) CountByProduct(ctx context.Context, productID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_items WHERE product_id = $1`, productID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count order items by product: %w", err)
	}
	return count, nil
}

func (r *orderRepository) deleteChildren(ctx context.Context, where sq.Sqlizer) error {
	for _, table := range []string{"timeline_events", "order_items"} {
		query, args, err := psql.Delete(table).Where(where).ToSql()
		if err != nil {
			return fmt.Errorf("build delete %s: %w", table, err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

func selectOrders() sq.SelectBuilder {
	return psql.Select(
		"o.id", "o.customer_id", "c.name", "c.email",
		"o.total_amount", "o.status", "o.created_at", "o.updated_at",
	).
		From("orders o").
		Join("customers c ON c.id = o.customer_id")
}

// query выполняет выборку заказов и одним запросом догружает их позиции.
func (r *orderRepository) query(ctx context.Context, builder sq.SelectBuilder) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select orders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var (
			order  domain.Order
			status string
		)
		if err := rows.Scan(
			&order.ID, &order.Customer.ID, &order.Customer.Name, &order.Customer.Email,
			&order.TotalAmount, &status, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		order.Items = make([]domain.OrderItem, 0)
		index[order.ID] = len(orders)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	if err := r.loadItems(ctx, orders, index); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orders []domain.Order, index map[int64]int) error {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	query, args, err := psql.Select(
		"i.id", "i.order_id", "i.product_id", "p.name", "i.quantity", "i.unit_price",
	).
		From("order_items i").
		Join("products p ON p.id = i.product_id").
		Where(sq.Eq{"i.order_id": ids}).
		OrderBy("i.order_id", "i.position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build select order items: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		pos, ok := index[item.OrderID]
		if !ok {
			return errors.New("order item references unexpected order")
		}
		orders[pos].Items = append(orders[pos].Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
