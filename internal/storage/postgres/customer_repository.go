package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

const customersEmailKey = "customers_email_key"

type customerRepository struct {
	db dbtx
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, phone)
		VALUES ($1, $2, $3)
		RETURNING id
	`, customer.Name, customer.Email, customer.Phone).Scan(&customer.ID)
	if err != nil {
		if isUniqueViolation(err, customersEmailKey) {
			return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrEmailAlreadyExists, customer.Email)
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (domain.Customer, error) {
	return r.getOne(ctx, `SELECT id, name, email, phone FROM customers WHERE id = $1`, id,
		fmt.Sprintf("id=%d", id))
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return r.getOne(ctx, `SELECT id, name, email, phone FROM customers WHERE email = $1`, email,
		"email="+email)
}

func (r *customerRepository) getOne(ctx context.Context, query string, arg any, key string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var c domain.Customer
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Email, &c.Phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, key)
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return c, nil
}

func (r *customerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email, phone FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

func (r *customerRepository) Update(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4
		WHERE id = $1
	`, customer.ID, customer.Name, customer.Email, customer.Phone)
	if err != nil {
		if isUniqueViolation(err, customersEmailKey) {
			return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrEmailAlreadyExists, customer.Email)
		}
		return domain.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	if err := expectAffected(res, domain.ErrCustomerNotFound, customer.ID); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (r *customerRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return expectAffected(res, domain.ErrCustomerNotFound, id)
}

// expectAffected превращает «0 строк затронуто» в ошибку NotFound.
func expectAffected(res sql.Result, notFound error, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id=%d", notFound, id)
	}
	return nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
