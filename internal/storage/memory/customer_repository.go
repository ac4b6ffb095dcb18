package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// customerRepository — in-memory реализация CustomerRepository.
type customerRepository struct {
	access access
}

// Create сохраняет клиента. Занятый email даёт ErrEmailAlreadyExists, как уникальный индекс в БД.
func (r *customerRepository) Create(_ context.Context, customer domain.Customer) (domain.Customer, error) {
	err := r.access.write(func(st *state) error {
		if emailTaken(st, customer.Email, 0) {
			return fmt.Errorf("%w: %s", domain.ErrEmailAlreadyExists, customer.Email)
		}
		st.customerSeq++
		customer.ID = st.customerSeq
		st.customers[customer.ID] = customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (r *customerRepository) Get(_ context.Context, id int64) (domain.Customer, error) {
	var customer domain.Customer
	err := r.access.read(func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrCustomerNotFound, id)
		}
		customer = c
		return nil
	})
	return customer, err
}

func (r *customerRepository) GetByEmail(_ context.Context, email string) (domain.Customer, error) {
	var customer domain.Customer
	err := r.access.read(func(st *state) error {
		for _, c := range st.customers {
			if c.Email == email {
				customer = c
				return nil
			}
		}
		return fmt.Errorf("%w: email=%s", domain.ErrCustomerNotFound, email)
	})
	return customer, err
}

func (r *customerRepository) List(_ context.Context) ([]domain.Customer, error) {
	var result []domain.Customer
	err := r.access.read(func(st *state) error {
		result = make([]domain.Customer, 0, len(st.customers))
		for _, c := range st.customers {
			result = append(result, c)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, err
}

func (r *customerRepository) Update(_ context.Context, customer domain.Customer) (domain.Customer, error) {
	err := r.access.write(func(st *state) error {
		if _, ok := st.customers[customer.ID]; !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrCustomerNotFound, customer.ID)
		}
		if emailTaken(st, customer.Email, customer.ID) {
			return fmt.Errorf("%w: %s", domain.ErrEmailAlreadyExists, customer.Email)
		}
		st.customers[customer.ID] = customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (r *customerRepository) Delete(_ context.Context, id int64) error {
	return r.access.write(func(st *state) error {
		if _, ok := st.customers[id]; !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrCustomerNotFound, id)
		}
		delete(st.customers, id)
		return nil
	})
}

func emailTaken(st *state, email string, exceptID int64) bool {
	for id, c := range st.customers {
		if id != exceptID && c.Email == email {
			return true
		}
	}
	return false
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
