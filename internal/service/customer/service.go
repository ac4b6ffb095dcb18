package customer

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// Service управляет клиентами.
type Service struct {
	storage domain.Storage
	logger  *log.Entry
}

// NewService создаёт сервис клиентов.
func NewService(storage domain.Storage, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "customer-service")
	}
	return &Service{storage: storage, logger: logger}
}

// CreateCustomer проверяет данные и уникальность email, затем сохраняет клиента.
func (s *Service) CreateCustomer(ctx context.Context, in domain.Customer) (domain.Customer, error) {
	in.ID = 0
	in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Customer{}, err
	}

	var created domain.Customer
	err := s.storage.InTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if err := ensureEmailFree(ctx, tx.Customers, in.Email, 0); err != nil {
			return err
		}
		var err error
		created, err = tx.Customers.Create(ctx, in)
		return err
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger.WithField("customer_id", created.ID).Info("customer created")
	return created, nil
}

// GetCustomer возвращает клиента или ErrCustomerNotFound.
func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return s.storage.Repositories().Customers.Get(ctx, id)
}

// ListCustomers возвращает всех клиентов.
func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.storage.Repositories().Customers.List(ctx)
}

// UpdateCustomer заменяет данные клиента. Email не может совпадать с email другого клиента.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, in domain.Customer) (domain.Customer, error) {
	in.ID = id
	in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Customer{}, err
	}

	var updated domain.Customer
	err := s.storage.InTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if _, err := tx.Customers.Get(ctx, id); err != nil {
			return err
		}
		if err := ensureEmailFree(ctx, tx.Customers, in.Email, id); err != nil {
			return err
		}
		var err error
		updated, err = tx.Customers.Update(ctx, in)
		return err
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger.WithField("customer_id", id).Info("customer updated")
	return updated, nil
}

// DeleteCustomer удаляет клиента вместе с его заказами в одной транзакции.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	var removedOrders int
	err := s.storage.InTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if _, err := tx.Customers.Get(ctx, id); err != nil {
			return err
		}
		var err error
		if removedOrders, err = tx.Orders.DeleteByCustomer(ctx, id); err != nil {
			return fmt.Errorf("delete orders of customer %d: %w", id, err)
		}
		return tx.Customers.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{
		"customer_id":    id,
		"removed_orders": removedOrders,
	}).Info("customer deleted")
	return nil
}

func ensureEmailFree(ctx context.Context, repo domain.CustomerRepository, email string, selfID int64) error {
	existing, err := repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("%w: %s", domain.ErrEmailAlreadyExists, email)
	default:
		return nil
	}
}
