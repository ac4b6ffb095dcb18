package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// ProductInput — данные для создания и изменения товара.
// Active == nil означает «по умолчанию»: true при создании, без изменений при обновлении.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Active      *bool
}

// Service управляет каталогом товаров.
type Service struct {
	storage domain.Storage
	logger  *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(storage domain.Storage, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog-service")
	}
	return &Service{storage: storage, logger: logger}
}

// CreateProduct проверяет и сохраняет новый товар.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	product := domain.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Active:      true,
	}
	if in.Active != nil {
		product.Active = *in.Active
	}
	product.Normalize()
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}

	created, err := s.storage.Repositories().Products.Create(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"active":     created.Active,
	}).Info("product created")
	return created, nil
}

// GetProduct возвращает товар или ErrProductNotFound.
func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.storage.Repositories().Products.Get(ctx, id)
}

// ListProducts возвращает все товары либо только активные.
func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	return s.storage.Repositories().Products.List(ctx, domain.ProductFilter{ActiveOnly: activeOnly})
}

// SearchProducts ищет товары по подстроке имени без учёта регистра.
func (s *Service) SearchProducts(ctx context.Context, name string) ([]domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrSearchNameRequired
	}
	return s.storage.Repositories().Products.List(ctx, domain.ProductFilter{NameContains: name})
}

// UpdateProduct заменяет поля товара. Цена в уже созданных заказах не меняется.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (domain.Product, error) {
	var updated domain.Product
	err := s.storage.InTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		current, err := tx.Products.Get(ctx, id)
		if err != nil {
			return err
		}

		next := domain.Product{
			ID:          current.ID,
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Active:      current.Active,
		}
		if in.Active != nil {
			next.Active = *in.Active
		}
		next.Normalize()
		if err := next.Validate(); err != nil {
			return err
		}

		updated, err = tx.Products.Update(ctx, next)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithField("product_id", id).Info("product updated")
	return updated, nil
}

// DeleteProduct удаляет товар, если на него не ссылается ни одна позиция заказа.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	err := s.storage.InTx(ctx, func(ctx context.Context, tx domain.Repositories) error {
		if _, err := tx.Products.Get(ctx, id); err != nil {
			return err
		}
		refs, err := tx.Orders.CountByProduct(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: id=%d, order items=%d", domain.ErrProductReferenced, id, refs)
		}
		return tx.Products.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}
