package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// productRepository — in-memory реализация ProductRepository.
type productRepository struct {
	access access
}

func (r *productRepository) Create(_ context.Context, product domain.Product) (domain.Product, error) {
	err := r.access.write(func(st *state) error {
		st.productSeq++
		product.ID = st.productSeq
		st.products[product.ID] = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (r *productRepository) Get(_ context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	err := r.access.read(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrProductNotFound, id)
		}
		product = p
		return nil
	})
	return product, err
}

// List фильтрует товары по активности и подстроке имени (без учёта регистра).
func (r *productRepository) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	needle := strings.ToLower(strings.TrimSpace(filter.NameContains))

	var result []domain.Product
	err := r.access.read(func(st *state) error {
		result = make([]domain.Product, 0, len(st.products))
		for _, p := range st.products {
			if filter.ActiveOnly && !p.Active {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
				continue
			}
			result = append(result, p)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, err
}

func (r *productRepository) Update(_ context.Context, product domain.Product) (domain.Product, error) {
	err := r.access.write(func(st *state) error {
		if _, ok := st.products[product.ID]; !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrProductNotFound, product.ID)
		}
		st.products[product.ID] = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (r *productRepository) Delete(_ context.Context, id int64) error {
	return r.access.write(func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return fmt.Errorf("%w: id=%d", domain.ErrProductNotFound, id)
		}
		delete(st.products, id)
		return nil
	})
}

var _ domain.ProductRepository = (*productRepository)(nil)
