package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

const orderItemsProductFkey = "order_items_product_id_fkey"

var productColumns = []string{"id", "name", "description", "price", "is_active"}

type productRepository struct {
	db dbtx
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := psql.Insert("products").
		Columns("name", "description", "price", "is_active").
		Values(product.Name, product.Description, product.Price, product.Active).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return domain.Product{}, fmt.Errorf("build insert product: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&product.ID); err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return product, nil
}

func (r *productRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := psql.Select(productColumns...).
		From("products").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Product{}, fmt.Errorf("build select product: %w", err)
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%w: id=%d", domain.ErrProductNotFound, id)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

// List строит запрос по фильтру: только активные и/или поиск по подстроке имени (ILIKE).
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	builder := psql.Select(productColumns...).From("products").OrderBy("id")
	if filter.ActiveOnly {
		builder = builder.Where(sq.Eq{"is_active": true})
	}
	if needle := strings.TrimSpace(filter.NameContains); needle != "" {
		builder = builder.Where(sq.ILike{"name": "%" + escapeLike(needle) + "%"})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list products: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := psql.Update("products").
		Set("name", product.Name).
		Set("description", product.Description).
		Set("price", product.Price).
		Set("is_active", product.Active).
		Where(sq.Eq{"id": product.ID}).
		ToSql()
	if err != nil {
		return domain.Product{}, fmt.Errorf("build update product: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	if err := expectAffected(res, domain.ErrProductNotFound, product.ID); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := psql.Delete("products").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete product: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err, orderItemsProductFkey) {
			return fmt.Errorf("%w: id=%d", domain.ErrProductReferenced, id)
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return expectAffected(res, domain.ErrProductNotFound, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Active)
	return p, err
}

// escapeLike экранирует служебные символы LIKE в пользовательской строке.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ domain.ProductRepository = (*productRepository)(nil)
