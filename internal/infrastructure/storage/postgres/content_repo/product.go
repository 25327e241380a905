package content_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"papyrus/internal/core/entity"
	"papyrus/internal/core/types"
	"papyrus/internal/domain/content"
	"papyrus/internal/infrastructure/storage/postgres"
)

// ProductRepo manages catalog products.
type ProductRepo struct {
	*BaseRepo[*content.Product]
}

// Products returns the product repository for the session, creating and
// caching it on first use.
func Products(s *postgres.Session, reg *entity.Registry) *ProductRepo {
	return s.Repository(content.TypeProduct, func() any {
		return &ProductRepo{
			BaseRepo: New(s, reg.MustGet(content.TypeProduct), []string{"sku", "name", "description"},
				func() *content.Product { return &content.Product{} }),
		}
	}).(*ProductRepo)
}

// GetBySKU finds a live product by its SKU.
func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*content.Product, error) {
	q, err := r.BaseSelect()
	if err != nil {
		return nil, err
	}
	return r.FindOne(ctx, q.Where(squirrel.Eq{"sku": sku}).Limit(1))
}

// ListByPriceRange lists live products with min <= price <= max, cheapest first.
func (r *ProductRepo) ListByPriceRange(ctx context.Context, min, max types.Money) ([]*content.Product, error) {
	q, err := r.BaseSelect()
	if err != nil {
		return nil, err
	}
	sql, args, err := q.
		Where(squirrel.GtOrEq{"price": min}).
		Where(squirrel.LtOrEq{"price": max}).
		OrderBy("price ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var products []*content.Product
	if err := pgxscan.Select(ctx, r.s.Querier(), &products, sql, args...); err != nil {
		return nil, fmt.Errorf("list products by price: %w", err)
	}
	return products, nil
}
