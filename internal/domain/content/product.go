package content

import (
	"strings"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
	"papyrus/internal/core/types"
)

// Product is a sellable catalog item.
type Product struct {
	entity.Base

	SKU         string      `db:"sku" json:"sku"`
	Name        string      `db:"name" json:"name"`
	Description string      `db:"description" json:"description"`
	Price       types.Money `db:"price" json:"price"`
}

// Validate checks product invariants.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return apperror.NewValidation("product sku is required").WithDetail("field", "sku")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("product name is required").WithDetail("field", "name")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("product price cannot be negative").
			WithDetail("field", "price").
			WithDetail("price", p.Price.String())
	}
	return nil
}
