// Package item is the catalog of stock entities: ingredients, products
// and packages. Catalog rows carry configuration (name, sale price,
// low-stock threshold); quantities live in the stock register.
package item

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Item is one catalog entry.
type Item struct {
	ID       id.ID                  `db:"id" json:"id"`
	TenantID string                 `db:"tenant_id" json:"tenantId"`
	Type     entity.StockEntityType `db:"type" json:"type"`
	Name     string                 `db:"name" json:"name"`

	// SalePrice applies to products and packages; ingredients are not
	// sold directly and keep a zero price.
	SalePrice types.Money `db:"sale_price" json:"salePrice"`

	// MinQuantity is mirrored onto the stock account as the low-stock
	// threshold.
	MinQuantity types.Quantity `db:"min_quantity" json:"minQuantity"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks catalog invariants.
func (i *Item) Validate() error {
	if !i.Type.IsValid() {
		return apperror.NewValidation("unknown entity type").WithDetail("type", string(i.Type))
	}
	if i.Name == "" {
		return apperror.NewValidation("item name is required")
	}
	if i.SalePrice.IsNegative() {
		return apperror.NewValidation("sale price must not be negative")
	}
	if i.MinQuantity.IsNegative() {
		return apperror.NewValidation("min quantity must not be negative")
	}
	return nil
}

// Sellable reports whether the item may appear on a sale.
func (i *Item) Sellable() bool {
	return i.Type == entity.EntityProduct || i.Type == entity.EntityPackage
}
