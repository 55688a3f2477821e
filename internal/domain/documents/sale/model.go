// Package sale is the sale document orchestrator: each sale deducts its
// items from the stock ledger through the guarded mutation protocol, and
// edits reverse the old movements before applying the new ones.
package sale

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Sale is one sale document.
type Sale struct {
	ID       id.ID  `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenantId"`

	CustomerName string `db:"customer_name" json:"customerName,omitempty"`
	Note         string `db:"note" json:"note,omitempty"`

	Items []SaleItem `db:"-" json:"items"`

	// Total is derived from the items; stored for listing queries.
	Total types.Money `db:"total" json:"total"`

	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// SaleItem is one line on a sale. UnitPrice is a snapshot of the catalog
// price at the time the line was entered; the catalog changing later
// never rewrites a stored sale.
type SaleItem struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	SaleID id.ID `db:"sale_id" json:"saleId"`

	EntityType entity.StockEntityType `db:"entity_type" json:"entityType"`
	EntityID   id.ID                  `db:"entity_id" json:"entityId"`

	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice types.Money    `db:"unit_price" json:"unitPrice"`
}

// Subtotal is quantity x snapshot price.
func (i SaleItem) Subtotal() types.Money {
	return i.Quantity.Mul(i.UnitPrice)
}

// Validate checks document invariants. Only products and packages are
// sellable; ingredients leave stock through invoices and corrections.
func (s *Sale) Validate() error {
	if len(s.Items) == 0 {
		return apperror.NewValidation("sale must have at least one item")
	}
	for i := range s.Items {
		item := &s.Items[i]
		if item.EntityType != entity.EntityProduct && item.EntityType != entity.EntityPackage {
			return apperror.NewValidation("only products and packages are sellable").
				WithDetail("entityType", string(item.EntityType))
		}
		if id.IsNil(item.EntityID) {
			return apperror.NewValidation("item entity id is required")
		}
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation("item quantity must be positive").
				WithDetail("entityId", item.EntityID.String())
		}
		if item.UnitPrice.IsNegative() {
			return apperror.NewValidation("item unit price must not be negative").
				WithDetail("entityId", item.EntityID.String())
		}
	}
	return nil
}

// ComputeTotal sums the line subtotals into Total.
func (s *Sale) ComputeTotal() {
	total := types.Zero()
	for _, item := range s.Items {
		total = total.Add(item.Subtotal())
	}
	s.Total = total
}
