// Package invoice is the purchase invoice orchestrator. An invoice is
// drafted without ledger effect; launching it adds the received items to
// stock at their purchase cost, optionally debits a bank account, and
// optionally opens a bill with payment installments. Launching is
// one-way: undoing it means deleting the invoice, which reverses the
// movements.
package invoice

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/documents/bill"
)

// Invoice is one purchase invoice document.
type Invoice struct {
	ID       id.ID  `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenantId"`

	Number       string `db:"number" json:"number"`
	SupplierName string `db:"supplier_name" json:"supplierName"`

	Items []InvoiceItem `db:"-" json:"items"`

	// Total is derived from the items; stored for listing queries.
	Total types.Money `db:"total" json:"total"`

	// StockAdded flips when the invoice is launched. A launched invoice
	// cannot be edited or launched again.
	StockAdded bool       `db:"stock_added" json:"stockAdded"`
	LaunchedAt *time.Time `db:"launched_at" json:"launchedAt,omitempty"`

	// DeductBankAccountID, when set, debits that account by Total on
	// launch.
	DeductBankAccountID *id.ID `db:"deduct_bank_account_id" json:"deductBankAccountId,omitempty"`

	// BillTerms, when set, opens a bill with these installments on
	// launch. BillID records the created bill.
	BillTerms []bill.InstallmentTerm `db:"-" json:"billTerms,omitempty"`
	BillID    *id.ID                 `db:"bill_id" json:"billId,omitempty"`

	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// InvoiceItem is one received line. UnitCost is the purchase price that
// feeds the weighted average on launch.
type InvoiceItem struct {
	LineID    id.ID `db:"line_id" json:"lineId"`
	InvoiceID id.ID `db:"invoice_id" json:"invoiceId"`

	EntityType entity.StockEntityType `db:"entity_type" json:"entityType"`
	EntityID   id.ID                  `db:"entity_id" json:"entityId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`
	UnitCost types.Money    `db:"unit_cost" json:"unitCost"`
}

// Subtotal is quantity x unit cost.
func (i InvoiceItem) Subtotal() types.Money {
	return i.Quantity.Mul(i.UnitCost)
}

// Validate checks document invariants.
func (inv *Invoice) Validate() error {
	if len(inv.Items) == 0 {
		return apperror.NewValidation("invoice must have at least one item")
	}
	for i := range inv.Items {
		item := &inv.Items[i]
		if !item.EntityType.IsValid() {
			return apperror.NewValidation("unknown entity type").
				WithDetail("entityType", string(item.EntityType))
		}
		if id.IsNil(item.EntityID) {
			return apperror.NewValidation("item entity id is required")
		}
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation("item quantity must be positive").
				WithDetail("entityId", item.EntityID.String())
		}
		if item.UnitCost.IsNegative() {
			return apperror.NewValidation("item unit cost must not be negative").
				WithDetail("entityId", item.EntityID.String())
		}
	}
	for _, term := range inv.BillTerms {
		if !term.Amount.IsPositive() {
			return apperror.NewValidation("installment amount must be positive")
		}
		if term.DueDate.IsZero() {
			return apperror.NewValidation("installment due date is required")
		}
	}
	return nil
}

// ComputeTotal sums the line subtotals into Total.
func (inv *Invoice) ComputeTotal() {
	total := types.Zero()
	for _, item := range inv.Items {
		total = total.Add(item.Subtotal())
	}
	inv.Total = total
}
