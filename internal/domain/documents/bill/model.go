// Package bill manages supplier bills and their payment installments.
// Paying an installment is a guarded cash debit; overdue is derived at
// read time from the due date, never stored.
package bill

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// InstallmentStatus is the stored installment lifecycle state.
type InstallmentStatus string

const (
	StatusPending   InstallmentStatus = "pending"
	StatusPaid      InstallmentStatus = "paid"
	StatusCancelled InstallmentStatus = "cancelled"

	// StatusOverdue is derived only: a pending installment past its due
	// date. It is never written to storage, so no nightly job is needed
	// to flip statuses.
	StatusOverdue InstallmentStatus = "overdue"
)

// InstallmentTerm describes one installment when opening a bill.
type InstallmentTerm struct {
	DueDate time.Time   `json:"dueDate"`
	Amount  types.Money `json:"amount"`

	// BankAccountID optionally pre-assigns the paying account. While an
	// account has pending installments assigned, it cannot be
	// deactivated.
	BankAccountID *id.ID `json:"bankAccountId,omitempty"`
}

// Bill is one supplier bill.
type Bill struct {
	ID       id.ID  `db:"id" json:"id"`
	TenantID string `db:"tenant_id" json:"tenantId"`

	SupplierName string `db:"supplier_name" json:"supplierName"`
	Description  string `db:"description" json:"description,omitempty"`

	// InvoiceID links bills opened by an invoice launch.
	InvoiceID *id.ID `db:"invoice_id" json:"invoiceId,omitempty"`

	Total types.Money `db:"total" json:"total"`

	Installments []Installment `db:"-" json:"installments"`

	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Installment is one scheduled payment on a bill.
type Installment struct {
	ID     id.ID `db:"id" json:"id"`
	BillID id.ID `db:"bill_id" json:"billId"`

	Sequence int               `db:"sequence" json:"sequence"`
	DueDate  time.Time         `db:"due_date" json:"dueDate"`
	Amount   types.Money       `db:"amount" json:"amount"`
	Status   InstallmentStatus `db:"status" json:"status"`

	// PaidAt and BankAccountID are set when the installment is paid;
	// BankAccountID may also be pre-assigned at creation.
	PaidAt        *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	BankAccountID *id.ID     `db:"bank_account_id" json:"bankAccountId,omitempty"`
}

// EffectiveStatus returns the status with overdue derived: pending and
// past due as of the given moment.
func (i Installment) EffectiveStatus(now time.Time) InstallmentStatus {
	if i.Status == StatusPending && i.DueDate.Before(truncateToDay(now)) {
		return StatusOverdue
	}
	return i.Status
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Validate checks bill invariants: at least one installment and the
// installments summing exactly to the total.
func (b *Bill) Validate() error {
	if b.SupplierName == "" {
		return apperror.NewValidation("supplier name is required")
	}
	if len(b.Installments) == 0 {
		return apperror.NewValidation("bill must have at least one installment")
	}

	sum := types.Zero()
	for i := range b.Installments {
		inst := &b.Installments[i]
		if !inst.Amount.IsPositive() {
			return apperror.NewValidation("installment amount must be positive")
		}
		if inst.DueDate.IsZero() {
			return apperror.NewValidation("installment due date is required")
		}
		sum = sum.Add(inst.Amount)
	}

	if !sum.Equal(b.Total) {
		return apperror.NewValidation("installments must sum to the bill total").
			WithDetail("total", b.Total.String()).
			WithDetail("installmentSum", sum.String())
	}
	return nil
}
