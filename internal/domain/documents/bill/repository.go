package bill

import (
	"context"
	"time"

	"stockledger/internal/core/id"
)

// Filter narrows bill listings.
type Filter struct {
	SupplierName string
	DueBefore    *time.Time
	OnlyOpen     bool // bills with at least one pending installment
	Limit        int
	Offset       int
}

// Repository persists bills and installments.
type Repository interface {
	CreateBill(ctx context.Context, bill *Bill) error
	GetBill(ctx context.Context, billID id.ID) (*Bill, error)
	DeleteBill(ctx context.Context, billID id.ID) error
	ListBills(ctx context.Context, filter Filter) ([]*Bill, error)

	GetInstallment(ctx context.Context, installmentID id.ID) (*Installment, error)
	UpdateInstallment(ctx context.Context, installment *Installment) error

	// HasOutstandingInstallments reports whether any pending installment
	// is assigned to the bank account. Satisfies the cash register's
	// deactivation check.
	HasOutstandingInstallments(ctx context.Context, bankAccountID id.ID) (bool, error)
}
