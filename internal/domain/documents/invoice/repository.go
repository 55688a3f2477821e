package invoice

import (
	"context"
	"time"

	"stockledger/internal/core/id"
)

// Filter narrows invoice listings.
type Filter struct {
	SupplierName string
	OnlyDrafts   bool // invoices not yet launched
	FromDate     *time.Time
	ToDate       *time.Time
	Limit        int
	Offset       int
}

// Repository persists invoice documents.
type Repository interface {
	Create(ctx context.Context, invoice *Invoice) error
	Update(ctx context.Context, invoice *Invoice) error
	Delete(ctx context.Context, invoiceID id.ID) error
	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)
	List(ctx context.Context, filter Filter) ([]*Invoice, error)
}
