package sale

import (
	"context"
	"time"

	"stockledger/internal/core/id"
)

// Filter narrows sale listings.
type Filter struct {
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

// Repository persists sale documents. All writes happen inside the guard
// protocol's transaction, as the side effect of a guarded mutation.
type Repository interface {
	Create(ctx context.Context, sale *Sale) error
	Update(ctx context.Context, sale *Sale) error
	Delete(ctx context.Context, saleID id.ID) error
	GetByID(ctx context.Context, saleID id.ID) (*Sale, error)
	List(ctx context.Context, filter Filter) ([]*Sale, error)
}
