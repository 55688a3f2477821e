package item

import (
	"context"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

// Filter narrows catalog listings.
type Filter struct {
	Type            entity.StockEntityType
	IncludeInactive bool
	Search          string
}

// Repository persists catalog items.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, itemID id.ID) (*Item, error)
	GetByTypeAndID(ctx context.Context, entityType entity.StockEntityType, itemID id.ID) (*Item, error)
	List(ctx context.Context, filter Filter) ([]*Item, error)
}
