package item

import (
	"context"
	"sort"
	"strings"
	"sync"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

// MemoryRepository is an in-process Repository for tests and local
// development.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[id.ID]Item
}

// NewMemoryRepository creates an empty in-memory catalog.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[id.ID]Item),
	}
}

// Create stores a new item.
func (r *MemoryRepository) Create(ctx context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; exists {
		return apperror.NewDuplicate("item", "id", item.ID.String())
	}
	r.items[item.ID] = *item
	return nil
}

// Update replaces an existing item.
func (r *MemoryRepository) Update(ctx context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; !exists {
		return apperror.NewNotFound("item", item.ID.String())
	}
	r.items[item.ID] = *item
	return nil
}

// GetByID returns one item.
func (r *MemoryRepository) GetByID(ctx context.Context, itemID id.ID) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	return &item, nil
}

// GetByTypeAndID returns one item, checking the entity type matches.
func (r *MemoryRepository) GetByTypeAndID(ctx context.Context, entityType entity.StockEntityType, itemID id.ID) (*Item, error) {
	item, err := r.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Type != entityType {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	return item, nil
}

// List returns items matching the filter, sorted by name.
func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Item
	for key := range r.items {
		item := r.items[key]
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if !filter.IncludeInactive && !item.Active {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, &item)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Ensure interface compliance.
var _ Repository = (*MemoryRepository)(nil)
