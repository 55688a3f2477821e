package sale

import (
	"context"
	"sort"
	"sync"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// MemoryRepository is an in-process Repository for tests and local
// development.
type MemoryRepository struct {
	mu    sync.RWMutex
	sales map[id.ID]Sale
}

// NewMemoryRepository creates an empty in-memory sale repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sales: make(map[id.ID]Sale),
	}
}

// Create stores a new sale.
func (r *MemoryRepository) Create(ctx context.Context, sale *Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sales[sale.ID]; exists {
		return apperror.NewDuplicate("sale", "id", sale.ID.String())
	}
	r.sales[sale.ID] = cloneSale(sale)
	return nil
}

// Update replaces an existing sale.
func (r *MemoryRepository) Update(ctx context.Context, sale *Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sales[sale.ID]; !exists {
		return apperror.NewNotFound("sale", sale.ID.String())
	}
	r.sales[sale.ID] = cloneSale(sale)
	return nil
}

// Delete removes a sale.
func (r *MemoryRepository) Delete(ctx context.Context, saleID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sales[saleID]; !exists {
		return apperror.NewNotFound("sale", saleID.String())
	}
	delete(r.sales, saleID)
	return nil
}

// GetByID returns one sale.
func (r *MemoryRepository) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sale, ok := r.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID.String())
	}
	out := cloneSale(&sale)
	return &out, nil
}

// List returns sales matching the filter, newest first.
func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Sale
	for key := range r.sales {
		stored := r.sales[key]
		sale := cloneSale(&stored)
		if filter.FromDate != nil && sale.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && sale.CreatedAt.After(*filter.ToDate) {
			continue
		}
		out = append(out, &sale)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}

	return out, nil
}

func cloneSale(s *Sale) Sale {
	out := *s
	out.Items = append([]SaleItem(nil), s.Items...)
	return out
}

// Ensure interface compliance.
var _ Repository = (*MemoryRepository)(nil)
