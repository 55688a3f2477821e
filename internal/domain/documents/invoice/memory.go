package invoice

import (
	"context"
	"sort"
	"sync"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/bill"
)

// MemoryRepository is an in-process Repository for tests and local
// development.
type MemoryRepository struct {
	mu       sync.RWMutex
	invoices map[id.ID]Invoice
}

// NewMemoryRepository creates an empty in-memory invoice repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		invoices: make(map[id.ID]Invoice),
	}
}

// Create stores a new invoice.
func (r *MemoryRepository) Create(ctx context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invoices[inv.ID]; exists {
		return apperror.NewDuplicate("invoice", "id", inv.ID.String())
	}
	r.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

// Update replaces an existing invoice.
func (r *MemoryRepository) Update(ctx context.Context, inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invoices[inv.ID]; !exists {
		return apperror.NewNotFound("invoice", inv.ID.String())
	}
	r.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

// Delete removes an invoice.
func (r *MemoryRepository) Delete(ctx context.Context, invoiceID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invoices[invoiceID]; !exists {
		return apperror.NewNotFound("invoice", invoiceID.String())
	}
	delete(r.invoices, invoiceID)
	return nil
}

// GetByID returns one invoice.
func (r *MemoryRepository) GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[invoiceID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", invoiceID.String())
	}
	out := cloneInvoice(&inv)
	return &out, nil
}

// List returns invoices matching the filter, newest first.
func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Invoice
	for key := range r.invoices {
		stored := r.invoices[key]
		inv := cloneInvoice(&stored)

		if filter.SupplierName != "" && inv.SupplierName != filter.SupplierName {
			continue
		}
		if filter.OnlyDrafts && inv.StockAdded {
			continue
		}
		if filter.FromDate != nil && inv.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && inv.CreatedAt.After(*filter.ToDate) {
			continue
		}
		out = append(out, &inv)
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

func cloneInvoice(inv *Invoice) Invoice {
	out := *inv
	out.Items = append([]InvoiceItem(nil), inv.Items...)
	out.BillTerms = append([]bill.InstallmentTerm(nil), inv.BillTerms...)
	return out
}

// Ensure interface compliance.
var _ Repository = (*MemoryRepository)(nil)
