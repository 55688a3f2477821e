package bill

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
	bills map[id.ID]Bill
}

// NewMemoryRepository creates an empty in-memory bill repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bills: make(map[id.ID]Bill),
	}
}

// CreateBill stores a new bill with its installments.
func (r *MemoryRepository) CreateBill(ctx context.Context, b *Bill) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bills[b.ID]; exists {
		return apperror.NewDuplicate("bill", "id", b.ID.String())
	}
	r.bills[b.ID] = cloneBill(b)
	return nil
}

// GetBill returns one bill.
func (r *MemoryRepository) GetBill(ctx context.Context, billID id.ID) (*Bill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bills[billID]
	if !ok {
		return nil, apperror.NewNotFound("bill", billID.String())
	}
	out := cloneBill(&b)
	return &out, nil
}

// DeleteBill removes a bill and its installments.
func (r *MemoryRepository) DeleteBill(ctx context.Context, billID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bills[billID]; !exists {
		return apperror.NewNotFound("bill", billID.String())
	}
	delete(r.bills, billID)
	return nil
}

// ListBills returns bills matching the filter, newest first.
func (r *MemoryRepository) ListBills(ctx context.Context, filter Filter) ([]*Bill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Bill
	for key := range r.bills {
		stored := r.bills[key]
		b := cloneBill(&stored)

		if filter.SupplierName != "" && b.SupplierName != filter.SupplierName {
			continue
		}
		if filter.OnlyOpen && !hasPending(&b) {
			continue
		}
		if filter.DueBefore != nil && !dueBefore(&b, filter) {
			continue
		}
		out = append(out, &b)
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

// GetInstallment returns one installment by id.
func (r *MemoryRepository) GetInstallment(ctx context.Context, installmentID id.ID) (*Installment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.bills {
		for i := range b.Installments {
			if b.Installments[i].ID == installmentID {
				inst := b.Installments[i]
				return &inst, nil
			}
		}
	}
	return nil, apperror.NewNotFound("installment", installmentID.String())
}

// UpdateInstallment replaces an installment row.
func (r *MemoryRepository) UpdateInstallment(ctx context.Context, installment *Installment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bills[installment.BillID]
	if !ok {
		return apperror.NewNotFound("bill", installment.BillID.String())
	}
	for i := range b.Installments {
		if b.Installments[i].ID == installment.ID {
			b.Installments[i] = *installment
			r.bills[b.ID] = b
			return nil
		}
	}
	return apperror.NewNotFound("installment", installment.ID.String())
}

// HasOutstandingInstallments reports pending installments assigned to
// the bank account.
func (r *MemoryRepository) HasOutstandingInstallments(ctx context.Context, bankAccountID id.ID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.bills {
		for i := range b.Installments {
			inst := &b.Installments[i]
			if inst.Status == StatusPending && inst.BankAccountID != nil && *inst.BankAccountID == bankAccountID {
				return true, nil
			}
		}
	}
	return false, nil
}

func cloneBill(b *Bill) Bill {
	out := *b
	out.Installments = append([]Installment(nil), b.Installments...)
	return out
}

func hasPending(b *Bill) bool {
	for i := range b.Installments {
		if b.Installments[i].Status == StatusPending {
			return true
		}
	}
	return false
}

func dueBefore(b *Bill, filter Filter) bool {
	for i := range b.Installments {
		inst := &b.Installments[i]
		if inst.Status == StatusPending && inst.DueDate.Before(*filter.DueBefore) {
			return true
		}
	}
	return false
}

// Ensure interface compliance.
var _ Repository = (*MemoryRepository)(nil)
