package cash

import (
	"context"
	"sort"
	"sync"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// MemoryRepository is an in-process Repository for tests and local
// development.
type MemoryRepository struct {
	mu        sync.RWMutex
	movements []entity.CashMovement
	accounts  map[id.ID]entity.CashAccount
}

// NewMemoryRepository creates an empty in-memory cash repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[id.ID]entity.CashAccount),
	}
}

// CreateMovements appends movements to the log.
func (r *MemoryRepository) CreateMovements(ctx context.Context, movements []entity.CashMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, movements...)
	return nil
}

// ListMovements returns the statement for an account, newest first.
func (r *MemoryRepository) ListMovements(ctx context.Context, bankAccountID id.ID, filter MovementFilter) ([]entity.CashMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.CashMovement
	for _, m := range r.movements {
		if m.BankAccountID != bankAccountID {
			continue
		}
		if filter.FromDate != nil && m.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && m.CreatedAt.After(*filter.ToDate) {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].LineID.String() > out[j].LineID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

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

// GetMovementsByRecorder retrieves all movements created by a document.
func (r *MemoryRepository) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.CashMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.CashMovement
	for _, m := range r.movements {
		if m.RecorderID == recorderID {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetAccount returns the account row.
func (r *MemoryRepository) GetAccount(ctx context.Context, bankAccountID id.ID) (entity.CashAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[bankAccountID]
	if !ok {
		return entity.CashAccount{}, apperror.NewNotFound("bank account", bankAccountID.String())
	}
	return a, nil
}

// GetAccountForUpdate behaves like GetAccount; serialization comes from
// the surrounding tx.MemoryManager transaction.
func (r *MemoryRepository) GetAccountForUpdate(ctx context.Context, bankAccountID id.ID) (entity.CashAccount, error) {
	return r.GetAccount(ctx, bankAccountID)
}

// CreateAccount registers a new bank account.
func (r *MemoryRepository) CreateAccount(ctx context.Context, account entity.CashAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.BankAccountID]; exists {
		return apperror.NewDuplicate("bank account", "id", account.BankAccountID.String())
	}
	r.accounts[account.BankAccountID] = account
	return nil
}

// UpsertAccount writes the folded account state.
func (r *MemoryRepository) UpsertAccount(ctx context.Context, account entity.CashAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.BankAccountID] = account
	return nil
}

// ListAccounts returns accounts sorted by name.
func (r *MemoryRepository) ListAccounts(ctx context.Context, includeInactive bool) ([]entity.CashAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.CashAccount
	for _, a := range r.accounts {
		if !includeInactive && !a.Active {
			continue
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RebuildAccounts refolds every balance from the movement log.
// Name and active flag are configuration and survive the rebuild.
func (r *MemoryRepository) RebuildAccounts(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rebuilt := make(map[id.ID]entity.CashAccount, len(r.accounts))
	for key, a := range r.accounts {
		a.Balance = types.Zero()
		rebuilt[key] = a
	}

	for _, m := range r.movements {
		a, ok := rebuilt[m.BankAccountID]
		if !ok {
			a = entity.CashAccount{BankAccountID: m.BankAccountID, Balance: types.Zero(), Active: true}
		}
		rebuilt[m.BankAccountID] = a.Apply(m)
	}

	r.accounts = rebuilt
	return nil
}

// Ensure interface compliance.
var _ Repository = (*MemoryRepository)(nil)
