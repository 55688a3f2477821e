package stock

import (
	"context"
	"sort"
	"sync"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// MemoryRepository is an in-process Repository for tests and local
// development. Pair it with tx.MemoryManager so commits serialize the same
// way the Postgres row locks do.
type MemoryRepository struct {
	mu        sync.RWMutex
	movements []entity.StockMovement
	accounts  map[accountKey]entity.StockAccount
}

type accountKey struct {
	entityType entity.StockEntityType
	entityID   id.ID
}

// NewMemoryRepository creates an empty in-memory stock repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[accountKey]entity.StockAccount),
	}
}

// CreateMovements appends movements. The log is append-only; nothing is
// ever overwritten.
func (r *MemoryRepository) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, movements...)
	return nil
}

// ListMovements returns movement history for an entity, newest first.
func (r *MemoryRepository) ListMovements(ctx context.Context, entityType entity.StockEntityType, entityID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.StockMovement
	for _, m := range r.movements {
		if m.EntityType != entityType || m.EntityID != entityID {
			continue
		}
		if filter.Reason != nil && m.Reason != *filter.Reason {
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

// GetMovementsByRecorder retrieves all movements created by a document,
// in append order.
func (r *MemoryRepository) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.StockMovement
	for _, m := range r.movements {
		if m.RecorderID == recorderID {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetAccount returns the account row, or a zero row when absent.
func (r *MemoryRepository) GetAccount(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (entity.StockAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accountLocked(entityType, entityID), nil
}

// GetAccountForUpdate behaves like GetAccount; serialization comes from
// the surrounding tx.MemoryManager transaction.
func (r *MemoryRepository) GetAccountForUpdate(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (entity.StockAccount, error) {
	return r.GetAccount(ctx, entityType, entityID)
}

func (r *MemoryRepository) accountLocked(entityType entity.StockEntityType, entityID id.ID) entity.StockAccount {
	if a, ok := r.accounts[accountKey{entityType, entityID}]; ok {
		return a
	}
	return entity.StockAccount{
		EntityType:  entityType,
		EntityID:    entityID,
		Quantity:    types.Zero(),
		TotalValue:  types.Zero(),
		AverageCost: types.Zero(),
		MinQuantity: types.Zero(),
	}
}

// UpsertAccount writes the folded account state.
func (r *MemoryRepository) UpsertAccount(ctx context.Context, account entity.StockAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[accountKey{account.EntityType, account.EntityID}] = account
	return nil
}

// ListAccounts returns account rows matching the filter.
func (r *MemoryRepository) ListAccounts(ctx context.Context, filter AccountFilter) ([]entity.StockAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entity.StockAccount
	for _, a := range r.accounts {
		if filter.EntityType != nil && a.EntityType != *filter.EntityType {
			continue
		}
		if filter.ExcludeZero && a.Quantity.IsZero() {
			continue
		}
		if filter.LowStockOnly && !a.IsLowStock() {
			continue
		}
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType == out[j].EntityType {
			return out[i].EntityID.String() < out[j].EntityID.String()
		}
		return out[i].EntityType < out[j].EntityType
	})

	return out, nil
}

// LastCost returns the unit cost of the most recent costed addition.
func (r *MemoryRepository) LastCost(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (*types.Money, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if m.EntityType == entityType && m.EntityID == entityID &&
			m.UnitCost != nil && m.QuantityDelta.IsPositive() {
			cost := *m.UnitCost
			return &cost, nil
		}
	}
	return nil, nil
}

// RebuildAccounts refolds every account from the movement log.
// Quantity and average cost are derived and reset; min_quantity is
// configuration and survives the rebuild.
func (r *MemoryRepository) RebuildAccounts(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rebuilt := make(map[accountKey]entity.StockAccount, len(r.accounts))
	for key, a := range r.accounts {
		rebuilt[key] = entity.StockAccount{
			EntityType:  a.EntityType,
			EntityID:    a.EntityID,
			Quantity:    types.Zero(),
			TotalValue:  types.Zero(),
			AverageCost: types.Zero(),
			MinQuantity: a.MinQuantity,
		}
	}

	for _, m := range r.movements {
		key := accountKey{m.EntityType, m.EntityID}
		a, ok := rebuilt[key]
		if !ok {
			a = entity.StockAccount{
				EntityType:  m.EntityType,
				EntityID:    m.EntityID,
				Quantity:    types.Zero(),
				TotalValue:  types.Zero(),
				AverageCost: types.Zero(),
				MinQuantity: types.Zero(),
			}
		}
		rebuilt[key] = a.Apply(m)
	}

	r.accounts = rebuilt
	return nil
}

// Ensure interface compliance.
var _ Repository = (*MemoryRepository)(nil)
