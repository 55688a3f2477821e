// Package stock provides the stock side of the movement ledger:
// the append-only movement log and the derived stock accounts.
package stock

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Repository defines operations for the stock ledger.
type Repository interface {
	// Movement operations (append-only; movements are never updated or deleted)

	// CreateMovements batch inserts movements (used during guarded commits)
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// ListMovements returns movement history for an entity, newest first
	ListMovements(ctx context.Context, entityType entity.StockEntityType, entityID id.ID, filter MovementFilter) ([]entity.StockMovement, error)

	// GetMovementsByRecorder retrieves all movements created by a document
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)

	// Account operations

	// GetAccount returns the current account row (zero row when absent)
	GetAccount(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (entity.StockAccount, error)

	// GetAccountForUpdate returns the account with a row lock for guarded commits
	GetAccountForUpdate(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (entity.StockAccount, error)

	// UpsertAccount writes the folded account state
	UpsertAccount(ctx context.Context, account entity.StockAccount) error

	// ListAccounts returns account rows matching the filter
	ListAccounts(ctx context.Context, filter AccountFilter) ([]entity.StockAccount, error)

	// Costing support

	// LastCost returns the unit cost of the most recent addition, nil when
	// the entity has never been added with a cost
	LastCost(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (*types.Money, error)

	// Maintenance

	// RebuildAccounts refolds every account from the movement log.
	// Thresholds (min_quantity) are configuration, not derived state, and survive.
	RebuildAccounts(ctx context.Context) error
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	Reason   *entity.StockReason
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

// AccountFilter for filtering account queries.
type AccountFilter struct {
	EntityType   *entity.StockEntityType
	ExcludeZero  bool
	LowStockOnly bool
}
