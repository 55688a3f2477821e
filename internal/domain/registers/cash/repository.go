// Package cash provides the monetary side of the movement ledger:
// the append-only cash movement log and the derived bank account balances.
package cash

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

// Repository defines operations for the cash ledger.
type Repository interface {
	// Movement operations (append-only)

	// CreateMovements batch inserts movements (used during guarded commits)
	CreateMovements(ctx context.Context, movements []entity.CashMovement) error

	// ListMovements returns movement history for a bank account, newest first
	ListMovements(ctx context.Context, bankAccountID id.ID, filter MovementFilter) ([]entity.CashMovement, error)

	// GetMovementsByRecorder retrieves all movements created by a document
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.CashMovement, error)

	// Account operations

	// GetAccount returns the account row; NotFound when the bank account
	// was never created (unlike stock, cash accounts are explicit)
	GetAccount(ctx context.Context, bankAccountID id.ID) (entity.CashAccount, error)

	// GetAccountForUpdate returns the account with a row lock
	GetAccountForUpdate(ctx context.Context, bankAccountID id.ID) (entity.CashAccount, error)

	// CreateAccount registers a new bank account with zero balance
	CreateAccount(ctx context.Context, account entity.CashAccount) error

	// UpsertAccount writes the folded account state
	UpsertAccount(ctx context.Context, account entity.CashAccount) error

	// ListAccounts returns all accounts, optionally including inactive ones
	ListAccounts(ctx context.Context, includeInactive bool) ([]entity.CashAccount, error)

	// Maintenance

	// RebuildAccounts refolds every balance from the movement log
	RebuildAccounts(ctx context.Context) error
}

// MovementFilter for filtering cash movement history.
type MovementFilter struct {
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
