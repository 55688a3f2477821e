package entity

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// StockAccount is the derived balance row for one stock entity.
// It is a materialized view over the movement log: owned by the log,
// mutated only through Apply, rebuildable by replay.
type StockAccount struct {
	// Dimensions
	EntityType StockEntityType `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`

	// Resources. TotalValue is the cumulative cost value of the stock on
	// hand; AverageCost is TotalValue over Quantity, stored for reads.
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	TotalValue  types.Money    `db:"total_value" json:"totalValue"`
	AverageCost types.Money    `db:"average_cost" json:"averageCost"`

	// MinQuantity is the low-stock flagging threshold.
	MinQuantity types.Quantity `db:"min_quantity" json:"minQuantity"`

	// Metadata
	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Apply folds one movement into the account and returns the new state.
// This is a pure function: the guard protocol decides whether a movement
// may commit, the fold always accepts an approved movement.
//
// The account is a value register: cost-carrying movements add their
// exact delta x unit_cost into TotalValue and the average is derived by
// a single division, so a reversal line carrying the original cost with
// a negated delta cancels the launch value exactly, including averages
// a non-terminating division rounded. Costless deductions use the
// current average but never change it; their value follows quantity.
// Whenever quantity reaches zero or below the value and average reset
// to zero.
func (a StockAccount) Apply(m StockMovement) StockAccount {
	next := a
	next.Quantity = a.Quantity.Add(m.QuantityDelta)
	if m.UnitCost != nil {
		next.TotalValue = a.TotalValue.Add(m.QuantityDelta.Mul(*m.UnitCost))
		if next.Quantity.Sign() <= 0 {
			next.TotalValue = types.Zero()
		}
		next.AverageCost = types.DeriveAverage(next.TotalValue, next.Quantity)
	} else if next.Quantity.Sign() <= 0 {
		next.TotalValue = types.Zero()
	} else {
		next.TotalValue = next.Quantity.Mul(a.AverageCost)
	}
	next.LastMovementAt = m.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	return next
}

// IsLowStock reports whether the quantity fell below the threshold.
func (a StockAccount) IsLowStock() bool {
	if a.MinQuantity.IsZero() {
		return false
	}
	return a.Quantity.LessThan(a.MinQuantity)
}

// CashAccount is the derived balance row for one bank account.
// Balance is signed: it may go negative, but only after an explicit
// forced confirmation through the guard protocol.
type CashAccount struct {
	BankAccountID id.ID  `db:"bank_account_id" json:"bankAccountId"`
	Name          string `db:"name" json:"name"`

	Balance types.Money `db:"balance" json:"balance"`

	// Active is a status flag; deactivation never deletes history.
	Active bool `db:"active" json:"active"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Apply folds one movement into the account and returns the new state.
func (a CashAccount) Apply(m CashMovement) CashAccount {
	next := a
	next.Balance = a.Balance.Add(m.AmountDelta)
	next.LastMovementAt = m.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	return next
}
