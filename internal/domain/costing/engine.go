// Package costing computes weighted-average costs over stock accounts.
// Weighted average is the only costing policy; FIFO/LIFO layers are
// deliberately not modeled.
package costing

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/stock"
)

// AdditionPreview is the projected account state after an addition.
type AdditionPreview struct {
	NewQuantity    types.Quantity `json:"newQuantity"`
	NewAverageCost types.Money    `json:"newAverageCost"`
}

// PreviewAddition computes the account state an addition would produce.
// Pure function over the account snapshot; no side effects. The
// projection runs the same value-register math as the fold: quantity and
// value accumulate, the average is derived.
func PreviewAddition(account entity.StockAccount, quantity types.Quantity, unitCost types.Money) AdditionPreview {
	newQuantity := account.Quantity.Add(quantity)
	newValue := account.TotalValue.Add(quantity.Mul(unitCost))
	return AdditionPreview{
		NewQuantity:    newQuantity,
		NewAverageCost: types.DeriveAverage(newValue, newQuantity),
	}
}

// CostBasis returns quantity x current average cost, the figure used for
// profit-margin reporting on deductions. Pure function; the deduction
// itself never changes the average.
func CostBasis(account entity.StockAccount, quantity types.Quantity) types.Money {
	return quantity.Mul(account.AverageCost)
}

// Engine exposes costing previews backed by the stock ledger.
type Engine struct {
	repo stock.Repository
}

// NewEngine creates a costing engine over the stock repository.
func NewEngine(repo stock.Repository) *Engine {
	return &Engine{repo: repo}
}

// PreviewAddition projects quantity and average cost after an addition of
// the given quantity at the given unit cost.
func (e *Engine) PreviewAddition(ctx context.Context, entityType entity.StockEntityType, entityID id.ID, quantity types.Quantity, unitCost types.Money) (AdditionPreview, error) {
	if !quantity.IsPositive() {
		return AdditionPreview{}, apperror.NewValidation("addition quantity must be positive")
	}
	if unitCost.IsNegative() {
		return AdditionPreview{}, apperror.NewValidation("unit cost must not be negative")
	}

	account, err := e.repo.GetAccount(ctx, entityType, entityID)
	if err != nil {
		return AdditionPreview{}, fmt.Errorf("get account: %w", err)
	}

	return PreviewAddition(account, quantity, unitCost), nil
}

// CostBasisForDeduction returns the total cost a deduction consumes.
func (e *Engine) CostBasisForDeduction(ctx context.Context, entityType entity.StockEntityType, entityID id.ID, quantity types.Quantity) (types.Money, error) {
	if !quantity.IsPositive() {
		return types.Zero(), apperror.NewValidation("deduction quantity must be positive")
	}

	account, err := e.repo.GetAccount(ctx, entityType, entityID)
	if err != nil {
		return types.Zero(), fmt.Errorf("get account: %w", err)
	}

	return CostBasis(account, quantity), nil
}

// LastCost returns the most recent addition's unit cost, or nil when the
// entity has never been received with a cost. Distinct from the running
// average: the UI shows "last paid price" next to "average cost".
func (e *Engine) LastCost(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (*types.Money, error) {
	return e.repo.LastCost(ctx, entityType, entityID)
}
