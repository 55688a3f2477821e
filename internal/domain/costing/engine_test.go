package costing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/stock"
)

func costedMovement(entityID id.ID, qty, cost string) entity.StockMovement {
	c := types.MustMoney(cost)
	return entity.StockMovement{
		MovementBase:  entity.NewMovementBase("tenant-1", id.New(), "Invoice", "tester"),
		EntityType:    entity.EntityIngredient,
		EntityID:      entityID,
		QuantityDelta: types.MustQuantity(qty),
		Reason:        entity.ReasonInvoiceLaunch,
		UnitCost:      &c,
	}
}

func TestAverageCostAcrossAdditions(t *testing.T) {
	account := entity.StockAccount{
		EntityType:  entity.EntityIngredient,
		EntityID:    id.New(),
		Quantity:    types.Zero(),
		AverageCost: types.Zero(),
	}

	account = account.Apply(costedMovement(account.EntityID, "10", "2.00"))
	require.True(t, account.AverageCost.Equal(types.MustMoney("2")))

	account = account.Apply(costedMovement(account.EntityID, "10", "4.00"))
	assert.True(t, account.Quantity.Equal(types.MustQuantity("20")))
	assert.True(t, account.TotalValue.Equal(types.MustMoney("60.00")))
	assert.True(t, account.AverageCost.Equal(types.MustMoney("3")),
		"10@2.00 plus 10@4.00 averages to 3.00, got %s", account.AverageCost)
}

func TestCostedReversalRestoresNonTerminatingAverage(t *testing.T) {
	account := entity.StockAccount{
		EntityType: entity.EntityIngredient,
		EntityID:   id.New(),
	}

	account = account.Apply(costedMovement(account.EntityID, "3", "1.00"))
	require.True(t, account.AverageCost.Equal(types.MustMoney("1")))

	// 3@1.00 plus 4@2.00 averages to 11/7, which no decimal terminates.
	account = account.Apply(costedMovement(account.EntityID, "4", "2.00"))
	require.True(t, account.TotalValue.Equal(types.MustMoney("11.00")))

	reversal := costedMovement(account.EntityID, "-4", "2.00")
	reversal.Reason = entity.ReasonInvoiceReversal
	account = account.Apply(reversal)

	assert.True(t, account.Quantity.Equal(types.MustQuantity("3")))
	assert.True(t, account.TotalValue.Equal(types.MustMoney("3.00")))
	assert.True(t, account.AverageCost.Equal(types.MustMoney("1")),
		"the reversal cancels the exact value, got average %s", account.AverageCost)
}

func TestDeductionKeepsAverage(t *testing.T) {
	account := entity.StockAccount{
		EntityType:  entity.EntityIngredient,
		EntityID:    id.New(),
		Quantity:    types.MustQuantity("20"),
		TotalValue:  types.MustMoney("60.00"),
		AverageCost: types.MustMoney("3.00"),
	}

	deduction := entity.StockMovement{
		MovementBase:  entity.NewMovementBase("tenant-1", id.New(), "Sale", "tester"),
		EntityType:    entity.EntityIngredient,
		EntityID:      account.EntityID,
		QuantityDelta: types.MustQuantity("-5"),
		Reason:        entity.ReasonSaleDeduction,
	}

	account = account.Apply(deduction)
	assert.True(t, account.Quantity.Equal(types.MustQuantity("15")))
	assert.True(t, account.AverageCost.Equal(types.MustMoney("3.00")),
		"deductions never move the average")
}

func TestPreviewAdditionIsPure(t *testing.T) {
	account := entity.StockAccount{
		Quantity:    types.MustQuantity("10"),
		TotalValue:  types.MustMoney("20.00"),
		AverageCost: types.MustMoney("2.00"),
	}

	preview := PreviewAddition(account, types.MustQuantity("10"), types.MustMoney("4.00"))
	assert.True(t, preview.NewQuantity.Equal(types.MustQuantity("20")))
	assert.True(t, preview.NewAverageCost.Equal(types.MustMoney("3")))

	// The snapshot is untouched.
	assert.True(t, account.Quantity.Equal(types.MustQuantity("10")))
	assert.True(t, account.AverageCost.Equal(types.MustMoney("2.00")))
}

func TestCostBasis(t *testing.T) {
	account := entity.StockAccount{
		Quantity:    types.MustQuantity("20"),
		AverageCost: types.MustMoney("3.00"),
	}
	basis := CostBasis(account, types.MustQuantity("5"))
	assert.True(t, basis.Equal(types.MustMoney("15.00")))
}

func TestEngineValidatesInput(t *testing.T) {
	engine := NewEngine(stock.NewMemoryRepository())
	ctx := context.Background()

	_, err := engine.PreviewAddition(ctx, entity.EntityIngredient, id.New(), types.MustQuantity("-1"), types.MustMoney("2.00"))
	assert.Error(t, err)

	_, err = engine.PreviewAddition(ctx, entity.EntityIngredient, id.New(), types.MustQuantity("1"), types.MustMoney("-2.00"))
	assert.Error(t, err)

	_, err = engine.CostBasisForDeduction(ctx, entity.EntityIngredient, id.New(), types.Zero())
	assert.Error(t, err)
}

func TestLastCostDistinctFromAverage(t *testing.T) {
	repo := stock.NewMemoryRepository()
	engine := NewEngine(repo)
	ctx := context.Background()
	entityID := id.New()

	first := costedMovement(entityID, "10", "2.00")
	second := costedMovement(entityID, "10", "4.00")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	require.NoError(t, repo.CreateMovements(ctx, []entity.StockMovement{first, second}))

	last, err := engine.LastCost(ctx, entity.EntityIngredient, entityID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(types.MustMoney("4.00")), "last cost is the latest lot, not the average")

	// Entities never received with a cost have no last cost.
	none, err := engine.LastCost(ctx, entity.EntityIngredient, id.New())
	require.NoError(t, err)
	assert.Nil(t, none)
}
