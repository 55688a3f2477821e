package sale

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcontext "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/guard"
	"stockledger/internal/domain/registers/cash"
	"stockledger/internal/domain/registers/stock"
)

type fixture struct {
	ctx      context.Context
	svc      *Service
	stockSvc *stock.Service
	catalog  *item.Service
	repo     *MemoryRepository

	pizza id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo: NewMemoryRepository(),
	}
	f.ctx = appcontext.WithActor(context.Background(), &appcontext.ActorContext{
		ActorID:  "tester",
		TenantID: "tenant-1",
	})

	stockRepo := stock.NewMemoryRepository()
	f.stockSvc = stock.NewService(stockRepo)
	cashSvc := cash.NewService(cash.NewMemoryRepository(), nil)
	f.catalog = item.NewService(item.NewMemoryRepository(), f.stockSvc)

	protocol := guard.NewProtocol(tx.NewMemoryManager(), f.stockSvc, cashSvc, f.catalog, nil)
	f.svc = NewService(f.repo, protocol, f.stockSvc, f.catalog)

	pizza, err := f.catalog.Create(f.ctx, &item.Item{
		Type:      entity.EntityProduct,
		Name:      "Pizza",
		SalePrice: types.MustMoney("10.00"),
	})
	require.NoError(t, err)
	f.pizza = pizza.ID

	return f
}

func (f *fixture) seedStock(t *testing.T, qty string) {
	t.Helper()
	cost := types.MustMoney("4.00")
	err := f.stockSvc.RecordMovements(f.ctx, []entity.StockMovement{{
		MovementBase:  entity.NewMovementBase("tenant-1", id.New(), "Invoice", "tester"),
		EntityType:    entity.EntityProduct,
		EntityID:      f.pizza,
		QuantityDelta: types.MustQuantity(qty),
		Reason:        entity.ReasonInvoiceLaunch,
		UnitCost:      &cost,
	}})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T) types.Quantity {
	t.Helper()
	qty, err := f.stockSvc.CurrentQuantity(f.ctx, entity.EntityProduct, f.pizza)
	require.NoError(t, err)
	return qty
}

func saleOf(entityID id.ID, qty string) *Sale {
	return &Sale{
		CustomerName: "Walk-in",
		Items: []SaleItem{{
			EntityType: entity.EntityProduct,
			EntityID:   entityID,
			Quantity:   types.MustQuantity(qty),
		}},
	}
}

func TestCreateDeductsStockAndSnapshotsPrice(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5")

	result, err := f.svc.Create(f.ctx, saleOf(f.pizza, "2"), false)
	require.NoError(t, err)
	require.True(t, result.Committed())

	assert.True(t, f.quantity(t).Equal(types.MustQuantity("3")))
	assert.True(t, result.Sale.Total.Equal(types.MustMoney("20.00")),
		"price snapshot comes from the catalog")

	stored, err := f.svc.GetByID(f.ctx, result.Sale.ID)
	require.NoError(t, err)
	assert.True(t, stored.Items[0].UnitPrice.Equal(types.MustMoney("10.00")))

	movements, err := f.stockSvc.MovementsByRecorder(f.ctx, result.Sale.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, entity.ReasonSaleDeduction, movements[0].Reason)
}

func TestCreateWarnsAndLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5")

	result, err := f.svc.Create(f.ctx, saleOf(f.pizza, "8"), false)
	require.NoError(t, err)

	assert.False(t, result.Committed())
	require.Len(t, result.Guard.StockWarnings, 1)
	assert.True(t, result.Guard.StockWarnings[0].Resulting.Equal(types.MustQuantity("-3")))

	assert.True(t, f.quantity(t).Equal(types.MustQuantity("5")), "warned sale deducts nothing")
	sales, err := f.svc.List(f.ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, sales, "warned sale stores no document")
}

func TestCreateForcedCommitsNegative(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5")

	result, err := f.svc.Create(f.ctx, saleOf(f.pizza, "8"), true)
	require.NoError(t, err)

	assert.True(t, result.Committed())
	assert.True(t, f.quantity(t).Equal(types.MustQuantity("-3")))
}

func TestCreateRejectsIngredients(t *testing.T) {
	f := newFixture(t)

	flour, err := f.catalog.Create(f.ctx, &item.Item{
		Type: entity.EntityIngredient,
		Name: "Flour",
	})
	require.NoError(t, err)

	_, err = f.svc.Create(f.ctx, saleOf(flour.ID, "1"), false)
	assert.Error(t, err, "ingredients are not sellable")
}

func TestUpdateReversesThenReapplies(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5")

	created, err := f.svc.Create(f.ctx, saleOf(f.pizza, "2"), false)
	require.NoError(t, err)
	require.True(t, created.Committed())

	updated := saleOf(f.pizza, "3")
	updated.ID = created.Sale.ID
	result, err := f.svc.Update(f.ctx, updated, UpdateOptions{})
	require.NoError(t, err)
	require.True(t, result.Committed())

	assert.True(t, f.quantity(t).Equal(types.MustQuantity("2")),
		"reversal of -2 plus new -3 leaves 5-3")

	movements, err := f.stockSvc.MovementsByRecorder(f.ctx, created.Sale.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 3, "original deduction, its reversal, the new deduction")
}

func TestUpdatePriceDriftGate(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "10")

	created, err := f.svc.Create(f.ctx, saleOf(f.pizza, "2"), false)
	require.NoError(t, err)
	require.True(t, created.Committed())

	// Catalog price moves after the sale stored its snapshot.
	catalogItem, err := f.catalog.GetByID(f.ctx, f.pizza)
	require.NoError(t, err)
	catalogItem.SalePrice = types.MustMoney("12.00")
	_, err = f.catalog.Update(f.ctx, catalogItem)
	require.NoError(t, err)

	updated := saleOf(f.pizza, "3")
	updated.ID = created.Sale.ID
	result, err := f.svc.Update(f.ctx, updated, UpdateOptions{})
	require.NoError(t, err)

	assert.False(t, result.Committed())
	require.Len(t, result.PriceChanges, 1)
	assert.True(t, result.PriceChanges[0].StoredPrice.Equal(types.MustMoney("10.00")))
	assert.True(t, result.PriceChanges[0].CurrentPrice.Equal(types.MustMoney("12.00")))
	assert.True(t, f.quantity(t).Equal(types.MustQuantity("8")), "drift gate commits nothing")

	// Keeping the historical price resolves the gate.
	updated = saleOf(f.pizza, "3")
	updated.ID = created.Sale.ID
	result, err = f.svc.Update(f.ctx, updated, UpdateOptions{PriceResolution: PriceKeep})
	require.NoError(t, err)
	require.True(t, result.Committed())
	assert.True(t, result.Sale.Items[0].UnitPrice.Equal(types.MustMoney("10.00")))
	assert.True(t, result.Sale.Total.Equal(types.MustMoney("30.00")))
}

func TestUpdateAdoptsCurrentPrice(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "10")

	created, err := f.svc.Create(f.ctx, saleOf(f.pizza, "2"), false)
	require.NoError(t, err)

	catalogItem, err := f.catalog.GetByID(f.ctx, f.pizza)
	require.NoError(t, err)
	catalogItem.SalePrice = types.MustMoney("12.00")
	_, err = f.catalog.Update(f.ctx, catalogItem)
	require.NoError(t, err)

	updated := saleOf(f.pizza, "2")
	updated.ID = created.Sale.ID
	result, err := f.svc.Update(f.ctx, updated, UpdateOptions{PriceResolution: PriceAdopt})
	require.NoError(t, err)
	require.True(t, result.Committed())
	assert.True(t, result.Sale.Items[0].UnitPrice.Equal(types.MustMoney("12.00")))
	assert.True(t, result.Sale.Total.Equal(types.MustMoney("24.00")))
}

func TestDeleteRestoresStock(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5")

	created, err := f.svc.Create(f.ctx, saleOf(f.pizza, "2"), false)
	require.NoError(t, err)
	require.True(t, created.Committed())
	require.True(t, f.quantity(t).Equal(types.MustQuantity("3")))

	result, err := f.svc.Delete(f.ctx, created.Sale.ID, false)
	require.NoError(t, err)
	assert.True(t, result.Guard.Committed)

	assert.True(t, f.quantity(t).Equal(types.MustQuantity("5")))
	_, err = f.svc.GetByID(f.ctx, created.Sale.ID)
	assert.Error(t, err)
}

func TestPreviewReportsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5")

	result, err := f.svc.Preview(f.ctx, saleOf(f.pizza, "8"))
	require.NoError(t, err)
	require.Len(t, result.StockWarnings, 1)

	assert.True(t, f.quantity(t).Equal(types.MustQuantity("5")))
	sales, err := f.svc.List(f.ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
}
