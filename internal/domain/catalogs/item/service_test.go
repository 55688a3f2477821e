package item

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/stock"
)

func newTestService() (*Service, *stock.Service) {
	stockSvc := stock.NewService(stock.NewMemoryRepository())
	return NewService(NewMemoryRepository(), stockSvc), stockSvc
}

func TestCreateMirrorsMinQuantityToStockAccount(t *testing.T) {
	svc, stockSvc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, &Item{
		Type:        entity.EntityIngredient,
		Name:        "Flour 1kg",
		MinQuantity: types.MustQuantity("20"),
	})
	require.NoError(t, err)

	account, err := stockSvc.Account(ctx, entity.EntityIngredient, created.ID)
	require.NoError(t, err)
	assert.True(t, account.MinQuantity.Equal(types.MustQuantity("20")))
}

func TestCreateRejectsInvalidItem(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), &Item{
		Type: entity.EntityProduct,
		Name: "",
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	_, err = svc.Create(context.Background(), &Item{
		Type:      entity.EntityProduct,
		Name:      "Croissant",
		SalePrice: types.MustMoney("-1"),
	})
	require.Error(t, err)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestUpdateKeepsEntityTypeFixed(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, &Item{
		Type: entity.EntityIngredient,
		Name: "Sugar 1kg",
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, &Item{
		ID:   created.ID,
		Type: entity.EntityProduct,
		Name: "Sugar 1kg fine",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.EntityIngredient, updated.Type, "type changes would orphan movement history")
	assert.Equal(t, "Sugar 1kg fine", updated.Name)
}

func TestUpdateMirrorsChangedThreshold(t *testing.T) {
	svc, stockSvc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, &Item{
		Type:        entity.EntityIngredient,
		Name:        "Butter 500g",
		MinQuantity: types.MustQuantity("10"),
	})
	require.NoError(t, err)

	created.MinQuantity = types.MustQuantity("25")
	_, err = svc.Update(ctx, created)
	require.NoError(t, err)

	account, err := stockSvc.Account(ctx, entity.EntityIngredient, created.ID)
	require.NoError(t, err)
	assert.True(t, account.MinQuantity.Equal(types.MustQuantity("25")))
}

func TestDeactivateHidesFromDefaultListing(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, &Item{
		Type: entity.EntityProduct,
		Name: "Croissant",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, created.ID))

	active, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.List(ctx, Filter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEntityNameResolvesByTypeAndID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, &Item{
		Type: entity.EntityPackage,
		Name: "Breakfast Box",
	})
	require.NoError(t, err)

	name, err := svc.EntityName(ctx, entity.EntityPackage, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Breakfast Box", name)

	// Same id under the wrong type must not resolve.
	_, err = svc.EntityName(ctx, entity.EntityProduct, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.EntityName(ctx, entity.EntityProduct, id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
