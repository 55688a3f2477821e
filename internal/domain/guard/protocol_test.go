package guard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	appcontext "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/cash"
	"stockledger/internal/domain/registers/stock"
)

type staticNames map[id.ID]string

func (n staticNames) EntityName(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (string, error) {
	if name, ok := n[entityID]; ok {
		return name, nil
	}
	return "", apperror.NewNotFound("item", entityID.String())
}

type recordingAuditor struct {
	mu    sync.Mutex
	calls int
}

func (a *recordingAuditor) LogForcedCommit(ctx context.Context, recorderID id.ID, recorderType string, stockWarnings, cashWarnings []BalanceWarning) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return nil
}

type fixture struct {
	ctx       context.Context
	protocol  *Protocol
	stockRepo *stock.MemoryRepository
	cashRepo  *cash.MemoryRepository
	names     staticNames
	auditor   *recordingAuditor

	flour id.ID
	bank  id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		stockRepo: stock.NewMemoryRepository(),
		cashRepo:  cash.NewMemoryRepository(),
		auditor:   &recordingAuditor{},
		flour:     id.New(),
		bank:      id.New(),
	}
	f.names = staticNames{f.flour: "Flour"}

	f.ctx = appcontext.WithActor(context.Background(), &appcontext.ActorContext{
		ActorID:  "tester",
		TenantID: "tenant-1",
	})

	stockSvc := stock.NewService(f.stockRepo)
	cashSvc := cash.NewService(f.cashRepo, nil)
	f.protocol = NewProtocol(tx.NewMemoryManager(), stockSvc, cashSvc, f.names, f.auditor)

	require.NoError(t, f.cashRepo.CreateAccount(f.ctx, entity.CashAccount{
		BankAccountID: f.bank,
		Name:          "Main",
		Balance:       types.Zero(),
		Active:        true,
	}))

	return f
}

func (f *fixture) request() Request {
	return Request{
		TenantID:     "tenant-1",
		RecorderID:   id.New(),
		RecorderType: "Sale",
		ActorID:      "tester",
	}
}

// seedStock commits an addition so the account has a known quantity.
func (f *fixture) seedStock(t *testing.T, quantity, unitCost string) {
	t.Helper()
	cost := types.MustMoney(unitCost)
	req := f.request()
	req.RecorderType = "Invoice"
	req.StockLines = []StockLine{{
		EntityType: entity.EntityIngredient,
		EntityID:   f.flour,
		Delta:      types.MustQuantity(quantity),
		Reason:     entity.ReasonInvoiceLaunch,
		UnitCost:   &cost,
	}}
	result, err := f.protocol.Execute(f.ctx, req)
	require.NoError(t, err)
	require.True(t, result.Committed)
}

func (f *fixture) movementCount(t *testing.T) int {
	t.Helper()
	history, err := f.stockRepo.ListMovements(f.ctx, entity.EntityIngredient, f.flour, stock.MovementFilter{})
	require.NoError(t, err)
	return len(history)
}

func TestExecuteWarnsWithoutForce(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5", "2.00")
	before := f.movementCount(t)

	req := f.request()
	req.StockLines = []StockLine{{
		EntityType: entity.EntityIngredient,
		EntityID:   f.flour,
		Delta:      types.MustQuantity("-8"),
		Reason:     entity.ReasonSaleDeduction,
	}}

	result, err := f.protocol.Execute(f.ctx, req)
	require.NoError(t, err)

	assert.False(t, result.Committed)
	require.Len(t, result.StockWarnings, 1)
	w := result.StockWarnings[0]
	assert.Equal(t, "Flour", w.EntityName)
	assert.True(t, w.Current.Equal(types.MustQuantity("5")))
	assert.True(t, w.Requested.Equal(types.MustQuantity("-8")))
	assert.True(t, w.Resulting.Equal(types.MustQuantity("-3")))

	// A warned request leaves no trace.
	assert.Equal(t, before, f.movementCount(t))
	account, err := f.stockRepo.GetAccount(f.ctx, entity.EntityIngredient, f.flour)
	require.NoError(t, err)
	assert.True(t, account.Quantity.Equal(types.MustQuantity("5")))
}

func TestExecuteForceCommitsNegative(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5", "2.00")

	req := f.request()
	req.Force = true
	req.StockLines = []StockLine{{
		EntityType: entity.EntityIngredient,
		EntityID:   f.flour,
		Delta:      types.MustQuantity("-8"),
		Reason:     entity.ReasonSaleDeduction,
	}}

	result, err := f.protocol.Execute(f.ctx, req)
	require.NoError(t, err)

	assert.True(t, result.Committed)
	require.Len(t, result.StockWarnings, 1, "forced commits still report what went negative")

	account, err := f.stockRepo.GetAccount(f.ctx, entity.EntityIngredient, f.flour)
	require.NoError(t, err)
	assert.True(t, account.Quantity.Equal(types.MustQuantity("-3")))
	assert.Equal(t, 1, f.auditor.calls, "forced override is audited")
}

func TestZeroDeltaLinesAreDropped(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5", "2.00")
	before := f.movementCount(t)

	req := f.request()
	req.StockLines = []StockLine{
		{EntityType: entity.EntityIngredient, EntityID: f.flour, Delta: types.Zero(), Reason: entity.ReasonSaleDeduction},
		{EntityType: entity.EntityIngredient, EntityID: f.flour, Delta: types.MustQuantity("-1"), Reason: entity.ReasonSaleDeduction},
	}

	result, err := f.protocol.Execute(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Committed)
	assert.Equal(t, before+1, f.movementCount(t), "zero-delta line appends nothing")
}

func TestDuplicateLinesAggregateBeforeCheck(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5", "2.00")

	req := f.request()
	req.StockLines = []StockLine{
		{EntityType: entity.EntityIngredient, EntityID: f.flour, Delta: types.MustQuantity("-3"), Reason: entity.ReasonSaleDeduction},
		{EntityType: entity.EntityIngredient, EntityID: f.flour, Delta: types.MustQuantity("-3"), Reason: entity.ReasonSaleDeduction},
	}

	result, err := f.protocol.Execute(f.ctx, req)
	require.NoError(t, err)

	assert.False(t, result.Committed)
	require.Len(t, result.StockWarnings, 1, "duplicate lines warn once with the summed delta")
	w := result.StockWarnings[0]
	assert.True(t, w.Requested.Equal(types.MustQuantity("-6")))
	assert.True(t, w.Resulting.Equal(types.MustQuantity("-1")))
}

func TestSideEffectFailureFailsRequest(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5", "2.00")

	req := f.request()
	req.StockLines = []StockLine{{
		EntityType: entity.EntityIngredient,
		EntityID:   f.flour,
		Delta:      types.MustQuantity("-2"),
		Reason:     entity.ReasonSaleDeduction,
	}}
	req.SideEffect = func(ctx context.Context) error {
		return errors.New("document write failed")
	}

	// The transaction carries the error out; against Postgres the rollback
	// also discards the appended movements.
	_, err := f.protocol.Execute(f.ctx, req)
	require.Error(t, err)
}

func TestForceNeverBypassesValidation(t *testing.T) {
	f := newFixture(t)

	req := f.request()
	req.Force = true
	req.StockLines = []StockLine{{
		EntityType: "gadget",
		EntityID:   id.New(),
		Delta:      types.MustQuantity("-1"),
		Reason:     entity.ReasonSaleDeduction,
	}}

	_, err := f.protocol.Execute(f.ctx, req)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestManualCorrectionRequiresDetail(t *testing.T) {
	f := newFixture(t)

	req := f.request()
	req.StockLines = []StockLine{{
		EntityType: entity.EntityIngredient,
		EntityID:   f.flour,
		Delta:      types.MustQuantity("-1"),
		Reason:     entity.ReasonManualCorrection,
	}}

	_, err := f.protocol.Execute(f.ctx, req)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestUnknownEntityFailsWholeRequest(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5", "2.00")
	before := f.movementCount(t)

	req := f.request()
	req.Force = true
	req.StockLines = []StockLine{
		{EntityType: entity.EntityIngredient, EntityID: f.flour, Delta: types.MustQuantity("-1"), Reason: entity.ReasonSaleDeduction},
		{EntityType: entity.EntityIngredient, EntityID: id.New(), Delta: types.MustQuantity("-1"), Reason: entity.ReasonSaleDeduction},
	}

	_, err := f.protocol.Execute(f.ctx, req)
	require.Error(t, err)
	assert.Equal(t, before, f.movementCount(t))
}

func TestInactiveBankAccountRejected(t *testing.T) {
	f := newFixture(t)

	account, err := f.cashRepo.GetAccount(f.ctx, f.bank)
	require.NoError(t, err)
	account.Active = false
	require.NoError(t, f.cashRepo.UpsertAccount(f.ctx, account))

	req := f.request()
	req.CashLines = []CashLine{{
		BankAccountID: f.bank,
		Delta:         types.MustMoney("100"),
	}}

	_, err = f.protocol.Execute(f.ctx, req)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAccountInUse, appErr.Code)
}

func TestUnknownBankAccountIsValidationError(t *testing.T) {
	f := newFixture(t)

	req := f.request()
	req.CashLines = []CashLine{{
		BankAccountID: id.New(),
		Delta:         types.MustMoney("-10"),
	}}

	_, err := f.protocol.Execute(f.ctx, req)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestCashOverdraftWarnsAndForces(t *testing.T) {
	f := newFixture(t)

	req := f.request()
	req.CashLines = []CashLine{{
		BankAccountID: f.bank,
		Delta:         types.MustMoney("-50"),
		Description:   "rent",
	}}

	result, err := f.protocol.Execute(f.ctx, req)
	require.NoError(t, err)
	assert.False(t, result.Committed)
	require.Len(t, result.CashWarnings, 1)
	assert.True(t, result.CashWarnings[0].Resulting.Equal(types.MustMoney("-50")))

	req.Force = true
	req.RecorderID = id.New()
	result, err = f.protocol.Execute(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Committed)

	account, err := f.cashRepo.GetAccount(f.ctx, f.bank)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(types.MustMoney("-50")))
}

func TestPreviewWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "5", "2.00")
	before := f.movementCount(t)

	req := f.request()
	req.StockLines = []StockLine{{
		EntityType: entity.EntityIngredient,
		EntityID:   f.flour,
		Delta:      types.MustQuantity("-8"),
		Reason:     entity.ReasonSaleDeduction,
	}}

	result, err := f.protocol.Preview(f.ctx, req)
	require.NoError(t, err)
	require.Len(t, result.StockWarnings, 1)
	assert.False(t, result.Committed)
	assert.Equal(t, before, f.movementCount(t))
}

func TestConcurrentForcedDeductionsSerialize(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "10", "1.00")

	run := func(done chan<- error) {
		req := f.request()
		req.Force = true
		req.StockLines = []StockLine{{
			EntityType: entity.EntityIngredient,
			EntityID:   f.flour,
			Delta:      types.MustQuantity("-6"),
			Reason:     entity.ReasonSaleDeduction,
		}}
		_, err := f.protocol.Execute(f.ctx, req)
		done <- err
	}

	done := make(chan error, 2)
	go run(done)
	go run(done)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	account, err := f.stockRepo.GetAccount(f.ctx, entity.EntityIngredient, f.flour)
	require.NoError(t, err)
	assert.True(t, account.Quantity.Equal(types.MustQuantity("-2")),
		"both deductions apply under serialization, never a lost update")

	history, err := f.stockRepo.ListMovements(f.ctx, entity.EntityIngredient, f.flour, stock.MovementFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 3, "seed plus exactly two deductions")
}

// flakyStockRepo fails the first locked read with a concurrency conflict
// to exercise the single retry.
type flakyStockRepo struct {
	stock.Repository
	mu     sync.Mutex
	failed bool
}

func (r *flakyStockRepo) GetAccountForUpdate(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (entity.StockAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.failed {
		r.failed = true
		return entity.StockAccount{}, apperror.NewConcurrentModification("stock account", entityID.String())
	}
	return r.Repository.GetAccountForUpdate(ctx, entityType, entityID)
}

func TestConflictRetriedExactlyOnce(t *testing.T) {
	f := newFixture(t)

	flaky := &flakyStockRepo{Repository: f.stockRepo}
	protocol := NewProtocol(tx.NewMemoryManager(), stock.NewService(flaky), cash.NewService(f.cashRepo, nil), f.names, nil)

	cost := types.MustMoney("2.00")
	req := f.request()
	req.StockLines = []StockLine{{
		EntityType: entity.EntityIngredient,
		EntityID:   f.flour,
		Delta:      types.MustQuantity("3"),
		Reason:     entity.ReasonAddition,
		UnitCost:   &cost,
	}}

	result, err := protocol.Execute(f.ctx, req)
	require.NoError(t, err, "first conflict is retried transparently")
	assert.True(t, result.Committed)

	account, err := f.stockRepo.GetAccount(f.ctx, entity.EntityIngredient, f.flour)
	require.NoError(t, err)
	assert.True(t, account.Quantity.Equal(types.MustQuantity("3")))
}
