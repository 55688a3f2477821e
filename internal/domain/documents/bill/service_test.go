package bill

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	appcontext "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/guard"
	"stockledger/internal/domain/registers/cash"
	"stockledger/internal/domain/registers/stock"
)

type noNames struct{}

func (noNames) EntityName(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (string, error) {
	return "", apperror.NewNotFound("item", entityID.String())
}

type fixture struct {
	ctx     context.Context
	svc     *Service
	repo    *MemoryRepository
	cashSvc *cash.Service

	bank id.ID
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

	stockSvc := stock.NewService(stock.NewMemoryRepository())
	f.cashSvc = cash.NewService(cash.NewMemoryRepository(), nil)
	protocol := guard.NewProtocol(tx.NewMemoryManager(), stockSvc, f.cashSvc, noNames{}, nil)
	f.svc = NewService(f.repo, protocol)

	bank, err := f.cashSvc.CreateAccount(f.ctx, id.Nil(), "Main")
	require.NoError(t, err)
	f.bank = bank.BankAccountID

	return f
}

func (f *fixture) fund(t *testing.T, amount string) {
	t.Helper()
	err := f.cashSvc.RecordMovements(f.ctx, []entity.CashMovement{{
		MovementBase:  entity.NewMovementBase("tenant-1", id.New(), "Installment", "tester"),
		BankAccountID: f.bank,
		AmountDelta:   types.MustMoney(amount),
	}})
	require.NoError(t, err)
}

func twoInstallmentBill(due time.Time) *Bill {
	return &Bill{
		SupplierName: "Moinho Sul",
		Total:        types.MustMoney("100.00"),
		Installments: []Installment{
			{DueDate: due, Amount: types.MustMoney("60.00")},
			{DueDate: due.AddDate(0, 1, 0), Amount: types.MustMoney("40.00")},
		},
	}
}

func TestCreateBillValidatesInstallmentSum(t *testing.T) {
	f := newFixture(t)

	b := twoInstallmentBill(time.Now().AddDate(0, 1, 0))
	b.Total = types.MustMoney("90.00")
	_, err := f.svc.CreateBill(f.ctx, b)
	require.Error(t, err, "installments must sum to the total")

	b = twoInstallmentBill(time.Now().AddDate(0, 1, 0))
	created, err := f.svc.CreateBill(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, created.Installments[0].Sequence)
	assert.Equal(t, StatusPending, created.Installments[0].Status)
}

func TestPayInstallmentDebitsAndFlips(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "100.00")

	created, err := f.svc.CreateBill(f.ctx, twoInstallmentBill(time.Now().AddDate(0, 1, 0)))
	require.NoError(t, err)
	inst := created.Installments[0]

	result, err := f.svc.PayInstallment(f.ctx, inst.ID, f.bank, false)
	require.NoError(t, err)
	require.True(t, result.Committed)

	balance, err := f.cashSvc.CurrentBalance(f.ctx, f.bank)
	require.NoError(t, err)
	assert.True(t, balance.Equal(types.MustMoney("40.00")))

	paid, err := f.repo.GetInstallment(f.ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.BankAccountID)
	assert.Equal(t, f.bank, *paid.BankAccountID)

	movements, err := f.cashSvc.MovementsByRecorder(f.ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.NotNil(t, movements[0].InstallmentID)
	assert.Equal(t, inst.ID, *movements[0].InstallmentID)
}

func TestPayInstallmentWarnsOnOverdraft(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "50.00")

	created, err := f.svc.CreateBill(f.ctx, twoInstallmentBill(time.Now().AddDate(0, 1, 0)))
	require.NoError(t, err)
	inst := created.Installments[0]

	result, err := f.svc.PayInstallment(f.ctx, inst.ID, f.bank, false)
	require.NoError(t, err)
	assert.False(t, result.Committed)
	require.Len(t, result.CashWarnings, 1)
	assert.True(t, result.CashWarnings[0].Resulting.Equal(types.MustMoney("-10.00")))

	pending, err := f.repo.GetInstallment(f.ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.Status, "warned payment flips nothing")

	result, err = f.svc.PayInstallment(f.ctx, inst.ID, f.bank, true)
	require.NoError(t, err)
	require.True(t, result.Committed)
	balance, err := f.cashSvc.CurrentBalance(f.ctx, f.bank)
	require.NoError(t, err)
	assert.True(t, balance.Equal(types.MustMoney("-10.00")))
}

func TestPayInstallmentOnlyWhenPending(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "200.00")

	created, err := f.svc.CreateBill(f.ctx, twoInstallmentBill(time.Now().AddDate(0, 1, 0)))
	require.NoError(t, err)
	inst := created.Installments[0]

	_, err = f.svc.PayInstallment(f.ctx, inst.ID, f.bank, false)
	require.NoError(t, err)

	_, err = f.svc.PayInstallment(f.ctx, inst.ID, f.bank, false)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInstallmentNotPending, appErr.Code)

	err = f.svc.CancelInstallment(f.ctx, inst.ID)
	require.Error(t, err, "paid installments cannot be cancelled either")
}

func TestOverdueIsDerivedAtRead(t *testing.T) {
	now := time.Now()

	pastDue := Installment{Status: StatusPending, DueDate: now.AddDate(0, 0, -1)}
	assert.Equal(t, StatusOverdue, pastDue.EffectiveStatus(now))

	dueToday := Installment{Status: StatusPending, DueDate: now}
	assert.Equal(t, StatusPending, dueToday.EffectiveStatus(now), "due today is not overdue yet")

	paidLate := Installment{Status: StatusPaid, DueDate: now.AddDate(0, 0, -10)}
	assert.Equal(t, StatusPaid, paidLate.EffectiveStatus(now))

	cancelled := Installment{Status: StatusCancelled, DueDate: now.AddDate(0, 0, -10)}
	assert.Equal(t, StatusCancelled, cancelled.EffectiveStatus(now))
}

func TestHasOutstandingInstallments(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "200.00")

	due := time.Now().AddDate(0, 1, 0)
	b := twoInstallmentBill(due)
	b.Installments[0].BankAccountID = &f.bank
	created, err := f.svc.CreateBill(f.ctx, b)
	require.NoError(t, err)

	outstanding, err := f.svc.HasOutstandingInstallments(f.ctx, f.bank)
	require.NoError(t, err)
	assert.True(t, outstanding)

	_, err = f.svc.PayInstallment(f.ctx, created.Installments[0].ID, f.bank, false)
	require.NoError(t, err)

	outstanding, err = f.svc.HasOutstandingInstallments(f.ctx, f.bank)
	require.NoError(t, err)
	assert.False(t, outstanding, "paying the assigned installment releases the account")
}

func TestCancelBillRefusedAfterPayment(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "200.00")

	created, err := f.svc.CreateBill(f.ctx, twoInstallmentBill(time.Now().AddDate(0, 1, 0)))
	require.NoError(t, err)

	_, err = f.svc.PayInstallment(f.ctx, created.Installments[0].ID, f.bank, false)
	require.NoError(t, err)

	err = f.svc.CancelBill(f.ctx, created.ID)
	require.Error(t, err)

	_, err = f.svc.GetBill(f.ctx, created.ID)
	require.NoError(t, err)
}
