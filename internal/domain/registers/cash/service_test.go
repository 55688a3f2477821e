package cash

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

type stubChecker struct {
	outstanding bool
}

func (s stubChecker) HasOutstandingInstallments(ctx context.Context, bankAccountID id.ID) (bool, error) {
	return s.outstanding, nil
}

func cashMovement(bankAccountID id.ID, amount string) entity.CashMovement {
	return entity.CashMovement{
		MovementBase:  entity.NewMovementBase("tenant-1", id.New(), "Installment", "tester"),
		BankAccountID: bankAccountID,
		AmountDelta:   types.MustMoney(amount),
	}
}

func TestRecordMovementsFoldsBalance(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, id.Nil(), "Main")
	require.NoError(t, err)

	err = svc.RecordMovements(ctx, []entity.CashMovement{
		cashMovement(account.BankAccountID, "100.00"),
		cashMovement(account.BankAccountID, "-30.00"),
	})
	require.NoError(t, err)

	balance, err := svc.CurrentBalance(ctx, account.BankAccountID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(types.MustMoney("70.00")))
}

func TestUnknownAccountIsNotFound(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)

	_, err := svc.CurrentBalance(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err), "bank accounts are explicit, never implicit")
}

func TestDeactivateBlockedByOutstandingInstallments(t *testing.T) {
	svc := NewService(NewMemoryRepository(), stubChecker{outstanding: true})
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, id.Nil(), "Main")
	require.NoError(t, err)

	err = svc.Deactivate(ctx, account.BankAccountID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAccountInUse, appErr.Code)
}

func TestDeactivateAndReactivateKeepHistory(t *testing.T) {
	svc := NewService(NewMemoryRepository(), stubChecker{outstanding: false})
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, id.Nil(), "Main")
	require.NoError(t, err)
	require.NoError(t, svc.RecordMovements(ctx, []entity.CashMovement{
		cashMovement(account.BankAccountID, "50.00"),
	}))

	require.NoError(t, svc.Deactivate(ctx, account.BankAccountID))

	got, err := svc.Account(ctx, account.BankAccountID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.True(t, got.Balance.Equal(types.MustMoney("50.00")), "deactivation never touches history")

	require.NoError(t, svc.Activate(ctx, account.BankAccountID))
	got, err = svc.Account(ctx, account.BankAccountID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestRebuildAccountsReplaysLog(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, id.Nil(), "Main")
	require.NoError(t, err)
	require.NoError(t, svc.RecordMovements(ctx, []entity.CashMovement{
		cashMovement(account.BankAccountID, "100.00"),
		cashMovement(account.BankAccountID, "-60.00"),
		cashMovement(account.BankAccountID, "-70.00"),
	}))

	require.NoError(t, svc.RebuildAccounts(ctx))

	got, err := svc.Account(ctx, account.BankAccountID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(types.MustMoney("-30.00")))
	assert.Equal(t, "Main", got.Name, "name is configuration and survives the rebuild")
	assert.True(t, got.Active)
}
