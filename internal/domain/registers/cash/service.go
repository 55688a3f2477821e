package cash

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// OutstandingChecker reports whether a bank account is still referenced by
// unpaid bill installments. Implemented by the bill repository; injected
// here so account deactivation can be blocked without a package cycle.
type OutstandingChecker interface {
	HasOutstandingInstallments(ctx context.Context, bankAccountID id.ID) (bool, error)
}

// Service provides business operations for the cash ledger.
type Service struct {
	repo        Repository
	outstanding OutstandingChecker
}

// NewService creates a new cash ledger service.
// outstanding may be nil when installment linkage is not wired (tests).
func NewService(repo Repository, outstanding OutstandingChecker) *Service {
	return &Service{
		repo:        repo,
		outstanding: outstanding,
	}
}

// RecordMovements validates and appends movements, folding each into its
// account balance. Must run inside a transaction that holds the account
// locks; the guard protocol is the only caller.
func (s *Service) RecordMovements(ctx context.Context, movements []entity.CashMovement) error {
	if len(movements) == 0 {
		return nil
	}

	for i := range movements {
		if err := movements[i].Validate(); err != nil {
			return fmt.Errorf("movement %d: %w", i, err)
		}
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	for i := range movements {
		m := movements[i]
		account, err := s.repo.GetAccountForUpdate(ctx, m.BankAccountID)
		if err != nil {
			return fmt.Errorf("get account %s: %w", m.BankAccountID, err)
		}
		if err := s.repo.UpsertAccount(ctx, account.Apply(m)); err != nil {
			return fmt.Errorf("fold account %s: %w", m.BankAccountID, err)
		}
	}

	logger.Info(ctx, "recorded cash movements",
		"count", len(movements),
		"recorder_id", movements[0].RecorderID,
	)

	return nil
}

// CurrentBalance returns the current balance for a bank account.
func (s *Service) CurrentBalance(ctx context.Context, bankAccountID id.ID) (types.Money, error) {
	account, err := s.repo.GetAccount(ctx, bankAccountID)
	if err != nil {
		return types.Zero(), err
	}
	return account.Balance, nil
}

// Account returns the full account row.
func (s *Service) Account(ctx context.Context, bankAccountID id.ID) (entity.CashAccount, error) {
	return s.repo.GetAccount(ctx, bankAccountID)
}

// AccountForUpdate returns the account under a row lock for the guard
// protocol's commit step.
func (s *Service) AccountForUpdate(ctx context.Context, bankAccountID id.ID) (entity.CashAccount, error) {
	return s.repo.GetAccountForUpdate(ctx, bankAccountID)
}

// MovementHistory returns the statement for a bank account, newest first.
func (s *Service) MovementHistory(ctx context.Context, bankAccountID id.ID, filter MovementFilter) ([]entity.CashMovement, error) {
	return s.repo.ListMovements(ctx, bankAccountID, filter)
}

// MovementsByRecorder returns the movements a document created, used to
// build reversal lines.
func (s *Service) MovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.CashMovement, error) {
	return s.repo.GetMovementsByRecorder(ctx, recorderID)
}

// ListAccounts returns bank accounts, optionally including inactive ones.
func (s *Service) ListAccounts(ctx context.Context, includeInactive bool) ([]entity.CashAccount, error) {
	return s.repo.ListAccounts(ctx, includeInactive)
}

// CreateAccount registers a new bank account.
func (s *Service) CreateAccount(ctx context.Context, bankAccountID id.ID, name string) (entity.CashAccount, error) {
	if name == "" {
		return entity.CashAccount{}, apperror.NewValidation("account name is required")
	}
	if id.IsNil(bankAccountID) {
		bankAccountID = id.New()
	}

	account := entity.CashAccount{
		BankAccountID: bankAccountID,
		Name:          name,
		Balance:       types.Zero(),
		Active:        true,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return entity.CashAccount{}, err
	}

	logger.Info(ctx, "bank account created", "bank_account_id", bankAccountID, "name", name)
	return account, nil
}

// Deactivate flags the account inactive. History is preserved; the flag is
// rejected while unpaid installments still reference the account.
func (s *Service) Deactivate(ctx context.Context, bankAccountID id.ID) error {
	account, err := s.repo.GetAccount(ctx, bankAccountID)
	if err != nil {
		return err
	}

	if s.outstanding != nil {
		linked, err := s.outstanding.HasOutstandingInstallments(ctx, bankAccountID)
		if err != nil {
			return fmt.Errorf("check installments: %w", err)
		}
		if linked {
			return apperror.NewBusinessRule(
				apperror.CodeAccountInUse,
				"Account is linked to unpaid bill installments and cannot be deactivated.",
			).WithDetail("bank_account_id", bankAccountID.String())
		}
	}

	account.Active = false
	return s.repo.UpsertAccount(ctx, account)
}

// Activate clears the inactive flag.
func (s *Service) Activate(ctx context.Context, bankAccountID id.ID) error {
	account, err := s.repo.GetAccount(ctx, bankAccountID)
	if err != nil {
		return err
	}
	account.Active = true
	return s.repo.UpsertAccount(ctx, account)
}

// RebuildAccounts refolds every balance from the movement log.
func (s *Service) RebuildAccounts(ctx context.Context) error {
	if err := s.repo.RebuildAccounts(ctx); err != nil {
		return fmt.Errorf("rebuild accounts: %w", err)
	}
	logger.Info(ctx, "rebuilt cash accounts from movement log")
	return nil
}
