package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/cash"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	cashMovementsTable = "reg_cash_movements"
	cashAccountsTable  = "reg_cash_accounts"
)

var cashMovementColumns = []string{
	"line_id", "tenant_id", "recorder_id", "recorder_type", "actor_id",
	"bank_account_id", "amount_delta", "installment_id", "description",
	"created_at",
}

// CashRepo implements cash.Repository over PostgreSQL.
type CashRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewCashRepo creates a new cash register repository.
func NewCashRepo(txm *postgres.TxManager) *CashRepo {
	return &CashRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateMovements appends movements to the log.
func (r *CashRepo) CreateMovements(ctx context.Context, movements []entity.CashMovement) error {
	if len(movements) == 0 {
		return nil
	}

	if t := r.txm.GetTx(ctx); t != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, []any{
				m.LineID, m.TenantID, m.RecorderID, m.RecorderType, m.ActorID,
				m.BankAccountID, m.AmountDelta, m.InstallmentID, m.Description,
				m.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, cashMovementsTable, cashMovementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", postgres.TranslateError(err))
		}
		return nil
	}

	q := r.builder.Insert(cashMovementsTable).Columns(cashMovementColumns...)
	for _, m := range movements {
		q = q.Values(
			m.LineID, m.TenantID, m.RecorderID, m.RecorderType, m.ActorID,
			m.BankAccountID, m.AmountDelta, m.InstallmentID, m.Description,
			m.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", postgres.TranslateError(err))
	}
	return nil
}

// ListMovements returns movement history for a bank account, newest first.
func (r *CashRepo) ListMovements(ctx context.Context, bankAccountID id.ID, filter cash.MovementFilter) ([]entity.CashMovement, error) {
	q := r.builder.Select(cashMovementColumns...).
		From(cashMovementsTable).
		Where(squirrel.Eq{"bank_account_id": bankAccountID})

	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC", "line_id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.CashMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// GetMovementsByRecorder retrieves movements for a document, in append
// order.
func (r *CashRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.CashMovement, error) {
	q := r.builder.Select(cashMovementColumns...).
		From(cashMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at", "line_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.CashMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

const cashAccountSelect = `
	SELECT bank_account_id, name, balance, active, last_movement_at, updated_at
	FROM reg_cash_accounts
	WHERE bank_account_id = $1
`

// GetAccount returns the account row. Cash accounts are explicit, so an
// unknown id is NotFound rather than a zero row.
func (r *CashRepo) GetAccount(ctx context.Context, bankAccountID id.ID) (entity.CashAccount, error) {
	var account entity.CashAccount
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &account, cashAccountSelect, bankAccountID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return account, apperror.NewNotFound("bank account", bankAccountID.String())
		}
		return account, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetAccountForUpdate returns the account under FOR UPDATE.
func (r *CashRepo) GetAccountForUpdate(ctx context.Context, bankAccountID id.ID) (entity.CashAccount, error) {
	var account entity.CashAccount
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &account, cashAccountSelect+" FOR UPDATE", bankAccountID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return account, apperror.NewNotFound("bank account", bankAccountID.String())
		}
		return account, fmt.Errorf("get account for update: %w", postgres.TranslateError(err))
	}
	return account, nil
}

// CreateAccount registers a new bank account.
func (r *CashRepo) CreateAccount(ctx context.Context, account entity.CashAccount) error {
	sql := `
		INSERT INTO reg_cash_accounts (
			bank_account_id, name, balance, active, last_movement_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, sql,
		account.BankAccountID, account.Name, account.Balance, account.Active,
		account.LastMovementAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create account: %w", postgres.TranslateError(err))
	}
	return nil
}

// UpsertAccount writes the folded account state.
func (r *CashRepo) UpsertAccount(ctx context.Context, account entity.CashAccount) error {
	sql := `
		INSERT INTO reg_cash_accounts (
			bank_account_id, name, balance, active, last_movement_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bank_account_id) DO UPDATE SET
			name = EXCLUDED.name,
			balance = EXCLUDED.balance,
			active = EXCLUDED.active,
			last_movement_at = EXCLUDED.last_movement_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, sql,
		account.BankAccountID, account.Name, account.Balance, account.Active,
		account.LastMovementAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", postgres.TranslateError(err))
	}
	return nil
}

// ListAccounts returns accounts ordered by name.
func (r *CashRepo) ListAccounts(ctx context.Context, includeInactive bool) ([]entity.CashAccount, error) {
	q := r.builder.Select(
		"bank_account_id", "name", "balance", "active", "last_movement_at", "updated_at",
	).From(cashAccountsTable)

	if !includeInactive {
		q = q.Where(squirrel.Eq{"active": true})
	}

	q = q.OrderBy("name", "bank_account_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var accounts []entity.CashAccount
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &accounts, sql, args...); err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	return accounts, nil
}

// RebuildAccounts refolds every balance from the movement log inside one
// transaction. Name and active status are configuration and survive.
func (r *CashRepo) RebuildAccounts(ctx context.Context) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		reset := `UPDATE reg_cash_accounts SET balance = 0, updated_at = now()`
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, reset); err != nil {
			return fmt.Errorf("reset accounts: %w", err)
		}

		q := r.builder.Select(cashMovementColumns...).
			From(cashMovementsTable).
			OrderBy("created_at", "line_id")

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}

		var movements []entity.CashMovement
		if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
			return fmt.Errorf("select movements: %w", err)
		}

		folded := make(map[id.ID]entity.CashAccount)
		for _, m := range movements {
			account, ok := folded[m.BankAccountID]
			if !ok {
				current, err := r.GetAccount(ctx, m.BankAccountID)
				if err != nil {
					// A movement always references a created account; a
					// missing row here means the log and the accounts
					// table diverged.
					return err
				}
				account = current
				account.Balance = types.Zero()
			}
			folded[m.BankAccountID] = account.Apply(m)
		}

		for _, account := range folded {
			if err := r.UpsertAccount(ctx, account); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ cash.Repository = (*CashRepo)(nil)
