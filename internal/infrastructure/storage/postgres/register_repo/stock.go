// Package register_repo provides PostgreSQL implementations for the
// ledger register repositories.
package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	stockMovementsTable = "reg_stock_movements"
	stockAccountsTable  = "reg_stock_accounts"
)

var stockMovementColumns = []string{
	"line_id", "tenant_id", "recorder_id", "recorder_type", "actor_id",
	"entity_type", "entity_id", "quantity_delta", "reason", "reason_detail",
	"unit_cost", "created_at",
}

// StockRepo implements stock.Repository over PostgreSQL.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateMovements appends movements to the log. Inside a transaction the
// COPY protocol is used; the log is append-only, so there is no update
// or delete counterpart.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	if t := r.txm.GetTx(ctx); t != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, []any{
				m.LineID, m.TenantID, m.RecorderID, m.RecorderType, m.ActorID,
				m.EntityType, m.EntityID, m.QuantityDelta, m.Reason, m.ReasonDetail,
				m.UnitCost, m.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, stockMovementsTable, stockMovementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", postgres.TranslateError(err))
		}
		return nil
	}

	q := r.builder.Insert(stockMovementsTable).Columns(stockMovementColumns...)
	for _, m := range movements {
		q = q.Values(
			m.LineID, m.TenantID, m.RecorderID, m.RecorderType, m.ActorID,
			m.EntityType, m.EntityID, m.QuantityDelta, m.Reason, m.ReasonDetail,
			m.UnitCost, m.CreatedAt,
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

// ListMovements returns movement history for an entity, newest first.
func (r *StockRepo) ListMovements(ctx context.Context, entityType entity.StockEntityType, entityID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, error) {
	q := r.builder.Select(stockMovementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID})

	if filter.Reason != nil {
		q = q.Where(squirrel.Eq{"reason": *filter.Reason})
	}
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

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// GetMovementsByRecorder retrieves movements for a document, in append
// order.
func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	q := r.builder.Select(stockMovementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at", "line_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// GetAccount returns the account row, or a zero row when absent: stock
// accounts are implicit.
func (r *StockRepo) GetAccount(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (entity.StockAccount, error) {
	var account entity.StockAccount

	sql := `
		SELECT entity_type, entity_id, quantity, total_value, average_cost,
		       min_quantity, last_movement_at, updated_at
		FROM reg_stock_accounts
		WHERE entity_type = $1 AND entity_id = $2
	`

	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &account, sql, entityType, entityID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return zeroStockAccount(entityType, entityID), nil
		}
		return account, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetAccountForUpdate returns the account under FOR UPDATE. A missing
// row is materialized first so there is always a row to lock; otherwise
// two first movements for the same entity could race.
func (r *StockRepo) GetAccountForUpdate(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (entity.StockAccount, error) {
	ensure := `
		INSERT INTO reg_stock_accounts (entity_type, entity_id, quantity, total_value, average_cost, min_quantity, updated_at)
		VALUES ($1, $2, 0, 0, 0, 0, now())
		ON CONFLICT (entity_type, entity_id) DO NOTHING
	`
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, ensure, entityType, entityID); err != nil {
		return entity.StockAccount{}, fmt.Errorf("ensure account: %w", postgres.TranslateError(err))
	}

	sql := `
		SELECT entity_type, entity_id, quantity, total_value, average_cost,
		       min_quantity, last_movement_at, updated_at
		FROM reg_stock_accounts
		WHERE entity_type = $1 AND entity_id = $2
		FOR UPDATE
	`

	var account entity.StockAccount
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &account, sql, entityType, entityID); err != nil {
		return account, fmt.Errorf("get account for update: %w", postgres.TranslateError(err))
	}
	return account, nil
}

// UpsertAccount writes the folded account state.
func (r *StockRepo) UpsertAccount(ctx context.Context, account entity.StockAccount) error {
	sql := `
		INSERT INTO reg_stock_accounts (
			entity_type, entity_id, quantity, total_value, average_cost,
			min_quantity, last_movement_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			total_value = EXCLUDED.total_value,
			average_cost = EXCLUDED.average_cost,
			min_quantity = EXCLUDED.min_quantity,
			last_movement_at = EXCLUDED.last_movement_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, sql,
		account.EntityType, account.EntityID, account.Quantity, account.TotalValue,
		account.AverageCost, account.MinQuantity, account.LastMovementAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", postgres.TranslateError(err))
	}
	return nil
}

// ListAccounts returns account rows matching the filter.
func (r *StockRepo) ListAccounts(ctx context.Context, filter stock.AccountFilter) ([]entity.StockAccount, error) {
	q := r.builder.Select(
		"entity_type", "entity_id", "quantity", "total_value", "average_cost",
		"min_quantity", "last_movement_at", "updated_at",
	).From(stockAccountsTable)

	if filter.EntityType != nil {
		q = q.Where(squirrel.Eq{"entity_type": *filter.EntityType})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": 0})
	}
	if filter.LowStockOnly {
		q = q.Where("min_quantity > 0 AND quantity < min_quantity")
	}

	q = q.OrderBy("entity_type", "entity_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var accounts []entity.StockAccount
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &accounts, sql, args...); err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	return accounts, nil
}

// LastCost returns the unit cost of the most recent costed addition, or
// nil when there is none.
func (r *StockRepo) LastCost(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (*types.Money, error) {
	sql := `
		SELECT unit_cost
		FROM reg_stock_movements
		WHERE entity_type = $1 AND entity_id = $2
		  AND unit_cost IS NOT NULL AND quantity_delta > 0
		ORDER BY created_at DESC, line_id DESC
		LIMIT 1
	`

	var cost types.Money
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, entityType, entityID).Scan(&cost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last cost: %w", err)
	}
	return &cost, nil
}

// RebuildAccounts refolds every account from the movement log inside one
// transaction. Derived columns are reset and replayed; min_quantity is
// configuration and survives.
func (r *StockRepo) RebuildAccounts(ctx context.Context) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		reset := `UPDATE reg_stock_accounts SET quantity = 0, total_value = 0, average_cost = 0, updated_at = now()`
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, reset); err != nil {
			return fmt.Errorf("reset accounts: %w", err)
		}

		q := r.builder.Select(stockMovementColumns...).
			From(stockMovementsTable).
			OrderBy("created_at", "line_id")

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}

		var movements []entity.StockMovement
		if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
			return fmt.Errorf("select movements: %w", err)
		}

		type key struct {
			entityType entity.StockEntityType
			entityID   id.ID
		}
		folded := make(map[key]entity.StockAccount)
		for _, m := range movements {
			k := key{m.EntityType, m.EntityID}
			account, ok := folded[k]
			if !ok {
				current, err := r.GetAccount(ctx, m.EntityType, m.EntityID)
				if err != nil {
					return err
				}
				account = zeroStockAccount(m.EntityType, m.EntityID)
				account.MinQuantity = current.MinQuantity
			}
			folded[k] = account.Apply(m)
		}

		for _, account := range folded {
			if err := r.UpsertAccount(ctx, account); err != nil {
				return err
			}
		}
		return nil
	})
}

func zeroStockAccount(entityType entity.StockEntityType, entityID id.ID) entity.StockAccount {
	return entity.StockAccount{
		EntityType:  entityType,
		EntityID:    entityID,
		Quantity:    types.Zero(),
		TotalValue:  types.Zero(),
		AverageCost: types.Zero(),
		MinQuantity: types.Zero(),
	}
}

// Ensure interface compliance.
var _ stock.Repository = (*StockRepo)(nil)
