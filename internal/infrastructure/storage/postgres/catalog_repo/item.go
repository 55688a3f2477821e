// Package catalog_repo provides PostgreSQL implementations for the
// catalog repositories.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/infrastructure/storage/postgres"
)

const itemsTable = "cat_items"

var itemColumns = []string{
	"id", "tenant_id", "type", "name", "sale_price", "min_quantity",
	"active", "created_at", "updated_at",
}

// ItemRepo implements item.Repository over PostgreSQL.
type ItemRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewItemRepo creates a new catalog item repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ItemRepo) Create(ctx context.Context, it *item.Item) error {
	q := r.builder.Insert(itemsTable).
		Columns(itemColumns...).
		Values(
			it.ID, it.TenantID, it.Type, it.Name, it.SalePrice, it.MinQuantity,
			it.Active, it.CreatedAt, it.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert item: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *ItemRepo) Update(ctx context.Context, it *item.Item) error {
	q := r.builder.Update(itemsTable).
		Set("name", it.Name).
		Set("sale_price", it.SalePrice).
		Set("min_quantity", it.MinQuantity).
		Set("active", it.Active).
		Set("updated_at", it.UpdatedAt).
		Where(squirrel.Eq{"id": it.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", postgres.TranslateError(err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("item", it.ID.String())
	}
	return nil
}

func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*item.Item, error) {
	return r.getOne(ctx, squirrel.Eq{"id": itemID}, itemID)
}

func (r *ItemRepo) GetByTypeAndID(ctx context.Context, entityType entity.StockEntityType, itemID id.ID) (*item.Item, error) {
	return r.getOne(ctx, squirrel.Eq{"id": itemID, "type": entityType}, itemID)
}

func (r *ItemRepo) getOne(ctx context.Context, pred squirrel.Eq, itemID id.ID) (*item.Item, error) {
	q := r.builder.Select(itemColumns...).From(itemsTable).Where(pred)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var it item.Item
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item", itemID.String())
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

func (r *ItemRepo) List(ctx context.Context, filter item.Filter) ([]*item.Item, error) {
	q := r.builder.Select(itemColumns...).From(itemsTable)

	if filter.Type != "" {
		q = q.Where(squirrel.Eq{"type": filter.Type})
	}
	if !filter.IncludeInactive {
		q = q.Where(squirrel.Eq{"active": true})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}

	q = q.OrderBy("name", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*item.Item
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

var _ item.Repository = (*ItemRepo)(nil)
