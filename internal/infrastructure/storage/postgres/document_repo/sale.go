// Package document_repo provides PostgreSQL implementations for the
// document repositories. Documents are a parent row plus child line
// tables; every write runs inside a transaction so a document is never
// stored half-written.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/sale"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	salesTable     = "doc_sales"
	saleItemsTable = "doc_sale_items"
)

var saleColumns = []string{
	"id", "tenant_id", "customer_name", "note", "total",
	"created_by", "created_at", "updated_at",
}

var saleItemColumns = []string{
	"line_id", "sale_id", "entity_type", "entity_id", "quantity", "unit_price",
}

// SaleRepo implements sale.Repository over PostgreSQL.
type SaleRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewSaleRepo creates a new sale document repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *SaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Insert(salesTable).
			Columns(saleColumns...).
			Values(
				s.ID, s.TenantID, s.CustomerName, s.Note, s.Total,
				s.CreatedBy, s.CreatedAt, s.UpdatedAt,
			)

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert sale: %w", postgres.TranslateError(err))
		}

		return r.insertItems(ctx, s)
	})
}

func (r *SaleRepo) Update(ctx context.Context, s *sale.Sale) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Update(salesTable).
			Set("customer_name", s.CustomerName).
			Set("note", s.Note).
			Set("total", s.Total).
			Set("updated_at", s.UpdatedAt).
			Where(squirrel.Eq{"id": s.ID})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}

		tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update sale: %w", postgres.TranslateError(err))
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("sale", s.ID.String())
		}

		// Items are replaced wholesale; the ledger, not the document,
		// carries history.
		del := `DELETE FROM doc_sale_items WHERE sale_id = $1`
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, del, s.ID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}

		return r.insertItems(ctx, s)
	})
}

func (r *SaleRepo) insertItems(ctx context.Context, s *sale.Sale) error {
	if len(s.Items) == 0 {
		return nil
	}

	q := r.builder.Insert(saleItemsTable).Columns(saleItemColumns...)
	for _, it := range s.Items {
		q = q.Values(it.LineID, s.ID, it.EntityType, it.EntityID, it.Quantity, it.UnitPrice)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert items: %w", postgres.TranslateError(err))
	}
	return nil
}

func (r *SaleRepo) Delete(ctx context.Context, saleID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		del := `DELETE FROM doc_sale_items WHERE sale_id = $1`
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, del, saleID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}

		tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `DELETE FROM doc_sales WHERE id = $1`, saleID)
		if err != nil {
			return fmt.Errorf("delete sale: %w", postgres.TranslateError(err))
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("sale", saleID.String())
		}
		return nil
	})
}

func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	q := r.builder.Select(saleColumns...).
		From(salesTable).
		Where(squirrel.Eq{"id": saleID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s sale.Sale
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID.String())
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	if err := r.loadItems(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SaleRepo) loadItems(ctx context.Context, s *sale.Sale) error {
	q := r.builder.Select(saleItemColumns...).
		From(saleItemsTable).
		Where(squirrel.Eq{"sale_id": s.ID}).
		OrderBy("line_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &s.Items, sql, args...); err != nil {
		return fmt.Errorf("select items: %w", err)
	}
	return nil
}

func (r *SaleRepo) List(ctx context.Context, filter sale.Filter) ([]*sale.Sale, error) {
	q := r.builder.Select(saleColumns...).From(salesTable)

	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC", "id DESC")

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

	var sales []*sale.Sale
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &sales, sql, args...); err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}

	for _, s := range sales {
		if err := r.loadItems(ctx, s); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

var _ sale.Repository = (*SaleRepo)(nil)
