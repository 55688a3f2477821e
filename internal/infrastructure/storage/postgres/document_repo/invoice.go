package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/bill"
	"stockledger/internal/domain/documents/invoice"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable         = "doc_invoices"
	invoiceItemsTable     = "doc_invoice_items"
	invoiceBillTermsTable = "doc_invoice_bill_terms"
)

var invoiceColumns = []string{
	"id", "tenant_id", "number", "supplier_name", "total",
	"stock_added", "launched_at", "deduct_bank_account_id", "bill_id",
	"created_by", "created_at", "updated_at",
}

var invoiceItemColumns = []string{
	"line_id", "invoice_id", "entity_type", "entity_id", "quantity", "unit_cost",
}

// InvoiceRepo implements invoice.Repository over PostgreSQL.
type InvoiceRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewInvoiceRepo creates a new invoice document repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Insert(invoicesTable).
			Columns(invoiceColumns...).
			Values(
				inv.ID, inv.TenantID, inv.Number, inv.SupplierName, inv.Total,
				inv.StockAdded, inv.LaunchedAt, inv.DeductBankAccountID, inv.BillID,
				inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt,
			)

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert invoice: %w", postgres.TranslateError(err))
		}

		return r.insertChildren(ctx, inv)
	})
}

func (r *InvoiceRepo) Update(ctx context.Context, inv *invoice.Invoice) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Update(invoicesTable).
			Set("number", inv.Number).
			Set("supplier_name", inv.SupplierName).
			Set("total", inv.Total).
			Set("stock_added", inv.StockAdded).
			Set("launched_at", inv.LaunchedAt).
			Set("deduct_bank_account_id", inv.DeductBankAccountID).
			Set("bill_id", inv.BillID).
			Set("updated_at", inv.UpdatedAt).
			Where(squirrel.Eq{"id": inv.ID})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}

		tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update invoice: %w", postgres.TranslateError(err))
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("invoice", inv.ID.String())
		}

		if err := r.deleteChildren(ctx, inv.ID); err != nil {
			return err
		}
		return r.insertChildren(ctx, inv)
	})
}

func (r *InvoiceRepo) insertChildren(ctx context.Context, inv *invoice.Invoice) error {
	if len(inv.Items) > 0 {
		q := r.builder.Insert(invoiceItemsTable).Columns(invoiceItemColumns...)
		for _, it := range inv.Items {
			q = q.Values(it.LineID, inv.ID, it.EntityType, it.EntityID, it.Quantity, it.UnitCost)
		}

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert items: %w", postgres.TranslateError(err))
		}
	}

	if len(inv.BillTerms) > 0 {
		q := r.builder.Insert(invoiceBillTermsTable).
			Columns("invoice_id", "sequence", "due_date", "amount", "bank_account_id")
		for i, term := range inv.BillTerms {
			q = q.Values(inv.ID, i+1, term.DueDate, term.Amount, term.BankAccountID)
		}

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert bill terms: %w", postgres.TranslateError(err))
		}
	}

	return nil
}

func (r *InvoiceRepo) deleteChildren(ctx context.Context, invoiceID id.ID) error {
	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, `DELETE FROM doc_invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if _, err := querier.Exec(ctx, `DELETE FROM doc_invoice_bill_terms WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("delete bill terms: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) Delete(ctx context.Context, invoiceID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.deleteChildren(ctx, invoiceID); err != nil {
			return err
		}

		tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `DELETE FROM doc_invoices WHERE id = $1`, invoiceID)
		if err != nil {
			return fmt.Errorf("delete invoice: %w", postgres.TranslateError(err))
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("invoice", invoiceID.String())
		}
		return nil
	})
}

func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	q := r.builder.Select(invoiceColumns...).
		From(invoicesTable).
		Where(squirrel.Eq{"id": invoiceID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv invoice.Invoice
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", invoiceID.String())
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	if err := r.loadChildren(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepo) loadChildren(ctx context.Context, inv *invoice.Invoice) error {
	q := r.builder.Select(invoiceItemColumns...).
		From(invoiceItemsTable).
		Where(squirrel.Eq{"invoice_id": inv.ID}).
		OrderBy("line_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &inv.Items, sql, args...); err != nil {
		return fmt.Errorf("select items: %w", err)
	}

	termsSQL := `
		SELECT due_date, amount, bank_account_id
		FROM doc_invoice_bill_terms
		WHERE invoice_id = $1
		ORDER BY sequence
	`
	rows, err := r.txm.GetQuerier(ctx).Query(ctx, termsSQL, inv.ID)
	if err != nil {
		return fmt.Errorf("query bill terms: %w", err)
	}
	defer rows.Close()

	inv.BillTerms = nil
	for rows.Next() {
		var term bill.InstallmentTerm
		if err := rows.Scan(&term.DueDate, &term.Amount, &term.BankAccountID); err != nil {
			return fmt.Errorf("scan bill term: %w", err)
		}
		inv.BillTerms = append(inv.BillTerms, term)
	}
	return rows.Err()
}

func (r *InvoiceRepo) List(ctx context.Context, filter invoice.Filter) ([]*invoice.Invoice, error) {
	q := r.builder.Select(invoiceColumns...).From(invoicesTable)

	if filter.SupplierName != "" {
		q = q.Where(squirrel.ILike{"supplier_name": "%" + filter.SupplierName + "%"})
	}
	if filter.OnlyDrafts {
		q = q.Where(squirrel.Eq{"stock_added": false})
	}
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

	var invoices []*invoice.Invoice
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &invoices, sql, args...); err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}

	for _, inv := range invoices {
		if err := r.loadChildren(ctx, inv); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

var _ invoice.Repository = (*InvoiceRepo)(nil)
