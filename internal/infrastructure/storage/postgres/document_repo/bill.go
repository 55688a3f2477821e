package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/bill"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	billsTable        = "doc_bills"
	installmentsTable = "doc_bill_installments"
)

var billColumns = []string{
	"id", "tenant_id", "supplier_name", "description", "invoice_id", "total",
	"created_by", "created_at", "updated_at",
}

var installmentColumns = []string{
	"id", "bill_id", "sequence", "due_date", "amount", "status",
	"paid_at", "bank_account_id",
}

// BillRepo implements bill.Repository over PostgreSQL.
type BillRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewBillRepo creates a new bill document repository.
func NewBillRepo(txm *postgres.TxManager) *BillRepo {
	return &BillRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *BillRepo) CreateBill(ctx context.Context, b *bill.Bill) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Insert(billsTable).
			Columns(billColumns...).
			Values(
				b.ID, b.TenantID, b.SupplierName, b.Description, b.InvoiceID, b.Total,
				b.CreatedBy, b.CreatedAt, b.UpdatedAt,
			)

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert bill: %w", postgres.TranslateError(err))
		}

		iq := r.builder.Insert(installmentsTable).Columns(installmentColumns...)
		for _, inst := range b.Installments {
			iq = iq.Values(
				inst.ID, b.ID, inst.Sequence, inst.DueDate, inst.Amount, inst.Status,
				inst.PaidAt, inst.BankAccountID,
			)
		}

		sql, args, err = iq.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert installments: %w", postgres.TranslateError(err))
		}
		return nil
	})
}

func (r *BillRepo) GetBill(ctx context.Context, billID id.ID) (*bill.Bill, error) {
	q := r.builder.Select(billColumns...).
		From(billsTable).
		Where(squirrel.Eq{"id": billID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b bill.Bill
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("bill", billID.String())
		}
		return nil, fmt.Errorf("get bill: %w", err)
	}

	if err := r.loadInstallments(ctx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BillRepo) loadInstallments(ctx context.Context, b *bill.Bill) error {
	q := r.builder.Select(installmentColumns...).
		From(installmentsTable).
		Where(squirrel.Eq{"bill_id": b.ID}).
		OrderBy("sequence")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &b.Installments, sql, args...); err != nil {
		return fmt.Errorf("select installments: %w", err)
	}
	return nil
}

func (r *BillRepo) DeleteBill(ctx context.Context, billID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		del := `DELETE FROM doc_bill_installments WHERE bill_id = $1`
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, del, billID); err != nil {
			return fmt.Errorf("delete installments: %w", err)
		}

		tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `DELETE FROM doc_bills WHERE id = $1`, billID)
		if err != nil {
			return fmt.Errorf("delete bill: %w", postgres.TranslateError(err))
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewNotFound("bill", billID.String())
		}
		return nil
	})
}

func (r *BillRepo) ListBills(ctx context.Context, filter bill.Filter) ([]*bill.Bill, error) {
	q := r.builder.Select(billColumns...).From(billsTable)

	if filter.SupplierName != "" {
		q = q.Where(squirrel.ILike{"supplier_name": "%" + filter.SupplierName + "%"})
	}
	if filter.OnlyOpen {
		q = q.Where(`id IN (SELECT bill_id FROM doc_bill_installments WHERE status = 'pending')`)
	}
	if filter.DueBefore != nil {
		q = q.Where(
			`id IN (SELECT bill_id FROM doc_bill_installments WHERE status = 'pending' AND due_date < ?)`,
			*filter.DueBefore,
		)
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

	var bills []*bill.Bill
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &bills, sql, args...); err != nil {
		return nil, fmt.Errorf("select bills: %w", err)
	}

	for _, b := range bills {
		if err := r.loadInstallments(ctx, b); err != nil {
			return nil, err
		}
	}
	return bills, nil
}

func (r *BillRepo) GetInstallment(ctx context.Context, installmentID id.ID) (*bill.Installment, error) {
	q := r.builder.Select(installmentColumns...).
		From(installmentsTable).
		Where(squirrel.Eq{"id": installmentID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inst bill.Installment
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &inst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("installment", installmentID.String())
		}
		return nil, fmt.Errorf("get installment: %w", err)
	}
	return &inst, nil
}

func (r *BillRepo) UpdateInstallment(ctx context.Context, inst *bill.Installment) error {
	q := r.builder.Update(installmentsTable).
		Set("due_date", inst.DueDate).
		Set("amount", inst.Amount).
		Set("status", inst.Status).
		Set("paid_at", inst.PaidAt).
		Set("bank_account_id", inst.BankAccountID).
		Where(squirrel.Eq{"id": inst.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update installment: %w", postgres.TranslateError(err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("installment", inst.ID.String())
	}
	return nil
}

// HasOutstandingInstallments reports whether any pending installment is
// assigned to the bank account. The cash register consults this before
// deactivating an account.
func (r *BillRepo) HasOutstandingInstallments(ctx context.Context, bankAccountID id.ID) (bool, error) {
	sql := `
		SELECT EXISTS (
			SELECT 1 FROM doc_bill_installments
			WHERE bank_account_id = $1 AND status = 'pending'
		)
	`

	var outstanding bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, bankAccountID).Scan(&outstanding); err != nil {
		return false, fmt.Errorf("check outstanding installments: %w", err)
	}
	return outstanding, nil
}

var _ bill.Repository = (*BillRepo)(nil)
