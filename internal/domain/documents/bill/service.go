package bill

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	appcontext "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/guard"
	"stockledger/pkg/logger"
)

// RecorderType tags cash movements created by installment payments.
const RecorderType = "Installment"

// Service orchestrates bills and installment payments.
type Service struct {
	repo     Repository
	protocol *guard.Protocol
}

// NewService creates a bill service.
func NewService(repo Repository, protocol *guard.Protocol) *Service {
	return &Service{
		repo:     repo,
		protocol: protocol,
	}
}

// CreateBill opens a manually entered bill. No ledger effect: cash
// leaves only when installments are paid.
func (s *Service) CreateBill(ctx context.Context, b *Bill) (*Bill, error) {
	if id.IsNil(b.ID) {
		b.ID = id.New()
	}
	b.TenantID = appcontext.GetTenantID(ctx)
	b.CreatedBy = appcontext.GetActorID(ctx)
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	for i := range b.Installments {
		inst := &b.Installments[i]
		if id.IsNil(inst.ID) {
			inst.ID = id.New()
		}
		inst.BillID = b.ID
		inst.Sequence = i + 1
		inst.Status = StatusPending
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateBill(ctx, b); err != nil {
		return nil, err
	}

	logger.Info(ctx, "bill created",
		"bill_id", b.ID, "supplier", b.SupplierName, "installments", len(b.Installments))
	return b, nil
}

// CreateFromInvoice opens a bill during an invoice launch. Runs inside
// the launch transaction; a failure here rolls the whole launch back.
func (s *Service) CreateFromInvoice(ctx context.Context, invoiceID id.ID, supplier string, total types.Money, terms []InstallmentTerm) (id.ID, error) {
	b := &Bill{
		SupplierName: supplier,
		InvoiceID:    &invoiceID,
		Total:        total,
	}
	for _, term := range terms {
		b.Installments = append(b.Installments, Installment{
			DueDate:       term.DueDate,
			Amount:        term.Amount,
			BankAccountID: term.BankAccountID,
		})
	}

	created, err := s.CreateBill(ctx, b)
	if err != nil {
		return id.Nil(), fmt.Errorf("create bill from invoice: %w", err)
	}
	return created.ID, nil
}

// GetBill returns one bill with its installments.
func (s *Service) GetBill(ctx context.Context, billID id.ID) (*Bill, error) {
	return s.repo.GetBill(ctx, billID)
}

// ListBills returns bills matching the filter.
func (s *Service) ListBills(ctx context.Context, filter Filter) ([]*Bill, error) {
	return s.repo.ListBills(ctx, filter)
}

// PayInstallment debits the bank account and flips the installment to
// paid in one guarded transaction. An overdrawing payment warns unless
// forced; only pending installments are payable.
func (s *Service) PayInstallment(ctx context.Context, installmentID, bankAccountID id.ID, force bool) (guard.Result, error) {
	installment, err := s.repo.GetInstallment(ctx, installmentID)
	if err != nil {
		return guard.Result{}, err
	}
	if installment.Status != StatusPending {
		return guard.Result{}, apperror.NewBusinessRule(
			apperror.CodeInstallmentNotPending,
			"Only pending installments can be paid.",
		).WithDetail("installment_id", installmentID.String()).
			WithDetail("status", string(installment.Status))
	}

	instID := installment.ID
	req := guard.Request{
		TenantID:     appcontext.GetTenantID(ctx),
		RecorderID:   installment.ID,
		RecorderType: RecorderType,
		ActorID:      appcontext.GetActorID(ctx),
		Force:        force,
		CashLines: []guard.CashLine{{
			BankAccountID: bankAccountID,
			Delta:         installment.Amount.Neg(),
			InstallmentID: &instID,
			Description:   fmt.Sprintf("Bill installment %d", installment.Sequence),
		}},
		SideEffect: func(ctx context.Context) error {
			now := time.Now().UTC()
			installment.Status = StatusPaid
			installment.PaidAt = &now
			installment.BankAccountID = &bankAccountID
			return s.repo.UpdateInstallment(ctx, installment)
		},
	}

	result, err := s.protocol.Execute(ctx, req)
	if err != nil {
		return guard.Result{}, err
	}
	if result.Committed {
		logger.Info(ctx, "installment paid",
			"installment_id", installmentID, "bank_account_id", bankAccountID,
			"amount", installment.Amount)
	}
	return result, nil
}

// CancelInstallment flips a pending installment to cancelled. No ledger
// effect: nothing was paid.
func (s *Service) CancelInstallment(ctx context.Context, installmentID id.ID) error {
	installment, err := s.repo.GetInstallment(ctx, installmentID)
	if err != nil {
		return err
	}
	if installment.Status != StatusPending {
		return apperror.NewBusinessRule(
			apperror.CodeInstallmentNotPending,
			"Only pending installments can be cancelled.",
		).WithDetail("installment_id", installmentID.String())
	}

	installment.Status = StatusCancelled
	return s.repo.UpdateInstallment(ctx, installment)
}

// CancelBill cancels all pending installments and removes the bill.
// Refused while any installment is paid: the payment trail must keep its
// referent.
func (s *Service) CancelBill(ctx context.Context, billID id.ID) error {
	b, err := s.repo.GetBill(ctx, billID)
	if err != nil {
		return err
	}

	for i := range b.Installments {
		if b.Installments[i].Status == StatusPaid {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"Bill has paid installments and cannot be cancelled.",
			).WithDetail("bill_id", billID.String())
		}
	}

	if err := s.repo.DeleteBill(ctx, billID); err != nil {
		return err
	}
	logger.Info(ctx, "bill cancelled", "bill_id", billID)
	return nil
}

// HasOutstandingInstallments reports whether the bank account still has
// pending installments assigned. Exposed so the cash register can block
// deactivation.
func (s *Service) HasOutstandingInstallments(ctx context.Context, bankAccountID id.ID) (bool, error) {
	return s.repo.HasOutstandingInstallments(ctx, bankAccountID)
}
