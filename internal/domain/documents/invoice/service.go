package invoice

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	appcontext "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/documents/bill"
	"stockledger/internal/domain/guard"
	"stockledger/internal/domain/registers/cash"
	"stockledger/internal/domain/registers/stock"
	"stockledger/pkg/logger"
)

// RecorderType tags movements created by invoice documents.
const RecorderType = "Invoice"

// Bills is the bill lifecycle the invoice orchestrator drives: opening
// a bill on launch and cancelling it when a launched invoice is deleted.
// Implemented by the bill service; nil disables bill linkage (tests).
type Bills interface {
	CreateFromInvoice(ctx context.Context, invoiceID id.ID, supplier string, total types.Money, terms []bill.InstallmentTerm) (id.ID, error)
	CancelBill(ctx context.Context, billID id.ID) error
}

// Service orchestrates invoice documents over the guarded mutation
// protocol.
type Service struct {
	repo     Repository
	protocol *guard.Protocol
	stockSvc *stock.Service
	cashSvc  *cash.Service
	bills    Bills
}

// NewService creates an invoice service.
func NewService(repo Repository, protocol *guard.Protocol, stockSvc *stock.Service, cashSvc *cash.Service, bills Bills) *Service {
	return &Service{
		repo:     repo,
		protocol: protocol,
		stockSvc: stockSvc,
		cashSvc:  cashSvc,
		bills:    bills,
	}
}

// Create drafts an invoice. No ledger effect until launch.
func (s *Service) Create(ctx context.Context, inv *Invoice) (*Invoice, error) {
	if id.IsNil(inv.ID) {
		inv.ID = id.New()
	}
	inv.TenantID = appcontext.GetTenantID(ctx)
	inv.CreatedBy = appcontext.GetActorID(ctx)
	inv.StockAdded = false
	inv.LaunchedAt = nil
	inv.BillID = nil
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	for i := range inv.Items {
		line := &inv.Items[i]
		if id.IsNil(line.LineID) {
			line.LineID = id.New()
		}
		line.InvoiceID = inv.ID
	}

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	inv.ComputeTotal()

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice drafted",
		"invoice_id", inv.ID, "number", inv.Number, "total", inv.Total)
	return inv, nil
}

// Update edits a draft. Launched invoices are frozen: their items are
// already in the ledger.
func (s *Service) Update(ctx context.Context, inv *Invoice) (*Invoice, error) {
	current, err := s.repo.GetByID(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	if current.StockAdded {
		return nil, launchedError(inv.ID)
	}

	inv.TenantID = current.TenantID
	inv.CreatedBy = current.CreatedBy
	inv.CreatedAt = current.CreatedAt
	inv.StockAdded = false
	inv.LaunchedAt = nil
	inv.BillID = nil
	inv.UpdatedAt = time.Now().UTC()

	for i := range inv.Items {
		line := &inv.Items[i]
		if id.IsNil(line.LineID) {
			line.LineID = id.New()
		}
		line.InvoiceID = inv.ID
	}

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	inv.ComputeTotal()

	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Launch posts the invoice: stock additions at purchase cost, the
// optional bank debit, and the optional bill, all in one guarded
// transaction. Additions cannot warn, but the bank debit can; a warned
// launch commits nothing. Launching twice is a business rule violation.
func (s *Service) Launch(ctx context.Context, invoiceID id.ID, force bool) (guard.Result, error) {
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return guard.Result{}, err
	}
	if inv.StockAdded {
		return guard.Result{}, launchedError(invoiceID)
	}

	req := guard.Request{
		TenantID:     appcontext.GetTenantID(ctx),
		RecorderID:   inv.ID,
		RecorderType: RecorderType,
		ActorID:      appcontext.GetActorID(ctx),
		Force:        force,
		StockLines:   additionLines(inv.Items),
	}
	if inv.DeductBankAccountID != nil {
		req.CashLines = []guard.CashLine{{
			BankAccountID: *inv.DeductBankAccountID,
			Delta:         inv.Total.Neg(),
			Description:   fmt.Sprintf("Invoice %s", inv.Number),
		}}
	}
	req.SideEffect = func(ctx context.Context) error {
		if len(inv.BillTerms) > 0 && s.bills != nil {
			billID, err := s.bills.CreateFromInvoice(ctx, inv.ID, inv.SupplierName, inv.Total, inv.BillTerms)
			if err != nil {
				return err
			}
			inv.BillID = &billID
		}
		now := time.Now().UTC()
		inv.StockAdded = true
		inv.LaunchedAt = &now
		inv.UpdatedAt = now
		return s.repo.Update(ctx, inv)
	}

	result, err := s.protocol.Execute(ctx, req)
	if err != nil {
		return guard.Result{}, err
	}
	if result.Committed {
		logger.Info(ctx, "invoice launched",
			"invoice_id", inv.ID, "number", inv.Number, "items", len(inv.Items))
	}
	return result, nil
}

// PreviewDelete computes the warnings deleting the invoice would raise:
// reversing launched additions can drive stock negative when the
// received goods were already sold.
func (s *Service) PreviewDelete(ctx context.Context, invoiceID id.ID) (guard.Result, error) {
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return guard.Result{}, err
	}
	if !inv.StockAdded {
		return guard.Result{}, nil
	}

	req, err := s.reversalRequest(ctx, inv, false)
	if err != nil {
		return guard.Result{}, err
	}
	return s.protocol.Preview(ctx, req)
}

// Delete removes the invoice. A launched invoice has its stock additions
// and bank debit reversed in the same guarded transaction; reversal
// lines carry the original unit cost, so re-launching an identical
// invoice restores the account exactly. A linked bill is cancelled,
// which fails while any of its installments is paid.
func (s *Service) Delete(ctx context.Context, invoiceID id.ID, force bool) (guard.Result, error) {
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return guard.Result{}, err
	}

	if !inv.StockAdded {
		if err := s.repo.Delete(ctx, invoiceID); err != nil {
			return guard.Result{}, err
		}
		return guard.Result{Committed: true}, nil
	}

	req, err := s.reversalRequest(ctx, inv, force)
	if err != nil {
		return guard.Result{}, err
	}
	req.SideEffect = func(ctx context.Context) error {
		if inv.BillID != nil && s.bills != nil {
			if err := s.bills.CancelBill(ctx, *inv.BillID); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, invoiceID)
	}

	result, err := s.protocol.Execute(ctx, req)
	if err != nil {
		return guard.Result{}, err
	}
	if result.Committed {
		logger.Info(ctx, "invoice deleted with reversal",
			"invoice_id", invoiceID, "number", inv.Number)
	}
	return result, nil
}

// GetByID returns one invoice document.
func (s *Service) GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return s.repo.GetByID(ctx, invoiceID)
}

// List returns invoice documents matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Invoice, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) reversalRequest(ctx context.Context, inv *Invoice, force bool) (guard.Request, error) {
	stockMovements, err := s.stockSvc.MovementsByRecorder(ctx, inv.ID)
	if err != nil {
		return guard.Request{}, err
	}
	cashMovements, err := s.cashSvc.MovementsByRecorder(ctx, inv.ID)
	if err != nil {
		return guard.Request{}, err
	}

	return guard.Request{
		TenantID:     appcontext.GetTenantID(ctx),
		RecorderID:   inv.ID,
		RecorderType: RecorderType,
		ActorID:      appcontext.GetActorID(ctx),
		Force:        force,
		StockLines:   guard.ReversalLines(stockMovements, entity.ReasonInvoiceReversal, true),
		CashLines:    guard.CashReversalLines(cashMovements, fmt.Sprintf("Reversal of invoice %s", inv.Number)),
	}, nil
}

func launchedError(invoiceID id.ID) *apperror.AppError {
	return apperror.NewBusinessRule(
		apperror.CodeInvoiceLaunched,
		"Invoice is already launched; delete it to reverse its movements.",
	).WithDetail("invoice_id", invoiceID.String())
}

// additionLines builds one positive stock line per invoice item, each
// carrying its purchase cost for the weighted average.
func additionLines(items []InvoiceItem) []guard.StockLine {
	lines := make([]guard.StockLine, 0, len(items))
	for _, line := range items {
		cost := line.UnitCost
		lines = append(lines, guard.StockLine{
			EntityType: line.EntityType,
			EntityID:   line.EntityID,
			Delta:      line.Quantity,
			Reason:     entity.ReasonInvoiceLaunch,
			UnitCost:   &cost,
		})
	}
	return lines
}
