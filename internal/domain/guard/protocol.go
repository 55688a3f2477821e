// Package guard implements the guarded mutation protocol: every operation
// that could drive a stock or cash balance negative goes through
// check -> warn -> force before anything reaches the ledger.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/cash"
	"stockledger/internal/domain/registers/stock"
	"stockledger/pkg/logger"
)

// StockLine is one requested stock quantity change.
type StockLine struct {
	EntityType   entity.StockEntityType
	EntityID     id.ID
	Delta        types.Quantity
	Reason       entity.StockReason
	ReasonDetail string
	UnitCost     *types.Money
}

// CashLine is one requested bank balance change.
type CashLine struct {
	BankAccountID id.ID
	Delta         types.Money
	InstallmentID *id.ID
	Description   string
}

// Request is a guarded mutation: the full set of lines a business event
// wants to commit atomically, plus the operator's force decision.
type Request struct {
	TenantID     string
	RecorderID   id.ID
	RecorderType string
	ActorID      string

	StockLines []StockLine
	CashLines  []CashLine

	// Force commits negative-resulting lines. It never bypasses input
	// validation, only the negative-balance gate.
	Force bool

	// SideEffect runs inside the same transaction after movements are
	// appended (installment status flips, document state transitions).
	SideEffect func(ctx context.Context) error
}

// BalanceWarning describes one line that would drive a balance negative.
// The shape is uniform across stock and cash; consumers render it in
// confirmation dialogs.
type BalanceWarning struct {
	EntityID   id.ID       `json:"entityId"`
	EntityName string      `json:"entityName"`
	Current    types.Money `json:"current"`
	Requested  types.Money `json:"requested"`
	Resulting  types.Money `json:"resulting"`
}

// Result is the protocol outcome. Warnings are data, not errors:
// "reject and force" is a normal business flow.
type Result struct {
	Committed     bool             `json:"committed"`
	StockWarnings []BalanceWarning `json:"stockWarnings,omitempty"`
	CashWarnings  []BalanceWarning `json:"cashWarnings,omitempty"`
}

// HasWarnings reports whether any line would go negative.
func (r Result) HasWarnings() bool {
	return len(r.StockWarnings) > 0 || len(r.CashWarnings) > 0
}

// EntityNameResolver supplies display names for warning payloads and
// doubles as existence validation for stock entities.
type EntityNameResolver interface {
	EntityName(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (string, error)
}

// Auditor records forced overrides. Implemented by the audit trail;
// nil disables auditing (tests).
type Auditor interface {
	LogForcedCommit(ctx context.Context, recorderID id.ID, recorderType string, stockWarnings, cashWarnings []BalanceWarning) error
}

// Protocol executes guarded mutations against both ledgers.
type Protocol struct {
	txm     tx.Manager
	stock   *stock.Service
	cash    *cash.Service
	names   EntityNameResolver
	auditor Auditor
}

// NewProtocol creates a guarded mutation protocol.
func NewProtocol(txm tx.Manager, stockSvc *stock.Service, cashSvc *cash.Service, names EntityNameResolver, auditor Auditor) *Protocol {
	return &Protocol{
		txm:     txm,
		stock:   stockSvc,
		cash:    cashSvc,
		names:   names,
		auditor: auditor,
	}
}

// errWarned aborts the commit transaction after warnings were collected,
// so a warned request leaves no trace in the ledger.
var errWarned = errors.New("guarded mutation warned")

// Preview computes warnings without locks or writes. Safe to call
// repeatedly; this is the dry run behind confirmation dialogs.
func (p *Protocol) Preview(ctx context.Context, req Request) (Result, error) {
	req, err := p.normalize(ctx, req)
	if err != nil {
		return Result{}, err
	}

	var result Result
	result.StockWarnings, err = p.checkStock(ctx, req, false)
	if err != nil {
		return Result{}, err
	}
	result.CashWarnings, err = p.checkCash(ctx, req, false)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// Execute runs the protocol: partition lines into ok/negative under row
// locks, warn unless forced, and commit all movements plus side effects
// in one transaction. A concurrency conflict is retried exactly once.
func (p *Protocol) Execute(ctx context.Context, req Request) (Result, error) {
	req, err := p.normalize(ctx, req)
	if err != nil {
		return Result{}, err
	}

	result, err := p.execute(ctx, req)
	if apperror.IsConcurrentModification(err) {
		logger.Warn(ctx, "guarded commit conflicted, retrying once",
			"recorder_id", req.RecorderID, "recorder_type", req.RecorderType)
		result, err = p.execute(ctx, req)
	}
	return result, err
}

func (p *Protocol) execute(ctx context.Context, req Request) (Result, error) {
	var result Result

	err := p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error

		// Lock order is deterministic (sorted in normalize), so two
		// requests over overlapping entities serialize instead of
		// deadlocking. Disjoint requests never block each other.
		result.StockWarnings, err = p.checkStock(ctx, req, true)
		if err != nil {
			return err
		}
		result.CashWarnings, err = p.checkCash(ctx, req, true)
		if err != nil {
			return err
		}

		if result.HasWarnings() && !req.Force {
			return errWarned
		}

		if err := p.stock.RecordMovements(ctx, p.stockMovements(req)); err != nil {
			return err
		}
		if err := p.cash.RecordMovements(ctx, p.cashMovements(req)); err != nil {
			return err
		}

		if req.SideEffect != nil {
			if err := req.SideEffect(ctx); err != nil {
				return err
			}
		}

		if result.HasWarnings() && p.auditor != nil {
			if err := p.auditor.LogForcedCommit(ctx, req.RecorderID, req.RecorderType,
				result.StockWarnings, result.CashWarnings); err != nil {
				return fmt.Errorf("audit forced commit: %w", err)
			}
		}

		result.Committed = true
		return nil
	})

	if errors.Is(err, errWarned) {
		return result, nil
	}
	if err != nil {
		return Result{}, err
	}

	if result.HasWarnings() {
		logger.Warn(ctx, "forced commit of negative-resulting lines",
			"recorder_id", req.RecorderID,
			"recorder_type", req.RecorderType,
			"stock_warnings", len(result.StockWarnings),
			"cash_warnings", len(result.CashWarnings),
		)
	}

	return result, nil
}

// normalize drops no-op lines, validates input, and sorts lines into the
// deterministic lock order.
func (p *Protocol) normalize(ctx context.Context, req Request) (Request, error) {
	if id.IsNil(req.RecorderID) {
		return req, apperror.NewValidation("recorder id is required")
	}

	stockLines := make([]StockLine, 0, len(req.StockLines))
	for _, l := range req.StockLines {
		if l.Delta.IsZero() {
			continue // no-op lines neither block nor warn
		}
		if !l.EntityType.IsValid() {
			return req, apperror.NewValidation("unknown entity type").
				WithDetail("entityType", string(l.EntityType))
		}
		if !l.Reason.IsValid() {
			return req, apperror.NewValidation("unknown movement reason").
				WithDetail("reason", string(l.Reason))
		}
		if l.Reason == entity.ReasonManualCorrection && l.ReasonDetail == "" {
			return req, apperror.NewValidation("reason detail is required for manual corrections")
		}
		if id.IsNil(l.EntityID) {
			return req, apperror.NewValidation("entity id is required")
		}
		stockLines = append(stockLines, l)
	}

	cashLines := make([]CashLine, 0, len(req.CashLines))
	for _, l := range req.CashLines {
		if l.Delta.IsZero() {
			continue
		}
		if id.IsNil(l.BankAccountID) {
			return req, apperror.NewValidation("bank account id is required")
		}
		cashLines = append(cashLines, l)
	}

	sort.SliceStable(stockLines, func(i, j int) bool {
		if stockLines[i].EntityType != stockLines[j].EntityType {
			return stockLines[i].EntityType < stockLines[j].EntityType
		}
		return stockLines[i].EntityID.String() < stockLines[j].EntityID.String()
	})
	sort.SliceStable(cashLines, func(i, j int) bool {
		return cashLines[i].BankAccountID.String() < cashLines[j].BankAccountID.String()
	})

	req.StockLines = stockLines
	req.CashLines = cashLines
	return req, nil
}

// checkStock computes resulting balances per entity (summing duplicate
// lines) and returns warnings for the negative partition.
func (p *Protocol) checkStock(ctx context.Context, req Request, lock bool) ([]BalanceWarning, error) {
	type agg struct {
		line  StockLine
		total types.Quantity
	}

	var order []string
	totals := make(map[string]*agg)
	for _, l := range req.StockLines {
		key := string(l.EntityType) + "/" + l.EntityID.String()
		if a, ok := totals[key]; ok {
			a.total = a.total.Add(l.Delta)
			continue
		}
		totals[key] = &agg{line: l, total: l.Delta}
		order = append(order, key)
	}

	var warnings []BalanceWarning
	for _, key := range order {
		a := totals[key]

		name, err := p.names.EntityName(ctx, a.line.EntityType, a.line.EntityID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewValidation("unknown stock entity").
					WithDetail("entityType", string(a.line.EntityType)).
					WithDetail("entityId", a.line.EntityID.String())
			}
			return nil, err
		}

		var account entity.StockAccount
		if lock {
			account, err = p.stock.AccountForUpdate(ctx, a.line.EntityType, a.line.EntityID)
		} else {
			account, err = p.stock.Account(ctx, a.line.EntityType, a.line.EntityID)
		}
		if err != nil {
			return nil, err
		}

		resulting := account.Quantity.Add(a.total)
		if resulting.IsNegative() {
			warnings = append(warnings, BalanceWarning{
				EntityID:   a.line.EntityID,
				EntityName: name,
				Current:    account.Quantity,
				Requested:  a.total,
				Resulting:  resulting,
			})
		}
	}

	return warnings, nil
}

// checkCash mirrors checkStock for bank accounts.
func (p *Protocol) checkCash(ctx context.Context, req Request, lock bool) ([]BalanceWarning, error) {
	type agg struct {
		line  CashLine
		total types.Money
	}

	var order []id.ID
	totals := make(map[id.ID]*agg)
	for _, l := range req.CashLines {
		if a, ok := totals[l.BankAccountID]; ok {
			a.total = a.total.Add(l.Delta)
			continue
		}
		totals[l.BankAccountID] = &agg{line: l, total: l.Delta}
		order = append(order, l.BankAccountID)
	}

	var warnings []BalanceWarning
	for _, accountID := range order {
		a := totals[accountID]

		var account entity.CashAccount
		var err error
		if lock {
			account, err = p.cash.AccountForUpdate(ctx, accountID)
		} else {
			account, err = p.cash.Account(ctx, accountID)
		}
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewValidation("unknown bank account").
					WithDetail("bankAccountId", accountID.String())
			}
			return nil, err
		}
		if !account.Active {
			return nil, apperror.NewBusinessRule(
				apperror.CodeAccountInUse,
				"Bank account is inactive and cannot take movements.",
			).WithDetail("bank_account_id", accountID.String())
		}

		resulting := account.Balance.Add(a.total)
		if resulting.IsNegative() {
			warnings = append(warnings, BalanceWarning{
				EntityID:   accountID,
				EntityName: account.Name,
				Current:    account.Balance,
				Requested:  a.total,
				Resulting:  resulting,
			})
		}
	}

	return warnings, nil
}

func (p *Protocol) stockMovements(req Request) []entity.StockMovement {
	movements := make([]entity.StockMovement, 0, len(req.StockLines))
	for _, l := range req.StockLines {
		movements = append(movements, entity.StockMovement{
			MovementBase:  entity.NewMovementBase(req.TenantID, req.RecorderID, req.RecorderType, req.ActorID),
			EntityType:    l.EntityType,
			EntityID:      l.EntityID,
			QuantityDelta: l.Delta,
			Reason:        l.Reason,
			ReasonDetail:  l.ReasonDetail,
			UnitCost:      l.UnitCost,
		})
	}
	return movements
}

func (p *Protocol) cashMovements(req Request) []entity.CashMovement {
	movements := make([]entity.CashMovement, 0, len(req.CashLines))
	for _, l := range req.CashLines {
		movements = append(movements, entity.CashMovement{
			MovementBase:  entity.NewMovementBase(req.TenantID, req.RecorderID, req.RecorderType, req.ActorID),
			BankAccountID: l.BankAccountID,
			AmountDelta:   l.Delta,
			InstallmentID: l.InstallmentID,
			Description:   l.Description,
		})
	}
	return movements
}
