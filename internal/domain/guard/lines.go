package guard

import (
	"stockledger/internal/core/entity"
)

// ReversalLines negates previously committed stock movements so a
// document edit or deletion can undo its own ledger trace. withCost
// carries the original unit cost onto the reversal, which restores the
// weighted average exactly when undoing an addition; costless reversals
// (sale edits) leave the average alone.
func ReversalLines(movements []entity.StockMovement, reason entity.StockReason, withCost bool) []StockLine {
	lines := make([]StockLine, 0, len(movements))
	for _, m := range movements {
		line := StockLine{
			EntityType: m.EntityType,
			EntityID:   m.EntityID,
			Delta:      m.QuantityDelta.Neg(),
			Reason:     reason,
		}
		if withCost && m.UnitCost != nil {
			cost := *m.UnitCost
			line.UnitCost = &cost
		}
		lines = append(lines, line)
	}
	return lines
}

// CashReversalLines negates previously committed cash movements.
func CashReversalLines(movements []entity.CashMovement, description string) []CashLine {
	lines := make([]CashLine, 0, len(movements))
	for _, m := range movements {
		lines = append(lines, CashLine{
			BankAccountID: m.BankAccountID,
			Delta:         m.AmountDelta.Neg(),
			InstallmentID: m.InstallmentID,
			Description:   description,
		})
	}
	return lines
}
