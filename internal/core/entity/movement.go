// Package entity provides core ledger entities.
package entity

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// StockEntityType identifies what kind of item a stock movement touches.
type StockEntityType string

const (
	EntityIngredient StockEntityType = "ingredient"
	EntityProduct    StockEntityType = "product"
	EntityPackage    StockEntityType = "package"
)

// IsValid reports whether the entity type is a recognized tag.
func (t StockEntityType) IsValid() bool {
	switch t {
	case EntityIngredient, EntityProduct, EntityPackage:
		return true
	}
	return false
}

// StockReason classifies why a stock movement happened.
type StockReason string

const (
	ReasonAddition         StockReason = "addition"
	ReasonSaleDeduction    StockReason = "sale_deduction"
	ReasonInvoiceLaunch    StockReason = "invoice_launch"
	ReasonManualCorrection StockReason = "manual_correction"
	ReasonInvoiceReversal  StockReason = "invoice_reversal"
)

// IsValid reports whether the reason is a recognized tag.
func (r StockReason) IsValid() bool {
	switch r {
	case ReasonAddition, ReasonSaleDeduction, ReasonInvoiceLaunch,
		ReasonManualCorrection, ReasonInvoiceReversal:
		return true
	}
	return false
}

// MovementBase contains common fields for all ledger movements.
// Movements are immutable: they are never updated or deleted, a correction
// is itself a new movement. That invariant is what makes account rows
// rebuildable by replay.
type MovementBase struct {
	// LineID is the unique identifier for this movement line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// TenantID scopes the movement to one tenant
	TenantID string `db:"tenant_id" json:"tenantId"`

	// RecorderID is the business document that created this movement
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType is the document type (e.g., "Sale", "Invoice", "Installment")
	RecorderType string `db:"recorder_type" json:"recorderType"`

	// ActorID is the operator who triggered the movement
	ActorID string `db:"actor_id" json:"actorId"`

	// CreatedAt is when the movement was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMovementBase creates a new movement base with generated LineID.
func NewMovementBase(tenantID string, recorderID id.ID, recorderType, actorID string) MovementBase {
	return MovementBase{
		LineID:       id.New(),
		TenantID:     tenantID,
		RecorderID:   recorderID,
		RecorderType: recorderType,
		ActorID:      actorID,
		CreatedAt:    time.Now().UTC(),
	}
}

// StockMovement is one signed quantity change for a stock entity.
type StockMovement struct {
	MovementBase

	EntityType StockEntityType `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`

	// QuantityDelta is signed: positive for additions, negative for deductions.
	QuantityDelta types.Quantity `db:"quantity_delta" json:"quantityDelta"`

	Reason StockReason `db:"reason" json:"reason"`

	// ReasonDetail is free text, required for manual corrections.
	ReasonDetail string `db:"reason_detail" json:"reasonDetail,omitempty"`

	// UnitCost is set on additions and on their reversals; it feeds the
	// weighted average.
	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`
}

// Validate checks movement invariants.
func (m *StockMovement) Validate() error {
	if m.QuantityDelta.IsZero() {
		return apperror.NewValidation("quantity delta must be non-zero").
			WithDetail("entityId", m.EntityID.String())
	}
	if !m.EntityType.IsValid() {
		return apperror.NewValidation("unknown entity type").
			WithDetail("entityType", string(m.EntityType))
	}
	if !m.Reason.IsValid() {
		return apperror.NewValidation("unknown movement reason").
			WithDetail("reason", string(m.Reason))
	}
	if m.Reason == ReasonManualCorrection && m.ReasonDetail == "" {
		return apperror.NewValidation("reason detail is required for manual corrections").
			WithDetail("entityId", m.EntityID.String())
	}
	if m.UnitCost != nil && m.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost must not be negative").
			WithDetail("entityId", m.EntityID.String())
	}
	if id.IsNil(m.RecorderID) {
		return apperror.NewValidation("recorder id is required")
	}
	return nil
}

// CashMovement is one signed balance change for a bank account.
type CashMovement struct {
	MovementBase

	BankAccountID id.ID `db:"bank_account_id" json:"bankAccountId"`

	// AmountDelta is signed: positive for deposits, negative for debits.
	AmountDelta types.Money `db:"amount_delta" json:"amountDelta"`

	// InstallmentID links the movement to a bill installment payment.
	InstallmentID *id.ID `db:"installment_id" json:"installmentId,omitempty"`

	Description string `db:"description" json:"description,omitempty"`
}

// Validate checks movement invariants.
func (m *CashMovement) Validate() error {
	if m.AmountDelta.IsZero() {
		return apperror.NewValidation("amount delta must be non-zero").
			WithDetail("bankAccountId", m.BankAccountID.String())
	}
	if id.IsNil(m.BankAccountID) {
		return apperror.NewValidation("bank account id is required")
	}
	if id.IsNil(m.RecorderID) {
		return apperror.NewValidation("recorder id is required")
	}
	return nil
}
