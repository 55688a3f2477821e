// Package correction applies manual stock corrections: spoilage,
// recounts, breakage. A correction is a single guarded movement that
// always carries an operator-written reason, because it is the one
// movement kind with no document to explain it.
package correction

import (
	"context"

	"stockledger/internal/core/apperror"
	appcontext "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/guard"
	"stockledger/pkg/logger"
)

// RecorderType tags movements created by manual corrections.
const RecorderType = "ManualCorrection"

// Request is one manual correction.
type Request struct {
	EntityType entity.StockEntityType `json:"entityType"`
	EntityID   id.ID                  `json:"entityId"`

	// Delta is signed: positive found stock, negative losses.
	Delta types.Quantity `json:"delta"`

	// ReasonDetail is mandatory free text ("spoilage after freezer
	// failure", "recount 2026-08-30").
	ReasonDetail string `json:"reasonDetail"`

	// UnitCost prices positive corrections into the weighted average.
	// Negative corrections never carry a cost.
	UnitCost *types.Money `json:"unitCost,omitempty"`

	Force bool `json:"force"`
}

// Service applies manual corrections through the guard protocol.
type Service struct {
	protocol *guard.Protocol
}

// NewService creates a correction service.
func NewService(protocol *guard.Protocol) *Service {
	return &Service{protocol: protocol}
}

// Apply commits the correction. A negative correction below the current
// quantity warns like any deduction and commits only when forced.
// Returns the correction id recorded on the movement.
func (s *Service) Apply(ctx context.Context, req Request) (id.ID, guard.Result, error) {
	if req.ReasonDetail == "" {
		return id.Nil(), guard.Result{}, apperror.NewValidation("reason detail is required for manual corrections")
	}
	if req.UnitCost != nil && !req.Delta.IsPositive() {
		return id.Nil(), guard.Result{}, apperror.NewValidation("unit cost is only valid on positive corrections")
	}

	correctionID := id.New()
	result, err := s.protocol.Execute(ctx, guard.Request{
		TenantID:     appcontext.GetTenantID(ctx),
		RecorderID:   correctionID,
		RecorderType: RecorderType,
		ActorID:      appcontext.GetActorID(ctx),
		Force:        req.Force,
		StockLines: []guard.StockLine{{
			EntityType:   req.EntityType,
			EntityID:     req.EntityID,
			Delta:        req.Delta,
			Reason:       entity.ReasonManualCorrection,
			ReasonDetail: req.ReasonDetail,
			UnitCost:     req.UnitCost,
		}},
	})
	if err != nil {
		return id.Nil(), guard.Result{}, err
	}

	if result.Committed {
		logger.Info(ctx, "manual correction applied",
			"correction_id", correctionID,
			"entity_id", req.EntityID,
			"delta", req.Delta,
		)
	}
	return correctionID, result, nil
}

// Preview computes the warnings a correction would raise without
// writing anything.
func (s *Service) Preview(ctx context.Context, req Request) (guard.Result, error) {
	if req.ReasonDetail == "" {
		return guard.Result{}, apperror.NewValidation("reason detail is required for manual corrections")
	}
	return s.protocol.Preview(ctx, guard.Request{
		TenantID:     appcontext.GetTenantID(ctx),
		RecorderID:   id.New(),
		RecorderType: RecorderType,
		ActorID:      appcontext.GetActorID(ctx),
		StockLines: []guard.StockLine{{
			EntityType:   req.EntityType,
			EntityID:     req.EntityID,
			Delta:        req.Delta,
			Reason:       entity.ReasonManualCorrection,
			ReasonDetail: req.ReasonDetail,
			UnitCost:     req.UnitCost,
		}},
	})
}
