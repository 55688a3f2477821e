package sale

import (
	"context"
	"fmt"
	"time"

	appcontext "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/guard"
	"stockledger/internal/domain/registers/stock"
	"stockledger/pkg/logger"
)

// RecorderType tags movements created by sale documents.
const RecorderType = "Sale"

// PriceResolution is the caller's answer to a price-drift warning.
type PriceResolution string

const (
	// PriceKeep keeps the stored snapshot price.
	PriceKeep PriceResolution = "keep"
	// PriceAdopt rewrites the line to the current catalog price.
	PriceAdopt PriceResolution = "adopt"
)

// PriceChangeWarning reports a line whose catalog price moved since the
// sale stored its snapshot. Like balance warnings it is data, not an
// error; the caller resubmits with a resolution.
type PriceChangeWarning struct {
	EntityID     id.ID       `json:"entityId"`
	EntityName   string      `json:"entityName"`
	StoredPrice  types.Money `json:"storedPrice"`
	CurrentPrice types.Money `json:"currentPrice"`
}

// UpdateOptions carries the force flag and the price-drift resolution.
type UpdateOptions struct {
	Force bool

	// PriceResolution must be set once drift was reported; an empty
	// resolution with drift present returns the warnings uncommitted.
	PriceResolution PriceResolution
}

// Result is the orchestrator outcome: the persisted document (nil when
// not committed) plus both warning channels.
type Result struct {
	Sale         *Sale                `json:"sale,omitempty"`
	Guard        guard.Result         `json:"guard"`
	PriceChanges []PriceChangeWarning `json:"priceChanges,omitempty"`
}

// Committed reports whether the document and its movements were written.
func (r Result) Committed() bool {
	return r.Guard.Committed && len(r.PriceChanges) == 0
}

// Service orchestrates sale documents over the guarded mutation protocol.
type Service struct {
	repo     Repository
	protocol *guard.Protocol
	stockSvc *stock.Service
	catalog  *item.Service
}

// NewService creates a sale service.
func NewService(repo Repository, protocol *guard.Protocol, stockSvc *stock.Service, catalog *item.Service) *Service {
	return &Service{
		repo:     repo,
		protocol: protocol,
		stockSvc: stockSvc,
		catalog:  catalog,
	}
}

// Create validates the sale, snapshots missing prices from the catalog,
// and commits document plus stock deductions atomically. When a deduction
// would go negative and force is false, nothing is written and the
// warnings come back for confirmation.
func (s *Service) Create(ctx context.Context, sale *Sale, force bool) (Result, error) {
	if id.IsNil(sale.ID) {
		sale.ID = id.New()
	}
	sale.TenantID = appcontext.GetTenantID(ctx)
	sale.CreatedBy = appcontext.GetActorID(ctx)
	now := time.Now().UTC()
	sale.CreatedAt = now
	sale.UpdatedAt = now

	for i := range sale.Items {
		line := &sale.Items[i]
		if id.IsNil(line.LineID) {
			line.LineID = id.New()
		}
		line.SaleID = sale.ID
		if line.UnitPrice.IsZero() {
			price, err := s.catalog.SalePrice(ctx, line.EntityType, line.EntityID)
			if err != nil {
				return Result{}, err
			}
			line.UnitPrice = price
		}
	}

	if err := sale.Validate(); err != nil {
		return Result{}, err
	}
	sale.ComputeTotal()

	req := s.guardRequest(ctx, sale, force)
	req.StockLines = deductionLines(sale.Items)
	req.SideEffect = func(ctx context.Context) error {
		return s.repo.Create(ctx, sale)
	}

	guardResult, err := s.protocol.Execute(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if !guardResult.Committed {
		return Result{Guard: guardResult}, nil
	}

	logger.Info(ctx, "sale created", "sale_id", sale.ID, "total", sale.Total)
	return Result{Sale: sale, Guard: guardResult}, nil
}

// Preview runs the negative-balance check for a prospective sale without
// writing anything.
func (s *Service) Preview(ctx context.Context, sale *Sale) (guard.Result, error) {
	if err := sale.Validate(); err != nil {
		return guard.Result{}, err
	}
	req := s.guardRequest(ctx, sale, false)
	if id.IsNil(req.RecorderID) {
		req.RecorderID = id.New()
	}
	req.StockLines = deductionLines(sale.Items)
	return s.protocol.Preview(ctx, req)
}

// Update replaces the sale's items: the old movements are reversed and
// the new deductions applied in one guarded transaction, so the ledger
// never shows a half-edited sale. Price drift against the catalog is a
// separate gate answered through opts.PriceResolution.
func (s *Service) Update(ctx context.Context, updated *Sale, opts UpdateOptions) (Result, error) {
	current, err := s.repo.GetByID(ctx, updated.ID)
	if err != nil {
		return Result{}, err
	}

	updated.TenantID = current.TenantID
	updated.CreatedBy = current.CreatedBy
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	priceChanges, err := s.resolvePrices(ctx, current, updated, opts.PriceResolution)
	if err != nil {
		return Result{}, err
	}
	if len(priceChanges) > 0 {
		return Result{PriceChanges: priceChanges}, nil
	}

	if err := updated.Validate(); err != nil {
		return Result{}, err
	}
	updated.ComputeTotal()

	oldMovements, err := s.stockSvc.MovementsByRecorder(ctx, updated.ID)
	if err != nil {
		return Result{}, err
	}

	req := s.guardRequest(ctx, updated, opts.Force)
	req.StockLines = append(guard.ReversalLines(oldMovements, entity.ReasonSaleDeduction, false), deductionLines(updated.Items)...)
	req.SideEffect = func(ctx context.Context) error {
		return s.repo.Update(ctx, updated)
	}

	guardResult, err := s.protocol.Execute(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if !guardResult.Committed {
		return Result{Guard: guardResult}, nil
	}

	logger.Info(ctx, "sale updated", "sale_id", updated.ID, "total", updated.Total)
	return Result{Sale: updated, Guard: guardResult}, nil
}

// Delete reverses the sale's movements and removes the document in one
// guarded transaction. Reversals add stock back, so they cannot warn.
func (s *Service) Delete(ctx context.Context, saleID id.ID, force bool) (Result, error) {
	sale, err := s.repo.GetByID(ctx, saleID)
	if err != nil {
		return Result{}, err
	}

	oldMovements, err := s.stockSvc.MovementsByRecorder(ctx, saleID)
	if err != nil {
		return Result{}, err
	}

	req := s.guardRequest(ctx, sale, force)
	req.StockLines = guard.ReversalLines(oldMovements, entity.ReasonSaleDeduction, false)
	req.SideEffect = func(ctx context.Context) error {
		return s.repo.Delete(ctx, saleID)
	}

	guardResult, err := s.protocol.Execute(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if !guardResult.Committed {
		return Result{Guard: guardResult}, nil
	}

	logger.Info(ctx, "sale deleted", "sale_id", saleID)
	return Result{Guard: guardResult}, nil
}

// GetByID returns one sale document.
func (s *Service) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.repo.GetByID(ctx, saleID)
}

// List returns sale documents matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Sale, error) {
	return s.repo.List(ctx, filter)
}

// resolvePrices compares each line's stored snapshot against the current
// catalog price. Unresolved drift comes back as warnings; a resolution
// rewrites the lines in place.
func (s *Service) resolvePrices(ctx context.Context, current, updated *Sale, resolution PriceResolution) ([]PriceChangeWarning, error) {
	snapshots := make(map[string]types.Money, len(current.Items))
	for _, line := range current.Items {
		snapshots[lineKey(line.EntityType, line.EntityID)] = line.UnitPrice
	}

	var warnings []PriceChangeWarning
	for i := range updated.Items {
		line := &updated.Items[i]

		snapshot, hadLine := snapshots[lineKey(line.EntityType, line.EntityID)]
		catalogItem, err := s.catalog.GetByID(ctx, line.EntityID)
		if err != nil {
			return nil, err
		}

		if !hadLine {
			// New lines always take the current price; nothing to drift from.
			line.UnitPrice = catalogItem.SalePrice
			continue
		}

		if snapshot.Equal(catalogItem.SalePrice) {
			line.UnitPrice = snapshot
			continue
		}

		switch resolution {
		case PriceKeep:
			line.UnitPrice = snapshot
		case PriceAdopt:
			line.UnitPrice = catalogItem.SalePrice
		default:
			warnings = append(warnings, PriceChangeWarning{
				EntityID:     line.EntityID,
				EntityName:   catalogItem.Name,
				StoredPrice:  snapshot,
				CurrentPrice: catalogItem.SalePrice,
			})
		}
	}

	return warnings, nil
}

func (s *Service) guardRequest(ctx context.Context, sale *Sale, force bool) guard.Request {
	return guard.Request{
		TenantID:     appcontext.GetTenantID(ctx),
		RecorderID:   sale.ID,
		RecorderType: RecorderType,
		ActorID:      appcontext.GetActorID(ctx),
		Force:        force,
	}
}

func lineKey(entityType entity.StockEntityType, entityID id.ID) string {
	return fmt.Sprintf("%s/%s", entityType, entityID)
}

// deductionLines builds one negative stock line per sale item.
func deductionLines(items []SaleItem) []guard.StockLine {
	lines := make([]guard.StockLine, 0, len(items))
	for _, line := range items {
		lines = append(lines, guard.StockLine{
			EntityType: line.EntityType,
			EntityID:   line.EntityID,
			Delta:      line.Quantity.Neg(),
			Reason:     entity.ReasonSaleDeduction,
		})
	}
	return lines
}
