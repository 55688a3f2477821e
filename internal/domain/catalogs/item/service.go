package item

import (
	"context"
	"fmt"

	appcontext "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/stock"
	"stockledger/pkg/logger"
)

// Service provides catalog operations. It doubles as the entity name
// resolver for guarded mutations: a catalog lookup is both display-name
// source and existence check.
type Service struct {
	repo     Repository
	stockSvc *stock.Service
}

// NewService creates a catalog service. stockSvc mirrors min-quantity
// changes onto stock accounts; it must not be nil.
func NewService(repo Repository, stockSvc *stock.Service) *Service {
	return &Service{
		repo:     repo,
		stockSvc: stockSvc,
	}
}

// Create registers a catalog item and seeds its low-stock threshold.
func (s *Service) Create(ctx context.Context, item *Item) (*Item, error) {
	if id.IsNil(item.ID) {
		item.ID = id.New()
	}
	item.TenantID = appcontext.GetTenantID(ctx)
	item.Active = true

	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	if !item.MinQuantity.IsZero() {
		if err := s.stockSvc.SetMinQuantity(ctx, item.Type, item.ID, item.MinQuantity); err != nil {
			return nil, fmt.Errorf("set min quantity: %w", err)
		}
	}

	logger.Info(ctx, "catalog item created",
		"item_id", item.ID, "type", item.Type, "name", item.Name)
	return item, nil
}

// Update modifies a catalog item. The entity type is fixed at creation;
// changing it would orphan the movement history.
func (s *Service) Update(ctx context.Context, item *Item) (*Item, error) {
	current, err := s.repo.GetByID(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	item.Type = current.Type
	item.TenantID = current.TenantID
	item.CreatedAt = current.CreatedAt

	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}

	if !item.MinQuantity.Equal(current.MinQuantity) {
		if err := s.stockSvc.SetMinQuantity(ctx, item.Type, item.ID, item.MinQuantity); err != nil {
			return nil, fmt.Errorf("set min quantity: %w", err)
		}
	}

	return item, nil
}

// GetByID returns one catalog item.
func (s *Service) GetByID(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.repo.GetByID(ctx, itemID)
}

// List returns catalog items matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Item, error) {
	return s.repo.List(ctx, filter)
}

// Deactivate hides the item from new documents. Movement history stays.
func (s *Service) Deactivate(ctx context.Context, itemID id.ID) error {
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	item.Active = false
	return s.repo.Update(ctx, item)
}

// SalePrice returns the current catalog price for a sellable item.
func (s *Service) SalePrice(ctx context.Context, entityType entity.StockEntityType, itemID id.ID) (types.Money, error) {
	item, err := s.repo.GetByTypeAndID(ctx, entityType, itemID)
	if err != nil {
		return types.Zero(), err
	}
	return item.SalePrice, nil
}

// EntityName resolves the display name for a stock entity. Satisfies the
// guard protocol's name resolver; a NotFound here fails the whole guarded
// request as invalid input.
func (s *Service) EntityName(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (string, error) {
	item, err := s.repo.GetByTypeAndID(ctx, entityType, entityID)
	if err != nil {
		return "", err
	}
	return item.Name, nil
}
