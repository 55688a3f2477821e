package stock

import (
	"context"
	"fmt"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// Service provides business operations for the stock ledger.
// Commits are transaction-scoped by the caller (the guard protocol);
// the service itself never opens transactions.
type Service struct {
	repo Repository
}

// NewService creates a new stock ledger service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// RecordMovements validates and appends movements, folding each into its
// account row. Must be called inside a transaction that already holds the
// relevant account locks; the guard protocol is the only caller.
func (s *Service) RecordMovements(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	for i := range movements {
		if err := movements[i].Validate(); err != nil {
			return fmt.Errorf("movement %d: %w", i, err)
		}
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	for i := range movements {
		m := movements[i]
		account, err := s.repo.GetAccountForUpdate(ctx, m.EntityType, m.EntityID)
		if err != nil {
			return fmt.Errorf("get account for %s: %w", m.EntityID, err)
		}
		if err := s.repo.UpsertAccount(ctx, account.Apply(m)); err != nil {
			return fmt.Errorf("fold account for %s: %w", m.EntityID, err)
		}
	}

	logger.Info(ctx, "recorded stock movements",
		"count", len(movements),
		"recorder_id", movements[0].RecorderID,
		"reason", movements[0].Reason,
	)

	return nil
}

// CurrentQuantity returns the current quantity for an entity.
func (s *Service) CurrentQuantity(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (types.Quantity, error) {
	account, err := s.repo.GetAccount(ctx, entityType, entityID)
	if err != nil {
		return types.Zero(), fmt.Errorf("get account: %w", err)
	}
	return account.Quantity, nil
}

// Account returns the full account row for an entity.
func (s *Service) Account(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (entity.StockAccount, error) {
	return s.repo.GetAccount(ctx, entityType, entityID)
}

// AccountForUpdate returns the account under a row lock. Used by the guard
// protocol during the commit step; callers must be inside a transaction.
func (s *Service) AccountForUpdate(ctx context.Context, entityType entity.StockEntityType, entityID id.ID) (entity.StockAccount, error) {
	return s.repo.GetAccountForUpdate(ctx, entityType, entityID)
}

// MovementHistory returns the audit history for an entity, newest first.
func (s *Service) MovementHistory(ctx context.Context, entityType entity.StockEntityType, entityID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	return s.repo.ListMovements(ctx, entityType, entityID, filter)
}

// MovementsByRecorder returns the movements a document created, used to
// build reversal lines.
func (s *Service) MovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	return s.repo.GetMovementsByRecorder(ctx, recorderID)
}

// ListAccounts returns account rows matching the filter.
func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) ([]entity.StockAccount, error) {
	return s.repo.ListAccounts(ctx, filter)
}

// SetMinQuantity updates the low-stock threshold for an entity.
func (s *Service) SetMinQuantity(ctx context.Context, entityType entity.StockEntityType, entityID id.ID, min types.Quantity) error {
	account, err := s.repo.GetAccount(ctx, entityType, entityID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	account.EntityType = entityType
	account.EntityID = entityID
	account.MinQuantity = min
	return s.repo.UpsertAccount(ctx, account)
}

// RebuildAccounts refolds every account from the movement log.
// This is the recovery operation backing the replay invariant: the account
// table is a cache and the movement log is the source of truth.
func (s *Service) RebuildAccounts(ctx context.Context) error {
	if err := s.repo.RebuildAccounts(ctx); err != nil {
		return fmt.Errorf("rebuild accounts: %w", err)
	}
	logger.Info(ctx, "rebuilt stock accounts from movement log")
	return nil
}
