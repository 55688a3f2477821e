package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/alerts"
	"stockledger/internal/domain/costing"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/http/v1/middleware"
)

// StockHandler serves stock register endpoints. The register is
// read-only over HTTP except for the rebuild operation; movements enter
// only through documents and corrections.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
	engine  *costing.Engine
	rules   *alerts.RuleSet
}

// NewStockHandler creates a new stock register handler.
func NewStockHandler(base *BaseHandler, service *stock.Service, engine *costing.Engine, rules *alerts.RuleSet) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service, engine: engine, rules: rules}
}

// RegisterRoutes registers stock register routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/accounts", h.ListAccounts)
	rg.GET("/accounts/:type/:id", h.GetAccount)
	rg.GET("/accounts/:type/:id/movements", h.Movements)
	rg.GET("/accounts/:type/:id/cost", h.Cost)
	rg.POST("/rebuild", middleware.RequireRole("admin"), h.Rebuild)
}

// flaggedAccount decorates an account row with the alert rule outcome.
type flaggedAccount struct {
	entity.StockAccount
	Flagged bool `json:"flagged"`
}

// ListAccounts returns account rows matching query filters.
func (h *StockHandler) ListAccounts(c *gin.Context) {
	filter := stock.AccountFilter{
		ExcludeZero:  h.ParseBoolQuery(c, "excludeZero"),
		LowStockOnly: h.ParseBoolQuery(c, "lowStockOnly"),
	}
	if t := c.Query("type"); t != "" {
		entityType := entity.StockEntityType(t)
		if !entityType.IsValid() {
			h.Error(c, apperror.NewValidation("unknown entity type").WithDetail("type", t))
			return
		}
		filter.EntityType = &entityType
	}

	accounts, err := h.service.ListAccounts(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	flagged := make([]flaggedAccount, 0, len(accounts))
	for _, account := range accounts {
		flag, err := h.rules.FlagStock(account)
		if err != nil {
			h.Error(c, err)
			return
		}
		flagged = append(flagged, flaggedAccount{StockAccount: account, Flagged: flag})
	}

	h.OK(c, dto.ListResponse{Items: flagged, Count: len(flagged)})
}

// GetAccount returns one account row.
func (h *StockHandler) GetAccount(c *gin.Context) {
	entityType := entity.StockEntityType(c.Param("type"))
	if !entityType.IsValid() {
		h.Error(c, apperror.NewValidation("unknown entity type").WithDetail("type", c.Param("type")))
		return
	}
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	account, err := h.service.Account(c.Request.Context(), entityType, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	flag, err := h.rules.FlagStock(account)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, flaggedAccount{StockAccount: account, Flagged: flag})
}

// Movements returns the audit history for an entity, newest first.
func (h *StockHandler) Movements(c *gin.Context) {
	entityType := entity.StockEntityType(c.Param("type"))
	if !entityType.IsValid() {
		h.Error(c, apperror.NewValidation("unknown entity type").WithDetail("type", c.Param("type")))
		return
	}
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	filter := stock.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if r := c.Query("reason"); r != "" {
		reason := entity.StockReason(r)
		filter.Reason = &reason
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date").WithDetail("from", from))
			return
		}
		filter.FromDate = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date").WithDetail("to", to))
			return
		}
		filter.ToDate = &t
	}

	movements, err := h.service.MovementHistory(c.Request.Context(), entityType, entityID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: movements, Count: len(movements)})
}

// Cost returns the costing view for an entity: running average, last
// paid price, and optional projections. `addQuantity` with `unitCost`
// previews the post-addition average; `deductQuantity` prices a
// prospective deduction at the current average.
func (h *StockHandler) Cost(c *gin.Context) {
	entityType := entity.StockEntityType(c.Param("type"))
	if !entityType.IsValid() {
		h.Error(c, apperror.NewValidation("unknown entity type").WithDetail("type", c.Param("type")))
		return
	}
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	account, err := h.service.Account(c.Request.Context(), entityType, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	lastCost, err := h.engine.LastCost(c.Request.Context(), entityType, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}

	view := gin.H{
		"quantity":    account.Quantity,
		"averageCost": account.AverageCost,
		"lastCost":    lastCost,
	}

	if addQty := c.Query("addQuantity"); addQty != "" {
		quantity, err := types.NewQuantityFromString(addQty)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid addQuantity").WithDetail("addQuantity", addQty))
			return
		}
		unitCost, err := types.NewMoneyFromString(c.DefaultQuery("unitCost", "0"))
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid unitCost").WithDetail("unitCost", c.Query("unitCost")))
			return
		}
		preview, err := h.engine.PreviewAddition(c.Request.Context(), entityType, entityID, quantity, unitCost)
		if err != nil {
			h.Error(c, err)
			return
		}
		view["additionPreview"] = preview
	}

	if deductQty := c.Query("deductQuantity"); deductQty != "" {
		quantity, err := types.NewQuantityFromString(deductQty)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid deductQuantity").WithDetail("deductQuantity", deductQty))
			return
		}
		basis, err := h.engine.CostBasisForDeduction(c.Request.Context(), entityType, entityID, quantity)
		if err != nil {
			h.Error(c, err)
			return
		}
		view["costBasis"] = basis
	}

	h.OK(c, view)
}

// Rebuild refolds every account from the movement log.
func (h *StockHandler) Rebuild(c *gin.Context) {
	if err := h.service.RebuildAccounts(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "stock accounts rebuilt")
}
