package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/alerts"
	"stockledger/internal/domain/registers/cash"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/http/v1/middleware"
)

// CashHandler serves cash register endpoints. Balances change only
// through documents and installment payments; the handler manages
// account lifecycle and reads.
type CashHandler struct {
	*BaseHandler
	service *cash.Service
	rules   *alerts.RuleSet
}

// NewCashHandler creates a new cash register handler.
func NewCashHandler(base *BaseHandler, service *cash.Service, rules *alerts.RuleSet) *CashHandler {
	return &CashHandler{BaseHandler: base, service: service, rules: rules}
}

// RegisterRoutes registers cash register routes.
func (h *CashHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/accounts", h.CreateAccount)
	rg.GET("/accounts", h.ListAccounts)
	rg.GET("/accounts/:id", h.GetAccount)
	rg.GET("/accounts/:id/movements", h.Movements)
	rg.POST("/accounts/:id/deactivate", h.Deactivate)
	rg.POST("/accounts/:id/activate", h.Activate)
	rg.POST("/rebuild", middleware.RequireRole("admin"), h.Rebuild)
}

type createAccountRequest struct {
	Name string `json:"name" binding:"required"`
}

type flaggedCashAccount struct {
	entity.CashAccount
	Flagged bool `json:"flagged"`
}

// CreateAccount registers a new bank account.
func (h *CashHandler) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	account, err := h.service.CreateAccount(c.Request.Context(), id.Nil(), req.Name)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, account.BankAccountID.String())
}

// ListAccounts returns bank accounts.
func (h *CashHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.service.ListAccounts(c.Request.Context(), h.ParseBoolQuery(c, "includeInactive"))
	if err != nil {
		h.Error(c, err)
		return
	}

	flagged := make([]flaggedCashAccount, 0, len(accounts))
	for _, account := range accounts {
		flag, err := h.rules.FlagCash(account)
		if err != nil {
			h.Error(c, err)
			return
		}
		flagged = append(flagged, flaggedCashAccount{CashAccount: account, Flagged: flag})
	}

	h.OK(c, dto.ListResponse{Items: flagged, Count: len(flagged)})
}

// GetAccount returns one bank account.
func (h *CashHandler) GetAccount(c *gin.Context) {
	accountID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	account, err := h.service.Account(c.Request.Context(), accountID)
	if err != nil {
		h.Error(c, err)
		return
	}

	flag, err := h.rules.FlagCash(account)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, flaggedCashAccount{CashAccount: account, Flagged: flag})
}

// Movements returns the bank statement, newest first.
func (h *CashHandler) Movements(c *gin.Context) {
	accountID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	filter := cash.MovementFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
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

	movements, err := h.service.MovementHistory(c.Request.Context(), accountID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: movements, Count: len(movements)})
}

// Deactivate flags the account inactive. Refused while unpaid
// installments reference it.
func (h *CashHandler) Deactivate(c *gin.Context) {
	accountID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), accountID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "account deactivated")
}

// Activate clears the inactive flag.
func (h *CashHandler) Activate(c *gin.Context) {
	accountID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Activate(c.Request.Context(), accountID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "account activated")
}

// Rebuild refolds every balance from the movement log.
func (h *CashHandler) Rebuild(c *gin.Context) {
	if err := h.service.RebuildAccounts(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "cash accounts rebuilt")
}
