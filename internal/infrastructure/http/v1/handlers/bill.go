package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/bill"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// BillHandler serves supplier bill endpoints.
type BillHandler struct {
	*BaseHandler
	service *bill.Service
}

// NewBillHandler creates a new bill handler.
func NewBillHandler(base *BaseHandler, service *bill.Service) *BillHandler {
	return &BillHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers bill routes.
func (h *BillHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.DELETE("/:id", h.Cancel)
	rg.POST("/installments/:id/pay", h.PayInstallment)
	rg.POST("/installments/:id/cancel", h.CancelInstallment)
}

// billView decorates installments with their derived status: overdue is
// computed at read time, never stored.
type billView struct {
	*bill.Bill
	Installments []installmentView `json:"installments"`
}

type installmentView struct {
	bill.Installment
	EffectiveStatus bill.InstallmentStatus `json:"effectiveStatus"`
}

func viewOf(b *bill.Bill, now time.Time) billView {
	views := make([]installmentView, 0, len(b.Installments))
	for _, inst := range b.Installments {
		views = append(views, installmentView{
			Installment:     inst,
			EffectiveStatus: inst.EffectiveStatus(now),
		})
	}
	return billView{Bill: b, Installments: views}
}

// Create opens a manually entered bill.
func (h *BillHandler) Create(c *gin.Context) {
	var doc bill.Bill
	if !h.BindJSON(c, &doc) {
		return
	}

	created, err := h.service.CreateBill(c.Request.Context(), &doc)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created.ID.String())
}

// Get returns one bill with derived installment statuses.
func (h *BillHandler) Get(c *gin.Context) {
	billID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.GetBill(c.Request.Context(), billID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, viewOf(doc, time.Now()))
}

// Cancel removes a bill; refused while any installment is paid.
func (h *BillHandler) Cancel(c *gin.Context) {
	billID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.CancelBill(c.Request.Context(), billID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "bill cancelled")
}

type payInstallmentRequest struct {
	BankAccountID id.ID `json:"bankAccountId" binding:"required"`
	Force         bool  `json:"force"`
}

// PayInstallment debits the bank account and flips the installment to
// paid. An overdrawing payment returns 409 until forced.
func (h *BillHandler) PayInstallment(c *gin.Context) {
	installmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req payInstallmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.PayInstallment(c.Request.Context(), installmentID, req.BankAccountID, req.Force)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.GuardOutcome(c, http.StatusOK, result, dto.FromGuardResult(result))
}

// CancelInstallment flips a pending installment to cancelled.
func (h *BillHandler) CancelInstallment(c *gin.Context) {
	installmentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.CancelInstallment(c.Request.Context(), installmentID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "installment cancelled")
}

// List returns bills matching query filters.
func (h *BillHandler) List(c *gin.Context) {
	filter := bill.Filter{
		SupplierName: c.Query("supplier"),
		OnlyOpen:     h.ParseBoolQuery(c, "onlyOpen"),
		Limit:        h.ParseIntQuery(c, "limit", 50),
		Offset:       h.ParseIntQuery(c, "offset", 0),
	}
	if due := c.Query("dueBefore"); due != "" {
		t, err := time.Parse(time.RFC3339, due)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid dueBefore date").WithDetail("dueBefore", due))
			return
		}
		filter.DueBefore = &t
	}

	bills, err := h.service.ListBills(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	now := time.Now()
	views := make([]billView, 0, len(bills))
	for _, b := range bills {
		views = append(views, viewOf(b, now))
	}
	h.OK(c, dto.ListResponse{Items: views, Count: len(views)})
}
