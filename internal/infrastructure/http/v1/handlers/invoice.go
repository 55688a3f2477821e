package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/documents/invoice"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler serves purchase invoice endpoints.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers invoice routes.
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.POST("/:id/launch", h.Launch)
	rg.GET("/:id/delete-preview", h.PreviewDelete)
	rg.DELETE("/:id", h.Delete)
}

// Create drafts an invoice; no ledger effect until launch.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var doc invoice.Invoice
	if !h.BindJSON(c, &doc) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), &doc)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created.ID.String())
}

// Get returns one invoice.
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoiceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Update edits a draft invoice; launched invoices are frozen.
func (h *InvoiceHandler) Update(c *gin.Context) {
	invoiceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var doc invoice.Invoice
	if !h.BindJSON(c, &doc) {
		return
	}
	doc.ID = invoiceID

	updated, err := h.service.Update(c.Request.Context(), &doc)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// Launch posts the invoice to the ledger: stock additions at cost, the
// optional bank debit, and the optional bill. A warned launch commits
// nothing and returns 409.
func (h *InvoiceHandler) Launch(c *gin.Context) {
	invoiceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Launch(c.Request.Context(), invoiceID, h.ParseBoolQuery(c, "force"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.GuardOutcome(c, http.StatusOK, result, dto.FromGuardResult(result))
}

// PreviewDelete returns the warnings deleting the invoice would raise.
func (h *InvoiceHandler) PreviewDelete(c *gin.Context) {
	invoiceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.PreviewDelete(c.Request.Context(), invoiceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromGuardResult(result))
}

// Delete removes the invoice, reversing its movements when launched.
func (h *InvoiceHandler) Delete(c *gin.Context) {
	invoiceID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Delete(c.Request.Context(), invoiceID, h.ParseBoolQuery(c, "force"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.GuardOutcome(c, http.StatusOK, result, dto.FromGuardResult(result))
}

// List returns invoices matching query filters.
func (h *InvoiceHandler) List(c *gin.Context) {
	filter := invoice.Filter{
		SupplierName: c.Query("supplier"),
		OnlyDrafts:   h.ParseBoolQuery(c, "onlyDrafts"),
		Limit:        h.ParseIntQuery(c, "limit", 50),
		Offset:       h.ParseIntQuery(c, "offset", 0),
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

	invoices, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: invoices, Count: len(invoices)})
}
