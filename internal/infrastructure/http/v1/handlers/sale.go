package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/documents/sale"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// SaleHandler serves sale document endpoints.
type SaleHandler struct {
	*BaseHandler
	service *sale.Service
}

// NewSaleHandler creates a new sale handler.
func NewSaleHandler(base *BaseHandler, service *sale.Service) *SaleHandler {
	return &SaleHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers sale routes.
func (h *SaleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.POST("/preview", h.Preview)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

func saleResponse(result sale.Result) dto.MutationResponse {
	resp := dto.FromGuardResult(result.Guard)
	if result.Sale != nil {
		resp.ID = result.Sale.ID.String()
		resp.Document = result.Sale
	}
	if len(result.PriceChanges) > 0 {
		resp.PriceChanges = result.PriceChanges
	}
	return resp
}

// Create commits a sale with its stock deductions. A deduction that
// would go negative returns 409 with warnings; resubmit with
// force=true to commit through them.
func (h *SaleHandler) Create(c *gin.Context) {
	var doc sale.Sale
	if !h.BindJSON(c, &doc) {
		return
	}

	result, err := h.service.Create(c.Request.Context(), &doc, h.ParseBoolQuery(c, "force"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.GuardOutcome(c, http.StatusCreated, result.Guard, saleResponse(result))
}

// Preview returns the warnings a sale would raise without writing.
func (h *SaleHandler) Preview(c *gin.Context) {
	var doc sale.Sale
	if !h.BindJSON(c, &doc) {
		return
	}

	result, err := h.service.Preview(c.Request.Context(), &doc)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromGuardResult(result))
}

// Get returns one sale.
func (h *SaleHandler) Get(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Update replaces the sale's items, reversing the old deductions and
// applying the new ones atomically. Price drift against the catalog
// also returns 409 until resolved with priceResolution=keep|adopt.
func (h *SaleHandler) Update(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var doc sale.Sale
	if !h.BindJSON(c, &doc) {
		return
	}
	doc.ID = saleID

	opts := sale.UpdateOptions{
		Force:           h.ParseBoolQuery(c, "force"),
		PriceResolution: sale.PriceResolution(c.Query("priceResolution")),
	}
	if opts.PriceResolution != "" && opts.PriceResolution != sale.PriceKeep && opts.PriceResolution != sale.PriceAdopt {
		h.Error(c, apperror.NewValidation("priceResolution must be keep or adopt"))
		return
	}

	result, err := h.service.Update(c.Request.Context(), &doc, opts)
	if err != nil {
		h.Error(c, err)
		return
	}
	if len(result.PriceChanges) > 0 {
		h.Warned(c, saleResponse(result))
		return
	}
	h.GuardOutcome(c, http.StatusOK, result.Guard, saleResponse(result))
}

// Delete reverses the sale's deductions and removes the document.
func (h *SaleHandler) Delete(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Delete(c.Request.Context(), saleID, h.ParseBoolQuery(c, "force"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.GuardOutcome(c, http.StatusOK, result.Guard, saleResponse(result))
}

// List returns sales matching query filters.
func (h *SaleHandler) List(c *gin.Context) {
	filter := sale.Filter{
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

	sales, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: sales, Count: len(sales)})
}
