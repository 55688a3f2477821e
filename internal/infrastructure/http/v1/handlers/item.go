package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/entity"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// ItemHandler serves catalog item endpoints.
type ItemHandler struct {
	*BaseHandler
	service *item.Service
}

// NewItemHandler creates a new item handler.
func NewItemHandler(base *BaseHandler, service *item.Service) *ItemHandler {
	return &ItemHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers item routes.
func (h *ItemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.POST("/:id/deactivate", h.Deactivate)
}

// Create registers a new catalog item.
func (h *ItemHandler) Create(c *gin.Context) {
	var it item.Item
	if !h.BindJSON(c, &it) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), &it)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created.ID.String())
}

// Get returns one catalog item.
func (h *ItemHandler) Get(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	it, err := h.service.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, it)
}

// Update modifies a catalog item.
func (h *ItemHandler) Update(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var it item.Item
	if !h.BindJSON(c, &it) {
		return
	}
	it.ID = itemID

	updated, err := h.service.Update(c.Request.Context(), &it)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// Deactivate hides the item from new documents.
func (h *ItemHandler) Deactivate(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), itemID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "item deactivated")
}

// List returns catalog items matching query filters.
func (h *ItemHandler) List(c *gin.Context) {
	filter := item.Filter{
		Type:            entity.StockEntityType(c.Query("type")),
		IncludeInactive: h.ParseBoolQuery(c, "includeInactive"),
		Search:          c.Query("search"),
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: items, Count: len(items)})
}
