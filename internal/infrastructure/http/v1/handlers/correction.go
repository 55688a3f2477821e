package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/documents/correction"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// CorrectionHandler serves manual stock correction endpoints.
type CorrectionHandler struct {
	*BaseHandler
	service *correction.Service
}

// NewCorrectionHandler creates a new correction handler.
func NewCorrectionHandler(base *BaseHandler, service *correction.Service) *CorrectionHandler {
	return &CorrectionHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers correction routes.
func (h *CorrectionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Apply)
	rg.POST("/preview", h.Preview)
}

// Apply commits a manual correction. The reason detail is mandatory; a
// deduction below current stock returns 409 until forced.
func (h *CorrectionHandler) Apply(c *gin.Context) {
	var req correction.Request
	if !h.BindJSON(c, &req) {
		return
	}

	correctionID, result, err := h.service.Apply(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.FromGuardResult(result)
	if result.Committed {
		resp.ID = correctionID.String()
	}
	h.GuardOutcome(c, http.StatusCreated, result, resp)
}

// Preview returns the warnings a correction would raise without writing.
func (h *CorrectionHandler) Preview(c *gin.Context) {
	var req correction.Request
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromGuardResult(result))
}
