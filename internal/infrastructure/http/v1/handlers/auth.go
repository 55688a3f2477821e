package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/auth"
)

// AuthHandler serves authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers auth routes on public and protected groups.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/login", h.Login)
	public.POST("/refresh", h.Refresh)
	protected.POST("/logout", h.Logout)
	protected.GET("/me", h.Me)
}

// Login authenticates an operator.
func (h *AuthHandler) Login(c *gin.Context) {
	var creds auth.Credentials
	if !h.BindJSON(c, &creds) {
		return
	}

	tokens, user, err := h.service.Login(c.Request.Context(), creds)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens": tokens,
		"user":   user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh exchanges a refresh token for a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, tokens)
}

// Logout revokes the actor's refresh tokens.
func (h *AuthHandler) Logout(c *gin.Context) {
	actorID, err := id.Parse(h.GetActorID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Logout(c.Request.Context(), actorID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "logged out")
}

// Me returns the authenticated operator.
func (h *AuthHandler) Me(c *gin.Context) {
	actor := appctx.GetActor(c.Request.Context())
	h.OK(c, actor)
}
