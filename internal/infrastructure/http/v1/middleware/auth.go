package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
)

// HeaderTenantID optionally pins the request to a tenant; when present it
// must match the token's tenant claim.
const HeaderTenantID = "X-Tenant-ID"

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.ActorContext, error)
}

// Auth middleware validates JWT tokens and populates the actor context.
// Every movement written downstream carries the actor id resolved here.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		actor, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		if headerTenant := c.GetHeader(HeaderTenantID); headerTenant != "" && headerTenant != actor.TenantID {
			_ = c.Error(
				apperror.NewForbidden("tenant mismatch").
					WithDetail("header_tenant_id", headerTenant).
					WithDetail("token_tenant_id", actor.TenantID),
			)
			c.Abort()
			return
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)

		c.Set("actor_id", actor.ActorID)

		c.Next()
	}
}

// RequireRole middleware checks if the actor has one of the required roles.
// Admins pass every check.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := appctx.GetActor(c.Request.Context())
		if actor == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if actor.IsAdmin {
			c.Next()
			return
		}

		for _, required := range roles {
			for _, role := range actor.Roles {
				if role == required {
					c.Next()
					return
				}
			}
		}

		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
