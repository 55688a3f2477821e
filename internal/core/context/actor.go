// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// ActorContext identifies the operator performing a request.
// Every movement the ledger appends carries the actor id for audit.
type ActorContext struct {
	ActorID  string
	TenantID string
	Email    string
	Roles    []string
	IsAdmin  bool
}

type actorContextKey struct{}

// WithActor adds ActorContext to context.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns ActorContext from context.
func GetActor(ctx context.Context) *ActorContext {
	if v, ok := ctx.Value(actorContextKey{}).(*ActorContext); ok {
		return v
	}
	return nil
}

// GetActorID returns actor ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ActorID
	}
	return ""
}

// GetTenantID returns tenant ID from context or empty string.
func GetTenantID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.TenantID
	}
	return ""
}

// HasRole checks if actor has a specific role.
func HasRole(ctx context.Context, role string) bool {
	a := GetActor(ctx)
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
