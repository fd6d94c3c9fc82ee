package auth

import (
	"context"
	"errors"
	"slices"
)

type contextKey string

const userContextKey contextKey = "user_context"

// Role names understood by the Authorizer.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

type UserContext struct {
	UserID   string
	TenantID string
	Roles    []string
}

// ContextWithUserContext adds user context to the context
func ContextWithUserContext(ctx context.Context, userCtx *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, userCtx)
}

// UserContextFromContext extracts user context from the context
func UserContextFromContext(ctx context.Context) (*UserContext, error) {
	userCtx, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok {
		return nil, errors.New("user context not found")
	}
	return userCtx, nil
}

type Authorizer struct{}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// CanRaise reports whether the user may trigger synthetic failures through
// the diagnostics service.
func (a *Authorizer) CanRaise(userCtx *UserContext) bool {
	return hasRole(userCtx, RoleAdmin) || hasRole(userCtx, RoleOperator)
}

func hasRole(userCtx *UserContext, role string) bool {
	if userCtx == nil {
		return false
	}
	return slices.Contains(userCtx.Roles, role)
}
