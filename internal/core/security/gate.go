package security

import (
	"context"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
)

// Gate decides whether the actor in context may mutate or read scoped records.
// It never rewrites the target scope: a write outside the actor's scope is rejected.
type Gate struct{}

// NewGate creates the scope authorization gate.
func NewGate() *Gate { return &Gate{} }

// AuthorizeWrite checks that the actor may mutate a record scoped to target.
func (g *Gate) AuthorizeWrite(ctx context.Context, target Scope) error {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return apperror.NewUnauthorized("actor is not authenticated")
	}
	if !actor.Role.Valid() {
		return apperror.NewScopeAccessDenied("unknown role").WithDetail("role", string(actor.Role))
	}

	if !NewAccessScope(ctx).CanAccess(target) {
		return apperror.NewScopeAccessDenied("record is outside of the actor's scope").
			WithDetail("scope", target.String()).
			WithDetail("role", string(actor.Role))
	}
	return nil
}

// ReadScope returns the access scope reads must be filtered by.
func (g *Gate) ReadScope(ctx context.Context) (*AccessScope, error) {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return nil, apperror.NewUnauthorized("actor is not authenticated")
	}
	return NewAccessScope(ctx), nil
}

// RequireAdmin restricts an operation to ADMIN actors.
func (g *Gate) RequireAdmin(ctx context.Context) error {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return apperror.NewUnauthorized("actor is not authenticated")
	}
	if !actor.IsAdmin() {
		return apperror.NewScopeAccessDenied("operation requires ADMIN role").
			WithDetail("role", string(actor.Role))
	}
	return nil
}
