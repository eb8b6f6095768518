// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Role of an authenticated actor.
type Role string

const (
	RoleAdmin           Role = "ADMIN"
	RoleWarehouseKeeper Role = "WAREHOUSE_KEEPER"
	RoleCashier         Role = "CASHIER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleWarehouseKeeper, RoleCashier:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation.
// BranchID and WarehouseID are empty when the actor is not assigned to one.
type Actor struct {
	UserID      string
	Role        Role
	BranchID    string
	WarehouseID string
}

// IsAdmin reports whether the actor has unrestricted scope.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetUserID returns the actor's user ID or empty string.
func GetUserID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}

