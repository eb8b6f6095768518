// Package security provides authorization and access control.
package security

import (
	"context"
	"fmt"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
)

// ScopeKind identifies what a record is scoped to.
type ScopeKind string

const (
	ScopeGlobal    ScopeKind = ""
	ScopeBranch    ScopeKind = "BRANCH"
	ScopeWarehouse ScopeKind = "WAREHOUSE"
)

// Scope is the branch or warehouse a record belongs to.
// The zero value is the global scope.
type Scope struct {
	Kind ScopeKind `json:"kind,omitempty"`
	ID   string    `json:"id,omitempty"`
}

func BranchScope(id string) Scope    { return Scope{Kind: ScopeBranch, ID: id} }
func WarehouseScope(id string) Scope { return Scope{Kind: ScopeWarehouse, ID: id} }

// IsGlobal reports whether the record is unscoped.
func (s Scope) IsGlobal() bool { return s.Kind == ScopeGlobal }

// Validate checks kind/id consistency.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		if s.ID != "" {
			return apperror.NewValidation("global scope must not carry an id")
		}
	case ScopeBranch, ScopeWarehouse:
		if s.ID == "" {
			return apperror.NewValidation(fmt.Sprintf("%s scope requires an id", s.Kind))
		}
	default:
		return apperror.NewValidation("unknown scope kind").WithDetail("kind", string(s.Kind))
	}
	return nil
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "GLOBAL"
	}
	return string(s.Kind) + ":" + s.ID
}

// AccessScope defines the boundaries of data visibility for the current request.
type AccessScope struct {
	UserID string
	Role   appctx.Role

	// Unrestricted bypasses scope filtering (ADMIN).
	Unrestricted bool

	// Allowed lists the scopes the actor is assigned to.
	// Empty = no access (unless Unrestricted).
	Allowed []Scope
}

// NewAccessScope creates AccessScope from the actor in context.
func NewAccessScope(ctx context.Context) *AccessScope {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return &AccessScope{}
	}

	s := &AccessScope{
		UserID:       actor.UserID,
		Role:         actor.Role,
		Unrestricted: actor.IsAdmin(),
	}
	if actor.BranchID != "" {
		s.Allowed = append(s.Allowed, BranchScope(actor.BranchID))
	}
	if actor.WarehouseID != "" {
		s.Allowed = append(s.Allowed, WarehouseScope(actor.WarehouseID))
	}
	return s
}

// CanAccess checks whether the actor may touch records in target.
// Global records are reserved to unrestricted actors.
func (s *AccessScope) CanAccess(target Scope) bool {
	if s.Unrestricted {
		return true
	}
	if target.IsGlobal() {
		return false
	}
	for _, a := range s.Allowed {
		if a == target {
			return true
		}
	}
	return false
}

// FilterScopes returns intersection of requested and allowed scopes.
// A nil result with Unrestricted means "no filter".
func (s *AccessScope) FilterScopes(requested []Scope) []Scope {
	if s.Unrestricted {
		return requested
	}
	if len(requested) == 0 {
		return s.Allowed
	}

	var result []Scope
	for _, r := range requested {
		if s.CanAccess(r) {
			result = append(result, r)
		}
	}
	return result
}
