// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
)

// --- Pagination ---

// PaginationRequest contains limit/offset parameters.
type PaginationRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Defaults sets default pagination values.
func (p *PaginationRequest) Defaults() {
	if p.Limit == 0 {
		p.Limit = 50
	}
}

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// IDResponse contains just an ID.
type IDResponse struct {
	ID string `json:"id"`
}

// Scope is the wire form of a record scope. An empty kind is the global scope.
type Scope struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// ToDomain validates and converts the scope.
func (s Scope) ToDomain() (security.Scope, error) {
	scope := security.Scope{Kind: security.ScopeKind(s.Kind), ID: s.ID}
	if err := scope.Validate(); err != nil {
		return security.Scope{}, err
	}
	return scope, nil
}

// ParseID parses a path or body id, reporting field on failure.
func ParseID(field, raw string) (id.ID, error) {
	v, err := id.Parse(raw)
	if err != nil || id.IsNil(v) {
		return id.ID{}, apperror.NewValidation("invalid id").WithDetail("field", field).WithDetail("value", raw)
	}
	return v, nil
}

// ParseOptionalID parses raw unless it is empty.
func ParseOptionalID(field string, raw *string) (*id.ID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	v, err := ParseID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
