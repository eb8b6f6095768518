package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
)

func withActor(role appctx.Role, branch, warehouse string) context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{
		UserID:      "u-1",
		Role:        role,
		BranchID:    branch,
		WarehouseID: warehouse,
	})
}

func TestGate_AuthorizeWrite(t *testing.T) {
	gate := NewGate()

	tests := []struct {
		name    string
		ctx     context.Context
		target  Scope
		wantErr string
	}{
		{"admin any branch", withActor(appctx.RoleAdmin, "", ""), BranchScope("b9"), ""},
		{"admin global", withActor(appctx.RoleAdmin, "", ""), Scope{}, ""},
		{"cashier own branch", withActor(appctx.RoleCashier, "b1", ""), BranchScope("b1"), ""},
		{"cashier other branch", withActor(appctx.RoleCashier, "b1", ""), BranchScope("b2"), apperror.CodeScopeAccessDenied},
		{"cashier global", withActor(appctx.RoleCashier, "b1", ""), Scope{}, apperror.CodeScopeAccessDenied},
		{"keeper own warehouse", withActor(appctx.RoleWarehouseKeeper, "", "w3"), WarehouseScope("w3"), ""},
		{"keeper other warehouse", withActor(appctx.RoleWarehouseKeeper, "", "w3"), WarehouseScope("w5"), apperror.CodeScopeAccessDenied},
		{"keeper branch with same id", withActor(appctx.RoleWarehouseKeeper, "", "w3"), BranchScope("w3"), apperror.CodeScopeAccessDenied},
		{"unknown role", withActor("GUEST", "b1", ""), BranchScope("b1"), apperror.CodeScopeAccessDenied},
		{"no actor", context.Background(), BranchScope("b1"), apperror.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.AuthorizeWrite(tt.ctx, tt.target)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestGate_RequireAdmin(t *testing.T) {
	gate := NewGate()
	assert.NoError(t, gate.RequireAdmin(withActor(appctx.RoleAdmin, "", "")))
	assert.True(t, apperror.HasCode(gate.RequireAdmin(withActor(appctx.RoleCashier, "b1", "")), apperror.CodeScopeAccessDenied))
}

func TestAccessScope_FilterScopes(t *testing.T) {
	s := NewAccessScope(withActor(appctx.RoleCashier, "b1", "w1"))
	assert.Equal(t, []Scope{BranchScope("b1"), WarehouseScope("w1")}, s.FilterScopes(nil))
	assert.Equal(t, []Scope{BranchScope("b1")}, s.FilterScopes([]Scope{BranchScope("b1"), BranchScope("b2")}))
	assert.Empty(t, s.FilterScopes([]Scope{BranchScope("b2")}))

	admin := NewAccessScope(withActor(appctx.RoleAdmin, "", ""))
	assert.Nil(t, admin.FilterScopes(nil))
}

func TestScope_Validate(t *testing.T) {
	assert.NoError(t, Scope{}.Validate())
	assert.NoError(t, BranchScope("b1").Validate())
	assert.Error(t, Scope{Kind: ScopeBranch}.Validate())
	assert.Error(t, Scope{ID: "x"}.Validate())
	assert.Error(t, Scope{Kind: "REGION", ID: "x"}.Validate())
}
