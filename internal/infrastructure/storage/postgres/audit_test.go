package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "retailledger/internal/core/context"
	"retailledger/internal/core/id"
	"retailledger/internal/domain/audit"
)

func TestAuditService_CompressesLargeChanges(t *testing.T) {
	s, err := NewAuditService(nil, 64)
	require.NoError(t, err)

	ctx := appctx.WithActor(context.Background(), &appctx.Actor{UserID: "u1", Role: appctx.RoleCashier})

	small, err := s.toRow(ctx, audit.Entry{EntityType: "credit_debit_transaction", EntityID: id.New(), Action: audit.ActionCreate, Changes: map[string]any{"amount": "10.00"}})
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, small.CompressionAlgo)
	assert.Equal(t, "u1", small.UserID)
	assert.Equal(t, "CASHIER", small.UserRole)
	assert.JSONEq(t, `{"amount":"10.00"}`, string(small.Changes))

	big, err := s.toRow(ctx, audit.Entry{Action: audit.ActionUpdate, Changes: map[string]any{"description": strings.Repeat("x", 500)}})
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, big.CompressionAlgo)
	assert.Nil(t, big.Changes)
	assert.Less(t, len(big.ChangesCompressed), 500)

	require.NoError(t, s.decompress(&big))
	assert.Contains(t, string(big.Changes), strings.Repeat("x", 500))
}

func TestAuditColumns(t *testing.T) {
	assert.Equal(t, []string{
		"id", "entity_type", "entity_id", "action", "user_id", "user_role",
		"changes", "changes_compressed", "compression_algo", "created_at",
	}, auditColumns)
}
