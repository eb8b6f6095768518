package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
)

type balanceRow struct {
	ID        id.ID       `db:"id"`
	Balance   types.Money `db:"current_balance"`
	Version   int         `db:"version"`
	CreatedAt time.Time   `db:"created_at"`
	Internal  string      `db:"-"`
	Note      string
}

func TestExtractDBColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "current_balance", "version", "created_at"}, ExtractDBColumns[balanceRow]())
	assert.Equal(t, []string{"id", "current_balance", "version", "created_at"}, ExtractDBColumns[*balanceRow]())
	assert.Empty(t, ExtractDBColumns[int]())
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	row := balanceRow{
		ID:        id.New(),
		Balance:   types.MustMoney("12.50"),
		Version:   5,
		CreatedAt: now,
		Internal:  "skip",
		Note:      "skip",
	}

	for _, v := range []any{row, &row} {
		m := StructToMap(v)
		assert.Len(t, m, 4)
		assert.Equal(t, row.ID, m["id"])
		assert.Equal(t, row.Balance, m["current_balance"])
		assert.Equal(t, 5, m["version"])
		assert.Equal(t, now, m["created_at"])
	}
	assert.Nil(t, StructToMap(42))
}
