package restock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"retailledger/internal/core/types"
)

func line(original, remaining int64) ReturnLine {
	return ReturnLine{
		OriginalQuantity:  types.NewQuantityFromUnits(original),
		RemainingQuantity: types.NewQuantityFromUnits(remaining),
	}
}

func TestLineState(t *testing.T) {
	assert.Equal(t, LinePending, line(10, 10).State())
	assert.Equal(t, LinePartial, line(10, 6).State())
	assert.Equal(t, LineCompleted, line(10, 0).State())
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		lines []ReturnLine
		want  ReturnStatus
	}{
		{"all pending", []ReturnLine{line(2, 2), line(3, 3)}, ReturnPending},
		{"one partial", []ReturnLine{line(2, 1), line(3, 3)}, ReturnPartial},
		{"one completed one pending", []ReturnLine{line(2, 0), line(3, 3)}, ReturnPartial},
		{"all completed", []ReturnLine{line(2, 0), line(3, 0)}, ReturnCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.lines))
		})
	}
}
