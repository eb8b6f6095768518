package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"10", NewQuantityFromUnits(10)},
		{"2.5", Quantity(25_000)},
		{"0.00015", Quantity(1)},
		{"-3.25", Quantity(-32_500)},
		{".5", Quantity(5_000)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseQuantity("")
	assert.Error(t, err)
	_, err = ParseQuantity("abc")
	assert.Error(t, err)
}

func TestQuantityJSON(t *testing.T) {
	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`"4.2"`), &q))
	assert.Equal(t, Quantity(42_000), q)

	require.NoError(t, json.Unmarshal([]byte(`7`), &q))
	assert.Equal(t, NewQuantityFromUnits(7), q)

	out, err := json.Marshal(Quantity(-12_345))
	require.NoError(t, err)
	assert.Equal(t, "-1.2345", string(out))
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, "10.01", FormatMoney(RoundCents(MustMoney("10.005"))))
	assert.Equal(t, "-10.01", FormatMoney(RoundCents(MustMoney("-10.005"))))
	assert.Equal(t, "3.00", FormatMoney(MustMoney("3")))
}
