package match

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickSize_ParsePrice(t *testing.T) {
	tick := MustTickSize("0.01")

	tests := []struct {
		input string
		ticks int64
	}{
		{input: "100.50", ticks: 10050},
		{input: "100.5", ticks: 10050},
		{input: "0.01", ticks: 1},
		{input: "99", ticks: 9900},
		{input: "101.000", ticks: 10100},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ticks, err := tick.ParsePrice(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.ticks, ticks)
		})
	}

	invalid := []string{"", "abc", "0", "-1.00", "100.005", "1e30"}
	for _, input := range invalid {
		t.Run("invalid "+input, func(t *testing.T) {
			_, err := tick.ParsePrice(input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "price", verr.Field)
		})
	}
}

func TestTickSize_Format(t *testing.T) {
	assert.Equal(t, "100.50", MustTickSize("0.01").Format(10050))
	assert.Equal(t, "12.5", MustTickSize("0.5").Format(25))
	assert.Equal(t, "300", MustTickSize("100").Format(3))
	assert.Equal(t, "0.001", MustTickSize("0.001").Format(1))

	tick := MustTickSize("0.05")
	ticks, err := tick.ParsePrice("1.25")
	require.NoError(t, err)
	assert.Equal(t, int64(25), ticks)
	assert.True(t, decimal.RequireFromString("1.25").Equal(tick.Decimal(ticks)))

	_, err = tick.ParsePrice("1.27")
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestTickSize_New(t *testing.T) {
	_, err := NewTickSize("0")
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = NewTickSize("-0.01")
	assert.ErrorIs(t, err, ErrInvalidParam)
	_, err = NewTickSize("x")
	assert.ErrorIs(t, err, ErrInvalidParam)

	assert.Panics(t, func() { MustTickSize("bad") })

	// the zero value behaves like the default tick
	var zero TickSize
	assert.Equal(t, DefaultTickSize, zero.String())
	ticks, err := zero.ParsePrice("1.23")
	require.NoError(t, err)
	assert.Equal(t, int64(123), ticks)
}
