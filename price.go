package match

import (
	"github.com/shopspring/decimal"
)

// TickSize converts between decimal prices and integer ticks.
// Book prices are kept as ticks so that ordering and equality are exact.
type TickSize struct {
	size decimal.Decimal
}

// NewTickSize parses a positive decimal tick size such as "0.01".
func NewTickSize(s string) (TickSize, error) {
	size, err := decimal.NewFromString(s)
	if err != nil {
		return TickSize{}, &ValidationError{Field: "tick_size", Reason: err.Error()}
	}
	if !size.IsPositive() {
		return TickSize{}, &ValidationError{Field: "tick_size", Reason: "must be positive"}
	}
	return TickSize{size: size}, nil
}

// MustTickSize is like NewTickSize but panics on error.
func MustTickSize(s string) TickSize {
	t, err := NewTickSize(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TickSize) value() decimal.Decimal {
	if t.size.IsZero() {
		return decimal.RequireFromString(DefaultTickSize)
	}
	return t.size
}

// String returns the tick size as a decimal string.
func (t TickSize) String() string {
	return t.value().String()
}

// ParsePrice converts a decimal price to ticks.
// Prices that are not positive or not a whole multiple of the tick size are rejected.
func (t TickSize) ParsePrice(s string) (int64, error) {
	price, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ValidationError{Field: "price", Reason: "not a decimal number"}
	}
	return t.FromDecimal(price)
}

// FromDecimal converts a decimal price to ticks.
func (t TickSize) FromDecimal(price decimal.Decimal) (int64, error) {
	if !price.IsPositive() {
		return 0, &ValidationError{Field: "price", Reason: "must be positive"}
	}

	size := t.value()
	if !price.Mod(size).IsZero() {
		return 0, &ValidationError{Field: "price", Reason: "not a multiple of tick size " + size.String()}
	}

	ticks := price.Div(size)
	if !ticks.IsInteger() || ticks.Cmp(decimal.NewFromInt(maxTicks)) > 0 {
		return 0, &ValidationError{Field: "price", Reason: "out of range"}
	}
	return ticks.IntPart(), nil
}

// Decimal converts ticks back to a decimal price.
func (t TickSize) Decimal(ticks int64) decimal.Decimal {
	return decimal.NewFromInt(ticks).Mul(t.value())
}

// Format renders ticks with the number of decimal places of the tick size.
func (t TickSize) Format(ticks int64) string {
	places := -t.value().Exponent()
	if places < 0 {
		places = 0
	}
	return t.Decimal(ticks).StringFixed(places)
}

const maxTicks = int64(1) << 62
