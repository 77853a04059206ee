package util

import "github.com/shopspring/decimal"

// ExceedsPlaces reports whether d carries more than places fractional digits.
func ExceedsPlaces(d decimal.Decimal, places int32) bool {
	return !d.Equal(d.Truncate(places))
}

// RoundDown truncates d to places, never below floor.
func RoundDown(d decimal.Decimal, places int32, floor decimal.Decimal) decimal.Decimal {
	r := d.Truncate(places)
	if r.LessThan(floor) {
		return floor
	}
	return r
}

// RoundUp rounds d toward positive infinity at places.
func RoundUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundCeil(places)
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
