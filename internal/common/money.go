package common

import (
	"fmt"
	"math"
)

// Money is a monetary value stored in minor units (cents).
type Money = int64

// ToCents converts a major-unit amount from an API payload to minor units,
// rounding half-up at the second decimal place.
func ToCents(amount float64) Money {
	return Money(math.Floor(amount*100 + 0.5))
}

// FromCents converts minor units back to major units for API responses.
func FromCents(m Money) float64 {
	return float64(m) / 100
}

// FormatMajor renders minor units as a fixed two-decimal string.
func FormatMajor(m Money) string {
	return fmt.Sprintf("%.2f", float64(m)/100)
}

// PercentToBps converts a decimal percentage (e.g. 8.25) to basis points.
func PercentToBps(percent float64) int {
	return int(math.Floor(percent*100 + 0.5))
}

// BpsToPercent converts basis points back to a decimal percentage.
func BpsToPercent(bps int) float64 {
	return float64(bps) / 100
}

// MulDivHalfUp computes value*num/den with half-up rounding, for discount and
// tax computations that must round at each accumulation step.
func MulDivHalfUp(value Money, num, den int64) Money {
	if den == 0 {
		return 0
	}
	product := value * num
	if product >= 0 {
		return (product + den/2) / den
	}
	return -((-product + den/2) / den)
}
