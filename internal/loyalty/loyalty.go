// Package loyalty converts sale totals into reward points.
package loyalty

import "github.com/noah-isme/backend-pos/internal/common"

// PointsFor returns the points earned for a sale. divisor is the amount of
// minor currency units that earns one point; fractional remainders are
// dropped. A non-positive divisor disables accrual.
func PointsFor(grandTotal common.Money, divisor int64) int64 {
	if divisor <= 0 || grandTotal <= 0 {
		return 0
	}
	return int64(grandTotal) / divisor
}
