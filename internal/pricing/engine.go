// Package pricing computes sale totals in integer minor currency units.
// All arithmetic is deterministic: given the same lines and rates the same
// totals come out, with half-up rounding applied once per derived amount.
package pricing

import "github.com/noah-isme/backend-pos/internal/common"

// DiscountType selects how Discount.Value is interpreted.
type DiscountType string

const (
	// DiscountNone applies no discount.
	DiscountNone DiscountType = ""
	// DiscountPercent interprets Value as basis points (250 = 2.5%).
	DiscountPercent DiscountType = "percent"
	// DiscountFixed interprets Value as a fixed amount in minor units.
	DiscountFixed DiscountType = "fixed"
)

// Line is one product entry in a cart. LineDiscount is an absolute amount
// taken off this line before the cart-level discount applies.
type Line struct {
	ProductID    int64
	Quantity     int32
	UnitPrice    common.Money
	LineDiscount common.Money
}

// Discount describes an order-level discount.
type Discount struct {
	Type  DiscountType
	Value int64
}

// Totals is the result of pricing a cart.
type Totals struct {
	Subtotal       common.Money
	DiscountAmount common.Money
	TaxAmount      common.Money
	GrandTotal     common.Money
	LineTotals     []common.Money
}

// Compute prices a cart. taxRateBPS is the tax rate in basis points applied
// to the discounted subtotal. The discount is clamped to the subtotal so the
// taxable base never goes negative.
func Compute(lines []Line, discount Discount, taxRateBPS int64) Totals {
	t := Totals{LineTotals: make([]common.Money, len(lines))}
	for i, l := range lines {
		lt := l.UnitPrice*common.Money(l.Quantity) - l.LineDiscount
		if lt < 0 {
			lt = 0
		}
		t.LineTotals[i] = lt
		t.Subtotal += lt
	}

	switch discount.Type {
	case DiscountPercent:
		t.DiscountAmount = common.MulDivHalfUp(t.Subtotal, discount.Value, 10000)
	case DiscountFixed:
		t.DiscountAmount = discount.Value
	}
	if t.DiscountAmount > t.Subtotal {
		t.DiscountAmount = t.Subtotal
	}
	if t.DiscountAmount < 0 {
		t.DiscountAmount = 0
	}

	taxable := t.Subtotal - t.DiscountAmount
	if taxRateBPS > 0 {
		t.TaxAmount = common.MulDivHalfUp(taxable, taxRateBPS, 10000)
	}
	t.GrandTotal = taxable + t.TaxAmount
	return t
}

// Change returns the change due for a cash payment. The second value is false
// when the amount paid does not cover the total.
func Change(grandTotal, amountPaid common.Money) (common.Money, bool) {
	if amountPaid < grandTotal {
		return 0, false
	}
	return amountPaid - grandTotal, true
}
