package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePercentDiscountAndTax(t *testing.T) {
	lines := []Line{
		{ProductID: 1, Quantity: 2, UnitPrice: 150000},
		{ProductID: 2, Quantity: 1, UnitPrice: 200000},
	}
	got := Compute(lines, Discount{Type: DiscountPercent, Value: 1000}, 800)

	require.Len(t, got.LineTotals, 2)
	assert.Equal(t, int64(300000), got.LineTotals[0])
	assert.Equal(t, int64(200000), got.LineTotals[1])
	assert.Equal(t, int64(500000), got.Subtotal)
	assert.Equal(t, int64(50000), got.DiscountAmount)
	assert.Equal(t, int64(36000), got.TaxAmount)
	assert.Equal(t, int64(486000), got.GrandTotal)
}

func TestComputeLineDiscount(t *testing.T) {
	got := Compute([]Line{{ProductID: 1, Quantity: 2, UnitPrice: 1000, LineDiscount: 500}}, Discount{}, 0)
	require.Len(t, got.LineTotals, 1)
	assert.Equal(t, int64(1500), got.LineTotals[0])
	assert.Equal(t, int64(1500), got.Subtotal)
	assert.Equal(t, int64(1500), got.GrandTotal)
}

func TestComputeLineDiscountFlooredAtZero(t *testing.T) {
	got := Compute([]Line{{Quantity: 1, UnitPrice: 300, LineDiscount: 900}}, Discount{}, 1000)
	assert.Zero(t, got.LineTotals[0])
	assert.Zero(t, got.Subtotal)
	assert.Zero(t, got.GrandTotal)
}

func TestComputeNoDiscountNoTax(t *testing.T) {
	got := Compute([]Line{{Quantity: 3, UnitPrice: 999}}, Discount{}, 0)
	assert.Equal(t, int64(2997), got.Subtotal)
	assert.Zero(t, got.DiscountAmount)
	assert.Zero(t, got.TaxAmount)
	assert.Equal(t, int64(2997), got.GrandTotal)
}

func TestComputeFixedDiscountClampedToSubtotal(t *testing.T) {
	got := Compute([]Line{{Quantity: 1, UnitPrice: 1000}}, Discount{Type: DiscountFixed, Value: 5000}, 1000)
	assert.Equal(t, int64(1000), got.DiscountAmount)
	assert.Zero(t, got.TaxAmount)
	assert.Zero(t, got.GrandTotal)
}

func TestComputeNegativeDiscountIgnored(t *testing.T) {
	got := Compute([]Line{{Quantity: 1, UnitPrice: 1000}}, Discount{Type: DiscountFixed, Value: -50}, 0)
	assert.Zero(t, got.DiscountAmount)
	assert.Equal(t, int64(1000), got.GrandTotal)
}

func TestComputeHalfUpRounding(t *testing.T) {
	// 1005 * 2.5% = 25.125, rounds to 25.
	got := Compute([]Line{{Quantity: 1, UnitPrice: 1005}}, Discount{Type: DiscountPercent, Value: 250}, 0)
	assert.Equal(t, int64(25), got.DiscountAmount)

	// 1010 * 2.5% = 25.25 rounds to 25; tax 7% of 985 = 68.95 rounds to 69.
	got = Compute([]Line{{Quantity: 1, UnitPrice: 1010}}, Discount{Type: DiscountPercent, Value: 250}, 700)
	assert.Equal(t, int64(25), got.DiscountAmount)
	assert.Equal(t, int64(69), got.TaxAmount)
	assert.Equal(t, int64(1054), got.GrandTotal)
}

func TestComputeArithmeticIdentity(t *testing.T) {
	cases := []struct {
		lines    []Line
		discount Discount
		taxBPS   int64
	}{
		{[]Line{{Quantity: 7, UnitPrice: 1337}}, Discount{Type: DiscountPercent, Value: 333}, 1100},
		{[]Line{{Quantity: 1, UnitPrice: 1}, {Quantity: 2, UnitPrice: 49999}}, Discount{Type: DiscountFixed, Value: 100}, 825},
		{[]Line{{Quantity: 100, UnitPrice: 250000}}, Discount{}, 1000},
	}
	for _, tc := range cases {
		got := Compute(tc.lines, tc.discount, tc.taxBPS)
		assert.Equal(t, got.Subtotal-got.DiscountAmount+got.TaxAmount, got.GrandTotal)
		assert.GreaterOrEqual(t, got.GrandTotal, int64(0))
	}
}

func TestChange(t *testing.T) {
	change, ok := Change(486000, 500000)
	require.True(t, ok)
	assert.Equal(t, int64(14000), change)

	_, ok = Change(486000, 486000-1)
	assert.False(t, ok)

	change, ok = Change(1000, 1000)
	require.True(t, ok)
	assert.Zero(t, change)
}
