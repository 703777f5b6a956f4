package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestComputeTotals(t *testing.T) {
	summary := Compute([]Item{
		{Qty: 2, UnitPrice: d("100"), DiscountPrice: d("80")},
		{Qty: 1, UnitPrice: d("50"), DiscountPrice: d("0")},
		{Qty: 0, UnitPrice: d("999"), DiscountPrice: d("1")},
	})
	require.True(t, summary.Subtotal.Equal(d("250")), summary.Subtotal.String())
	require.True(t, summary.Discount.Equal(d("90")), summary.Discount.String())
	require.True(t, summary.Total.Equal(d("160")), summary.Total.String())
}

func TestComputeIgnoresNegativeSavings(t *testing.T) {
	summary := Compute([]Item{{Qty: 1, UnitPrice: d("10"), DiscountPrice: d("12")}})
	require.True(t, summary.Discount.IsZero())
}

func TestPercentOffIsExact(t *testing.T) {
	require.True(t, PercentOff(d("33.33"), 15).Equal(d("28.3305")))
	require.True(t, PercentOff(d("33.34"), 3).Equal(d("32.3398")))
	require.True(t, PercentOff(d("0.01"), 50).Equal(d("0.005")))
	require.True(t, PercentOff(d("1"), 100).IsZero())
	require.True(t, PercentOff(d("1.00"), 20).Equal(d("0.8")))
}

func TestAmountOffFloorsAtZero(t *testing.T) {
	require.True(t, AmountOff(d("30"), d("50")).IsZero())
	require.True(t, AmountOff(d("30"), d("5")).Equal(d("25")))
}

func TestFromMinor(t *testing.T) {
	require.True(t, FromMinor(150000).Equal(d("1500")))
	require.True(t, FromMinor(0).IsZero())
}
