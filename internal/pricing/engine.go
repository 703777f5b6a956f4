package pricing

import "github.com/shopspring/decimal"

// MinorUnitExp is the exponent of the currency minor unit (cents, kopecks).
const MinorUnitExp = 2

var hundred = decimal.NewFromInt(100)

// Item describes a line item used for pricing calculation. Prices are in major units.
type Item struct {
	Qty           int
	UnitPrice     decimal.Decimal
	DiscountPrice decimal.Decimal
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// LineTotal returns price multiplied by quantity; non-positive quantities yield zero.
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

// Subtotal sums the undiscounted value of the items.
func Subtotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(LineTotal(it.UnitPrice, it.Qty))
	}
	return total
}

// Compute calculates cart totals from unit and discounted prices.
func Compute(items []Item) Summary {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(LineTotal(it.UnitPrice, it.Qty))
		saved := it.UnitPrice.Sub(it.DiscountPrice)
		if saved.IsPositive() {
			discount = discount.Add(LineTotal(saved, it.Qty))
		}
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

// FromMinor converts an amount stored in minor units into major units.
func FromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -MinorUnitExp)
}

// PercentOff returns price reduced by percent. The result is exact; callers
// round only when presenting amounts.
func PercentOff(price decimal.Decimal, percent int64) decimal.Decimal {
	return Floor0(price.Mul(decimal.NewFromInt(100 - percent)).Div(hundred))
}

// AmountOff subtracts amount from price, flooring at zero.
func AmountOff(price decimal.Decimal, amount decimal.Decimal) decimal.Decimal {
	return Floor0(price.Sub(amount))
}

// Floor0 clamps negative amounts to zero.
func Floor0(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
