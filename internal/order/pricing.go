package order

import (
	"foodorder-be/internal/customization"

	"github.com/shopspring/decimal"
)

// priceScale matches the NUMERIC(12,2) price columns.
const priceScale = 2

// SnapshotPrice is the per-item price frozen onto an order line: the meal's
// base price at order time plus the surcharge of the resolved selection,
// rounded to the stored scale so totals add up from persisted values.
func SnapshotPrice(base decimal.Decimal, groups customization.Resolved) decimal.Decimal {
	return base.Add(customization.Price(groups)).Round(priceScale)
}

// TotalPrice sums price-per-item times quantity across the given lines.
func TotalPrice(details []Detail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.CalculatedPricePerItem.Mul(decimal.NewFromInt(int64(d.Quantity))))
	}
	return total
}
