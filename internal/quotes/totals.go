package quotes

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/constructa/propostas/internal/freight"
)

var hundred = decimal.NewFromInt(100)

// LineTotal is qty × price × (1 − discount/100), rounded half-up to cents.
func LineTotal(quantity, unitPrice, discountPercent float64) float64 {
	gross := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(unitPrice))
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discountPercent).Div(hundred))
	f, _ := gross.Mul(factor).Round(2).Float64()
	return f
}

// ItemPallets is the pallet count for a line; zero when the product has no
// pallet size.
func ItemPallets(quantity float64, unitsPerPallet int) int {
	if unitsPerPallet <= 0 || quantity <= 0 {
		return 0
	}
	return int(math.Ceil(quantity / float64(unitsPerPallet)))
}

// ComputeTotals sums items and applies the header discount and CIF freight.
func ComputeTotals(items []Item, discountPercent float64, fr *Freight) Totals {
	subtotal := decimal.Zero
	weight := decimal.Zero
	pallets := 0
	for _, it := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(it.LineTotal))
		weight = weight.Add(decimal.NewFromFloat(it.WeightKg))
		pallets += it.Pallets
	}
	subtotal = subtotal.Round(2)
	discount := subtotal.Mul(decimal.NewFromFloat(discountPercent)).Div(hundred).Round(2)
	freightAmount := decimal.Zero
	if fr != nil && fr.Modality == freight.ModalityCIF {
		freightAmount = decimal.NewFromFloat(fr.Total).Round(2)
	}
	total := subtotal.Sub(discount).Add(freightAmount)

	var t Totals
	t.Subtotal, _ = subtotal.Float64()
	t.DiscountAmount, _ = discount.Float64()
	t.FreightAmount, _ = freightAmount.Float64()
	t.TotalAmount, _ = total.Float64()
	t.TotalWeightKg, _ = weight.Round(3).Float64()
	t.TotalPallets = pallets
	return t
}
