// Package pricing computes per-line charged prices for a promotional total.
// The commerce platform independently sums line totals, so the allocation
// must add up to the promotional total exactly; the last line absorbs the
// rounding remainder.
package pricing

import (
	"storefront-checkout/internal/model"
)

// Allocation is the charged price derived for one cart line.
// Amounts are in fractional minor units: the platform transform rounds to
// whole cents only at serialization time.
type Allocation struct {
	Line        model.CartLine
	ChargedUnit float64 // charged unit price, minor units
	ChargedLine float64 // ChargedUnit × Quantity
}

// Allocate distributes promotionalTotal across the cart lines proportionally
// to their original prices. Every line except the last is scaled by
// promotionalTotal / originalSubtotal; the last line is set to whatever
// remains, which pins the sum to promotionalTotal.
//
// Allocations are recomputed fresh per checkout attempt and never persisted.
func Allocate(lines []model.CartLine, promotionalTotal int64) ([]Allocation, error) {
	if len(lines) == 0 {
		return nil, model.NewInvalidCartError("cart is empty")
	}
	if promotionalTotal <= 0 {
		return nil, model.NewInvalidCartError("promotional total must be positive")
	}

	var originalSubtotal int64
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, model.NewInvalidCartError("line quantity must be at least 1")
		}
		originalSubtotal += l.Subtotal()
	}
	if originalSubtotal <= 0 {
		return nil, model.NewInvalidCartError("cart subtotal is zero")
	}

	ratio := float64(promotionalTotal) / float64(originalSubtotal)

	allocs := make([]Allocation, len(lines))
	var running float64
	for i, l := range lines {
		var unit float64
		if i == len(lines)-1 {
			// Last line absorbs the remainder so the sum is exact.
			unit = (float64(promotionalTotal) - running) / float64(l.Quantity)
		} else {
			unit = float64(l.UnitPrice) * ratio
		}
		if unit < 0 {
			return nil, model.NewInvalidCartError("allocation produced a negative price")
		}
		lineTotal := unit * float64(l.Quantity)
		running += lineTotal
		allocs[i] = Allocation{Line: l, ChargedUnit: unit, ChargedLine: lineTotal}
	}

	return allocs, nil
}

// Sum returns the total of the charged line amounts, in minor units.
func Sum(allocs []Allocation) float64 {
	var total float64
	for _, a := range allocs {
		total += a.ChargedLine
	}
	return total
}
