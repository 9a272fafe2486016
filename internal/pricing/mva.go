package pricing

import "github.com/shopspring/decimal"

// MvaBreakdown documents the tax component of a VAT-inclusive amount.
// TotalCents always equals the (clamped) input: extraction never changes
// what the customer is charged.
type MvaBreakdown struct {
	SubtotalCents Money   `json:"subtotalCents"`
	MvaRate       float64 `json:"mvaRate"`
	MvaCents      Money   `json:"mvaCents"`
	TotalCents    Money   `json:"totalCents"`
}

// OrderTotalInput feeds OrderTotal.
type OrderTotalInput struct {
	SubtotalCents Money
	DiscountCents Money
	MvaRate       float64
}

// OrderTotals is the full pricing chain persisted as an order snapshot.
type OrderTotals struct {
	SubtotalCents              Money   `json:"subtotalCents"`
	DiscountCents              Money   `json:"discountCents"`
	SubtotalAfterDiscountCents Money   `json:"subtotalAfterDiscountCents"`
	MvaRate                    float64 `json:"mvaRate"`
	MvaCents                   Money   `json:"mvaCents"`
	TotalCents                 Money   `json:"totalCents"`
}

// Mva extracts the MVA component from a VAT-inclusive amount. The net
// amount is computed with decimal division and rounded half away from zero
// to whole øre, so results are deterministic across platforms. Negative
// subtotals clamp to zero; a non-positive rate yields zero MVA.
func Mva(subtotalCents Money, rate float64) MvaBreakdown {
	if subtotalCents < 0 {
		subtotalCents = 0
	}
	b := MvaBreakdown{
		SubtotalCents: subtotalCents,
		MvaRate:       rate,
		TotalCents:    subtotalCents,
	}
	if rate <= 0 {
		return b
	}
	net := decimal.NewFromInt(subtotalCents).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(100).Add(decimal.NewFromFloat(rate))).
		Round(0).
		IntPart()
	b.MvaCents = subtotalCents - net
	return b
}

// OrderTotal composes discount subtraction with MVA extraction. The
// post-discount subtotal is reported as computed, without clamping; callers
// validate that discounts never exceed the subtotal.
func OrderTotal(in OrderTotalInput) OrderTotals {
	after := in.SubtotalCents - in.DiscountCents
	mva := Mva(after, in.MvaRate)
	return OrderTotals{
		SubtotalCents:              in.SubtotalCents,
		DiscountCents:              in.DiscountCents,
		SubtotalAfterDiscountCents: after,
		MvaRate:                    in.MvaRate,
		MvaCents:                   mva.MvaCents,
		TotalCents:                 mva.TotalCents,
	}
}
