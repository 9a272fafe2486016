package pricing

import (
	"fmt"
	"slices"
	"sort"

	"github.com/shopspring/decimal"
)

// Calculate prices the cart: it seeds one line item per cart line, applies
// the enabled rules in ascending priority order (stable for equal
// priorities) and aggregates the totals. The computation is deterministic
// and leaves its inputs untouched.
func Calculate(lines []CartLine, rules []Rule, user UserContext) Result {
	items := make([]LineItem, 0, len(lines))
	for _, ln := range lines {
		base, fixed := seedPrice(ln, user)
		items = append(items, LineItem{
			TrackID:              ln.TrackID,
			HasPartner:           ln.HasPartner,
			BasePriceCents:       base,
			FinalPriceCents:      base,
			UsesFixedMemberPrice: fixed,
		})
	}

	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })

	var applied []AppliedRule
	for _, r := range active {
		switch r.Kind {
		case KindMembershipTierPercent:
			if ar, ok := applyMembershipPercent(items, r, user); ok {
				applied = append(applied, ar)
			}
		case KindMultiCourseTiered:
			if ar, ok := applyMultiCourseTiered(items, r); ok {
				applied = append(applied, ar)
			}
		default:
			// Reserved and unrecognized kinds are no-ops.
		}
	}

	var subtotal, finalTotal Money
	for i := range items {
		subtotal += regularPrice(lines[i])
		finalTotal += items[i].FinalPriceCents
	}
	return Result{
		SubtotalCents:      subtotal,
		DiscountTotalCents: subtotal - finalTotal,
		FinalTotalCents:    finalTotal,
		Lines:              items,
		AppliedRules:       applied,
		IsMember:           user.IsMember,
	}
}

// seedPrice picks the price a line starts from. A nonzero fixed member price
// for the selected pairing wins for members and removes the line from the
// percent rule pipeline.
func seedPrice(ln CartLine, user UserContext) (Money, bool) {
	if user.IsMember {
		if ln.HasPartner && ln.Tiers.MemberPairCents > 0 {
			return ln.Tiers.MemberPairCents, true
		}
		if !ln.HasPartner && ln.Tiers.MemberSingleCents > 0 {
			return ln.Tiers.MemberSingleCents, true
		}
	}
	return regularPrice(ln), false
}

// regularPrice is the non-member price: the pair price only when the line
// has a partner and the track offers one, otherwise the single price.
func regularPrice(ln CartLine) Money {
	if ln.HasPartner && ln.Tiers.PairCents > 0 {
		return ln.Tiers.PairCents
	}
	return ln.Tiers.SingleCents
}

func applyMembershipPercent(items []LineItem, r Rule, user UserContext) (AppliedRule, bool) {
	cfg := r.Config.MembershipPercent
	if cfg == nil {
		return AppliedRule{}, false
	}
	if !user.IsMember || user.MembershipTierID == "" {
		return AppliedRule{}, false
	}
	if len(cfg.TierIDs) > 0 && !slices.Contains(cfg.TierIDs, user.MembershipTierID) {
		return AppliedRule{}, false
	}
	var total Money
	for i := range items {
		it := &items[i]
		if it.UsesFixedMemberPrice || it.FinalPriceCents <= 0 {
			continue
		}
		discount := roundPercent(it.BasePriceCents, cfg.DiscountPercent)
		if discount > it.FinalPriceCents {
			discount = it.FinalPriceCents
		}
		if discount <= 0 {
			continue
		}
		it.DiscountCents += discount
		it.FinalPriceCents -= discount
		it.AppliedRuleCodes = append(it.AppliedRuleCodes, r.Code)
		total += discount
	}
	if total <= 0 {
		return AppliedRule{}, false
	}
	return AppliedRule{
		RuleID:      r.ID,
		Code:        r.Code,
		Name:        r.Name,
		AmountCents: total,
		Description: fmt.Sprintf("%s %% medlemsrabatt", formatPercent(cfg.DiscountPercent)),
	}, true
}

// applyMultiCourseTiered distributes the best qualifying tier's fixed
// discount across all lines: every line but the last receives an equal floor
// share, the last line absorbs whatever remains, and each share is capped at
// the line's remaining price. The remainder-to-last tie-break is kept for
// snapshot compatibility; replacing it with a largest-remainder scheme would
// change persisted orders.
func applyMultiCourseTiered(items []LineItem, r Rule) (AppliedRule, bool) {
	cfg := r.Config.MultiCourse
	if cfg == nil || len(cfg.Tiers) == 0 || len(items) == 0 {
		return AppliedRule{}, false
	}
	count := len(items)
	best := -1
	for i, tier := range cfg.Tiers {
		if tier.Count > count {
			continue
		}
		if best < 0 || tier.Count > cfg.Tiers[best].Count {
			best = i
		}
	}
	if best < 0 {
		return AppliedRule{}, false
	}
	total := cfg.Tiers[best].DiscountCents
	var remaining Money
	for i := range items {
		remaining += items[i].FinalPriceCents
	}
	if total > remaining {
		total = remaining
	}
	if total <= 0 {
		return AppliedRule{}, false
	}

	share := total / Money(count)
	var distributed Money
	for i := range items {
		it := &items[i]
		amount := share
		if i == count-1 {
			amount = total - distributed
		}
		if amount > it.FinalPriceCents {
			amount = it.FinalPriceCents
		}
		if amount <= 0 {
			continue
		}
		it.DiscountCents += amount
		it.FinalPriceCents -= amount
		it.AppliedRuleCodes = append(it.AppliedRuleCodes, r.Code)
		distributed += amount
	}
	if distributed <= 0 {
		return AppliedRule{}, false
	}
	return AppliedRule{
		RuleID:      r.ID,
		Code:        r.Code,
		Name:        r.Name,
		AmountCents: distributed,
		Description: fmt.Sprintf("Rabatt ved %d eller flere kurs", cfg.Tiers[best].Count),
	}, true
}

// roundPercent computes base*percent/100 rounded half away from zero to
// whole øre.
func roundPercent(base Money, percent float64) Money {
	return decimal.NewFromInt(base).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func formatPercent(percent float64) string {
	return decimal.NewFromFloat(percent).String()
}
