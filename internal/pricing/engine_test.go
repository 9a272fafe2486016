package pricing

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func track(single, pair, memberSingle, memberPair Money) PriceTiers {
	return PriceTiers{
		SingleCents:       single,
		PairCents:         pair,
		MemberSingleCents: memberSingle,
		MemberPairCents:   memberPair,
	}
}

func percentRule(code string, priority int, percent float64, tierIDs ...string) Rule {
	return Rule{
		ID:       uuid.New(),
		Code:     code,
		Name:     "Medlemsrabatt",
		Priority: priority,
		Enabled:  true,
		Kind:     KindMembershipTierPercent,
		Config: RuleConfig{MembershipPercent: &MembershipPercentConfig{
			DiscountPercent: percent,
			TierIDs:         tierIDs,
		}},
	}
}

func volumeRule(code string, priority int, tiers ...VolumeTier) Rule {
	return Rule{
		ID:       uuid.New(),
		Code:     code,
		Name:     "Kursrabatt",
		Priority: priority,
		Enabled:  true,
		Kind:     KindMultiCourseTiered,
		Config:   RuleConfig{MultiCourse: &MultiCourseConfig{Tiers: tiers}},
	}
}

func TestCalculateSingleLineNoRules(t *testing.T) {
	lines := []CartLine{{TrackID: uuid.New(), Tiers: track(150_000, 0, 0, 0)}}
	res := Calculate(lines, nil, UserContext{})
	if res.FinalTotalCents != 150_000 {
		t.Fatalf("expected final total 150000, got %d", res.FinalTotalCents)
	}
	if res.DiscountTotalCents != 0 {
		t.Fatalf("expected zero discount total, got %d", res.DiscountTotalCents)
	}
	if res.SubtotalCents != 150_000 {
		t.Fatalf("expected subtotal 150000, got %d", res.SubtotalCents)
	}
	if len(res.Lines) != 1 || res.Lines[0].BasePriceCents != 150_000 {
		t.Fatalf("unexpected lines: %+v", res.Lines)
	}
}

func TestCalculateMultiCourseTierSelection(t *testing.T) {
	lines := []CartLine{
		{TrackID: uuid.New(), Tiers: track(150_000, 0, 0, 0)},
		{TrackID: uuid.New(), Tiers: track(150_000, 0, 0, 0)},
	}
	rule := volumeRule("FLERKURS", 10,
		VolumeTier{Count: 2, DiscountCents: 20_000},
		VolumeTier{Count: 3, DiscountCents: 40_000},
	)
	res := Calculate(lines, []Rule{rule}, UserContext{})
	if res.FinalTotalCents != 280_000 {
		t.Fatalf("expected final total 280000, got %d", res.FinalTotalCents)
	}
	if res.Lines[0].DiscountCents != 10_000 || res.Lines[1].DiscountCents != 10_000 {
		t.Fatalf("expected 10000/10000 split, got %d/%d", res.Lines[0].DiscountCents, res.Lines[1].DiscountCents)
	}
	if len(res.AppliedRules) != 1 || res.AppliedRules[0].AmountCents != 20_000 {
		t.Fatalf("unexpected applied rules: %+v", res.AppliedRules)
	}
}

func TestCalculateMembershipPercent(t *testing.T) {
	lines := []CartLine{{TrackID: uuid.New(), Tiers: track(150_000, 0, 0, 0)}}
	rule := percentRule("MEDLEM10", 1, 10)
	res := Calculate(lines, []Rule{rule}, UserContext{IsMember: true, MembershipTierID: "standard"})
	if res.Lines[0].DiscountCents != 15_000 {
		t.Fatalf("expected 15000 discount, got %d", res.Lines[0].DiscountCents)
	}
	if res.Lines[0].FinalPriceCents != 135_000 {
		t.Fatalf("expected final price 135000, got %d", res.Lines[0].FinalPriceCents)
	}
	if got := res.Lines[0].AppliedRuleCodes; len(got) != 1 || got[0] != "MEDLEM10" {
		t.Fatalf("unexpected applied codes: %v", got)
	}
}

func TestCalculateFixedMemberPriceBypassesPercentRule(t *testing.T) {
	lines := []CartLine{{TrackID: uuid.New(), Tiers: track(150_000, 0, 100_000, 0)}}
	rule := percentRule("MEDLEM10", 1, 10)
	res := Calculate(lines, []Rule{rule}, UserContext{IsMember: true, MembershipTierID: "standard"})
	line := res.Lines[0]
	if !line.UsesFixedMemberPrice {
		t.Fatal("expected fixed member price to be used")
	}
	if line.BasePriceCents != 100_000 || line.FinalPriceCents != 100_000 || line.DiscountCents != 0 {
		t.Fatalf("fixed member line must not be discounted: %+v", line)
	}
	if len(res.AppliedRules) != 0 {
		t.Fatalf("expected no applied rules, got %+v", res.AppliedRules)
	}
	// Display subtotal stays on the regular price, so the discount total
	// includes the member price reduction.
	if res.SubtotalCents != 150_000 || res.DiscountTotalCents != 50_000 {
		t.Fatalf("expected subtotal 150000 / discount total 50000, got %d/%d", res.SubtotalCents, res.DiscountTotalCents)
	}
}

func TestCalculatePairPriceFallback(t *testing.T) {
	withPair := CartLine{TrackID: uuid.New(), HasPartner: true, Tiers: track(150_000, 250_000, 0, 0)}
	withoutPair := CartLine{TrackID: uuid.New(), HasPartner: true, Tiers: track(150_000, 0, 0, 0)}
	res := Calculate([]CartLine{withPair, withoutPair}, nil, UserContext{})
	if res.Lines[0].BasePriceCents != 250_000 {
		t.Fatalf("expected pair price 250000, got %d", res.Lines[0].BasePriceCents)
	}
	if res.Lines[1].BasePriceCents != 150_000 {
		t.Fatalf("expected single price fallback 150000, got %d", res.Lines[1].BasePriceCents)
	}
}

func TestCalculatePercentSkipsNonMembers(t *testing.T) {
	lines := []CartLine{{TrackID: uuid.New(), Tiers: track(100_000, 0, 0, 0)}}
	rule := percentRule("MEDLEM10", 1, 10)
	for name, user := range map[string]UserContext{
		"non-member": {},
		"no tier id": {IsMember: true},
	} {
		res := Calculate(lines, []Rule{rule}, user)
		if res.FinalTotalCents != 100_000 {
			t.Fatalf("%s: expected no discount, got total %d", name, res.FinalTotalCents)
		}
	}
}

func TestCalculatePercentTierScoping(t *testing.T) {
	lines := []CartLine{{TrackID: uuid.New(), Tiers: track(100_000, 0, 0, 0)}}
	rule := percentRule("GULL15", 1, 15, "gull", "solv")
	matched := Calculate(lines, []Rule{rule}, UserContext{IsMember: true, MembershipTierID: "gull"})
	if matched.Lines[0].DiscountCents != 15_000 {
		t.Fatalf("expected tier match discount 15000, got %d", matched.Lines[0].DiscountCents)
	}
	skipped := Calculate(lines, []Rule{rule}, UserContext{IsMember: true, MembershipTierID: "bronse"})
	if skipped.Lines[0].DiscountCents != 0 {
		t.Fatalf("expected tier mismatch to skip, got %d", skipped.Lines[0].DiscountCents)
	}
}

func TestCalculateDisabledRulesIgnored(t *testing.T) {
	lines := []CartLine{{TrackID: uuid.New(), Tiers: track(100_000, 0, 0, 0)}}
	rule := percentRule("MEDLEM10", 1, 10)
	rule.Enabled = false
	res := Calculate(lines, []Rule{rule}, UserContext{IsMember: true, MembershipTierID: "standard"})
	if res.FinalTotalCents != 100_000 {
		t.Fatalf("disabled rule must not apply, got total %d", res.FinalTotalCents)
	}
}

func TestCalculateRuleOrdering(t *testing.T) {
	lines := []CartLine{
		{TrackID: uuid.New(), Tiers: track(100_000, 0, 0, 0)},
		{TrackID: uuid.New(), Tiers: track(100_000, 0, 0, 0)},
	}
	a := volumeRule("A", 5, VolumeTier{Count: 2, DiscountCents: 5_000})
	b := volumeRule("B", 5, VolumeTier{Count: 2, DiscountCents: 3_000})
	c := volumeRule("C", 1, VolumeTier{Count: 2, DiscountCents: 2_000})

	res := Calculate(lines, []Rule{a, b, c}, UserContext{})
	codes := make([]string, 0, len(res.AppliedRules))
	for _, ar := range res.AppliedRules {
		codes = append(codes, ar.Code)
	}
	// c has the lowest priority value; a and b tie and keep input order.
	if !reflect.DeepEqual(codes, []string{"C", "A", "B"}) {
		t.Fatalf("unexpected application order: %v", codes)
	}
}

func TestCalculateRemainderGoesToLastLine(t *testing.T) {
	lines := []CartLine{
		{TrackID: uuid.New(), Tiers: track(100_000, 0, 0, 0)},
		{TrackID: uuid.New(), Tiers: track(100_000, 0, 0, 0)},
		{TrackID: uuid.New(), Tiers: track(100_000, 0, 0, 0)},
	}
	rule := volumeRule("FLERKURS", 1, VolumeTier{Count: 3, DiscountCents: 10_000})
	res := Calculate(lines, []Rule{rule}, UserContext{})
	got := []Money{res.Lines[0].DiscountCents, res.Lines[1].DiscountCents, res.Lines[2].DiscountCents}
	if !reflect.DeepEqual(got, []Money{3_333, 3_333, 3_334}) {
		t.Fatalf("expected 3333/3333/3334 split, got %v", got)
	}
}

func TestCalculateShareCappedAtLinePrice(t *testing.T) {
	lines := []CartLine{
		{TrackID: uuid.New(), Tiers: track(500, 0, 0, 0)},
		{TrackID: uuid.New(), Tiers: track(10_000, 0, 0, 0)},
	}
	rule := volumeRule("FLERKURS", 1, VolumeTier{Count: 2, DiscountCents: 5_000})
	res := Calculate(lines, []Rule{rule}, UserContext{})
	if res.Lines[0].DiscountCents != 500 || res.Lines[1].DiscountCents != 4_500 {
		t.Fatalf("expected 500/4500 split, got %d/%d", res.Lines[0].DiscountCents, res.Lines[1].DiscountCents)
	}
	if res.AppliedRules[0].AmountCents != 5_000 {
		t.Fatalf("expected full 5000 applied, got %d", res.AppliedRules[0].AmountCents)
	}
}

func TestCalculateDiscountClampedToCartValue(t *testing.T) {
	lines := []CartLine{{TrackID: uuid.New(), Tiers: track(1_000, 0, 0, 0)}}
	rule := volumeRule("FLERKURS", 1, VolumeTier{Count: 1, DiscountCents: 5_000})
	res := Calculate(lines, []Rule{rule}, UserContext{})
	if res.Lines[0].FinalPriceCents != 0 {
		t.Fatalf("expected final price 0, got %d", res.Lines[0].FinalPriceCents)
	}
	if res.AppliedRules[0].AmountCents != 1_000 {
		t.Fatalf("expected clamp to 1000, got %d", res.AppliedRules[0].AmountCents)
	}
}

func TestCalculatePercentRoundsHalfAwayFromZero(t *testing.T) {
	lines := []CartLine{{TrackID: uuid.New(), Tiers: track(15_005, 0, 0, 0)}}
	rule := percentRule("MEDLEM10", 1, 10)
	res := Calculate(lines, []Rule{rule}, UserContext{IsMember: true, MembershipTierID: "standard"})
	if res.Lines[0].DiscountCents != 1_501 {
		t.Fatalf("expected 1500.5 to round to 1501, got %d", res.Lines[0].DiscountCents)
	}
}

func TestCalculateConservation(t *testing.T) {
	lines := []CartLine{
		{TrackID: uuid.New(), Tiers: track(123_450, 0, 99_000, 0)},
		{TrackID: uuid.New(), HasPartner: true, Tiers: track(150_000, 260_000, 0, 0)},
		{TrackID: uuid.New(), Tiers: track(87_500, 0, 0, 0)},
	}
	rules := []Rule{
		percentRule("MEDLEM10", 1, 10),
		volumeRule("FLERKURS", 2, VolumeTier{Count: 2, DiscountCents: 30_000}, VolumeTier{Count: 3, DiscountCents: 45_000}),
	}
	res := Calculate(lines, rules, UserContext{IsMember: true, MembershipTierID: "standard"})

	var finals Money
	for _, line := range res.Lines {
		if line.FinalPriceCents < 0 {
			t.Fatalf("negative final price: %+v", line)
		}
		if line.DiscountCents > line.BasePriceCents {
			t.Fatalf("discount exceeds base price: %+v", line)
		}
		if line.FinalPriceCents != line.BasePriceCents-line.DiscountCents {
			t.Fatalf("line invariant broken: %+v", line)
		}
		finals += line.FinalPriceCents
	}
	if res.FinalTotalCents != finals {
		t.Fatalf("final total %d does not match line sum %d", res.FinalTotalCents, finals)
	}
	if res.DiscountTotalCents != res.SubtotalCents-res.FinalTotalCents {
		t.Fatalf("discount total %d does not equal subtotal-final %d", res.DiscountTotalCents, res.SubtotalCents-res.FinalTotalCents)
	}
}

func TestCalculateIdempotent(t *testing.T) {
	lines := []CartLine{
		{TrackID: uuid.New(), Tiers: track(150_000, 0, 0, 0)},
		{TrackID: uuid.New(), HasPartner: true, Tiers: track(150_000, 250_000, 0, 120_000)},
	}
	rules := []Rule{
		percentRule("MEDLEM10", 1, 10),
		volumeRule("FLERKURS", 2, VolumeTier{Count: 2, DiscountCents: 20_000}),
	}
	user := UserContext{IsMember: true, MembershipTierID: "standard"}
	first := Calculate(lines, rules, user)
	second := Calculate(lines, rules, user)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("calculation is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestCalculateEmptyCart(t *testing.T) {
	res := Calculate(nil, []Rule{volumeRule("FLERKURS", 1, VolumeTier{Count: 1, DiscountCents: 5_000})}, UserContext{})
	if res.SubtotalCents != 0 || res.FinalTotalCents != 0 || res.DiscountTotalCents != 0 {
		t.Fatalf("expected zero totals, got %+v", res)
	}
	if len(res.AppliedRules) != 0 {
		t.Fatalf("expected no applied rules, got %+v", res.AppliedRules)
	}
}

func TestCalculateReservedKindIsNoop(t *testing.T) {
	lines := []CartLine{{TrackID: uuid.New(), Tiers: track(100_000, 0, 0, 0)}}
	rule := Rule{
		ID:       uuid.New(),
		Code:     "PROMO",
		Priority: 1,
		Enabled:  true,
		Kind:     KindPromoCodeFixed,
		Config:   RuleConfig{Raw: []byte(`{"amountCents":5000}`)},
	}
	res := Calculate(lines, []Rule{rule}, UserContext{})
	if res.FinalTotalCents != 100_000 || len(res.AppliedRules) != 0 {
		t.Fatalf("reserved kind must be a no-op, got %+v", res)
	}
}
