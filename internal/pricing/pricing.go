// Package pricing implements the checkout pricing core: per-line price
// seeding, ordered discount rule application and MVA extraction. Every
// function is pure and safe for concurrent use; callers recompute pricing
// inside their own transaction to guard against tampering.
package pricing

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Money represents a monetary value stored in minor units (øre).
type Money = int64

// PriceTiers is a track's own price table. A zero value means the tier is
// not offered: PairCents == 0 means no pair price exists, and a zero member
// price means the track has no fixed member price for that pairing.
type PriceTiers struct {
	SingleCents       Money
	PairCents         Money
	MemberSingleCents Money
	MemberPairCents   Money
}

// CartLine is one purchasable unit before pricing, resolved by the caller.
type CartLine struct {
	TrackID    uuid.UUID
	HasPartner bool
	Tiers      PriceTiers
}

// UserContext carries the purchaser's membership state for one calculation.
type UserContext struct {
	IsMember         bool
	MembershipTierID string
}

// RuleKind discriminates the typed configuration a discount rule carries.
type RuleKind string

const (
	// KindMembershipTierPercent applies a percentage discount to members,
	// optionally scoped to specific membership tiers.
	KindMembershipTierPercent RuleKind = "MEMBERSHIP_TIER_PERCENT"
	// KindMultiCourseTiered unlocks a fixed cart-wide discount once the cart
	// reaches a configured number of courses.
	KindMultiCourseTiered RuleKind = "MULTI_COURSE_TIERED"
	// KindPromoCodeFixed is reserved; the evaluator treats it as a no-op.
	KindPromoCodeFixed RuleKind = "PROMO_CODE_FIXED"
)

// MembershipPercentConfig configures a KindMembershipTierPercent rule.
// An empty TierIDs list means the rule applies to every membership tier.
type MembershipPercentConfig struct {
	DiscountPercent float64  `json:"discountPercent"`
	TierIDs         []string `json:"tierIds,omitempty"`
}

// VolumeTier is one threshold of a KindMultiCourseTiered rule.
type VolumeTier struct {
	Count         int   `json:"count"`
	DiscountCents Money `json:"discountCents"`
}

// MultiCourseConfig configures a KindMultiCourseTiered rule. The tier with
// the highest qualifying Count wins; tiers never stack.
type MultiCourseConfig struct {
	Tiers []VolumeTier `json:"tiers"`
}

// RuleConfig is the tagged union of per-kind rule configuration. Exactly one
// typed field is set for implemented kinds; reserved kinds keep their raw
// JSON so nothing is lost on a round-trip through storage.
type RuleConfig struct {
	MembershipPercent *MembershipPercentConfig
	MultiCourse       *MultiCourseConfig
	Raw               json.RawMessage
}

// Rule is a named, ordered discount policy. Rules are read-only inputs to a
// calculation and are never mutated by it.
type Rule struct {
	ID       uuid.UUID
	Code     string
	Name     string
	Priority int
	Enabled  bool
	Kind     RuleKind
	Config   RuleConfig
}

// LineItem is the priced counterpart of one CartLine.
type LineItem struct {
	TrackID              uuid.UUID `json:"trackId"`
	HasPartner           bool      `json:"hasPartner"`
	BasePriceCents       Money     `json:"basePriceCents"`
	DiscountCents        Money     `json:"discountCents"`
	FinalPriceCents      Money     `json:"finalPriceCents"`
	AppliedRuleCodes     []string  `json:"appliedRuleCodes,omitempty"`
	UsesFixedMemberPrice bool      `json:"usesFixedMemberPrice"`
}

// AppliedRule summarises the cart-wide effect of one rule that produced a
// nonzero discount.
type AppliedRule struct {
	RuleID      uuid.UUID `json:"ruleId"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	AmountCents Money     `json:"amountCents"`
	Description string    `json:"description"`
}

// Result aggregates a full pricing calculation. SubtotalCents is the sum of
// regular (non-member) prices and exists for strikethrough display, so when
// fixed member pricing applies DiscountTotalCents includes the member price
// reduction as well as rule discounts. That conflation is intentional.
type Result struct {
	SubtotalCents      Money         `json:"subtotalCents"`
	DiscountTotalCents Money         `json:"discountTotalCents"`
	FinalTotalCents    Money         `json:"finalTotalCents"`
	Lines              []LineItem    `json:"lines"`
	AppliedRules       []AppliedRule `json:"appliedRules,omitempty"`
	IsMember           bool          `json:"isMember"`
}
