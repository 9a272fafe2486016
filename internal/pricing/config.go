package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidRuleConfig is returned when stored rule configuration cannot be
// decoded into the shape its kind requires.
var ErrInvalidRuleConfig = errors.New("invalid rule config")

// DecodeRuleConfig decodes and validates the JSON configuration stored for
// a rule. Validation happens here, at the storage boundary, so the
// evaluator never sees a malformed rule: percentages outside [0, 100],
// empty tier lists, non-positive tier counts and negative tier discounts
// are all rejected instead of being silently coerced.
func DecodeRuleConfig(kind RuleKind, raw []byte) (RuleConfig, error) {
	switch kind {
	case KindMembershipTierPercent:
		var cfg MembershipPercentConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return RuleConfig{}, fmt.Errorf("%w: %v", ErrInvalidRuleConfig, err)
		}
		if cfg.DiscountPercent < 0 || cfg.DiscountPercent > 100 {
			return RuleConfig{}, fmt.Errorf("%w: discountPercent %v outside [0, 100]", ErrInvalidRuleConfig, cfg.DiscountPercent)
		}
		return RuleConfig{MembershipPercent: &cfg}, nil
	case KindMultiCourseTiered:
		var cfg MultiCourseConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return RuleConfig{}, fmt.Errorf("%w: %v", ErrInvalidRuleConfig, err)
		}
		if len(cfg.Tiers) == 0 {
			return RuleConfig{}, fmt.Errorf("%w: tiers must not be empty", ErrInvalidRuleConfig)
		}
		for i, tier := range cfg.Tiers {
			if tier.Count <= 0 {
				return RuleConfig{}, fmt.Errorf("%w: tiers[%d].count must be positive", ErrInvalidRuleConfig, i)
			}
			if tier.DiscountCents < 0 {
				return RuleConfig{}, fmt.Errorf("%w: tiers[%d].discountCents must not be negative", ErrInvalidRuleConfig, i)
			}
		}
		return RuleConfig{MultiCourse: &cfg}, nil
	case KindPromoCodeFixed:
		// Reserved kind: keep the raw payload so storage round-trips.
		return RuleConfig{Raw: append(json.RawMessage(nil), raw...)}, nil
	default:
		return RuleConfig{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRuleConfig, kind)
	}
}

// EncodeRuleConfig is the inverse of DecodeRuleConfig, used when persisting
// a rule.
func EncodeRuleConfig(kind RuleKind, cfg RuleConfig) ([]byte, error) {
	switch kind {
	case KindMembershipTierPercent:
		if cfg.MembershipPercent == nil {
			return nil, fmt.Errorf("%w: missing membership percent config", ErrInvalidRuleConfig)
		}
		return json.Marshal(cfg.MembershipPercent)
	case KindMultiCourseTiered:
		if cfg.MultiCourse == nil {
			return nil, fmt.Errorf("%w: missing multi course config", ErrInvalidRuleConfig)
		}
		return json.Marshal(cfg.MultiCourse)
	case KindPromoCodeFixed:
		if len(cfg.Raw) == 0 {
			return []byte("{}"), nil
		}
		return append([]byte(nil), cfg.Raw...), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRuleConfig, kind)
	}
}
