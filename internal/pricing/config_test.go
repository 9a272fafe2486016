package pricing

import (
	"errors"
	"testing"
)

func TestDecodeRuleConfigMembershipPercent(t *testing.T) {
	cfg, err := DecodeRuleConfig(KindMembershipTierPercent, []byte(`{"discountPercent":10,"tierIds":["gull"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MembershipPercent == nil || cfg.MembershipPercent.DiscountPercent != 10 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.MembershipPercent.TierIDs) != 1 || cfg.MembershipPercent.TierIDs[0] != "gull" {
		t.Fatalf("unexpected tier ids: %v", cfg.MembershipPercent.TierIDs)
	}
}

func TestDecodeRuleConfigRejectsOutOfRangePercent(t *testing.T) {
	for _, payload := range []string{
		`{"discountPercent":-5}`,
		`{"discountPercent":101}`,
	} {
		if _, err := DecodeRuleConfig(KindMembershipTierPercent, []byte(payload)); !errors.Is(err, ErrInvalidRuleConfig) {
			t.Fatalf("expected ErrInvalidRuleConfig for %s, got %v", payload, err)
		}
	}
}

func TestDecodeRuleConfigMultiCourse(t *testing.T) {
	cfg, err := DecodeRuleConfig(KindMultiCourseTiered, []byte(`{"tiers":[{"count":2,"discountCents":20000},{"count":3,"discountCents":40000}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MultiCourse == nil || len(cfg.MultiCourse.Tiers) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestDecodeRuleConfigRejectsBadTiers(t *testing.T) {
	for _, payload := range []string{
		`{"tiers":[]}`,
		`{"tiers":[{"count":0,"discountCents":1000}]}`,
		`{"tiers":[{"count":2,"discountCents":-1}]}`,
	} {
		if _, err := DecodeRuleConfig(KindMultiCourseTiered, []byte(payload)); !errors.Is(err, ErrInvalidRuleConfig) {
			t.Fatalf("expected ErrInvalidRuleConfig for %s, got %v", payload, err)
		}
	}
}

func TestDecodeRuleConfigReservedKindKeepsRaw(t *testing.T) {
	raw := []byte(`{"amountCents":5000,"code":"VELKOMMEN"}`)
	cfg, err := DecodeRuleConfig(KindPromoCodeFixed, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(cfg.Raw) != string(raw) {
		t.Fatalf("raw payload not preserved: %s", cfg.Raw)
	}
}

func TestDecodeRuleConfigUnknownKind(t *testing.T) {
	if _, err := DecodeRuleConfig("MYSTERY", []byte(`{}`)); !errors.Is(err, ErrInvalidRuleConfig) {
		t.Fatalf("expected ErrInvalidRuleConfig, got %v", err)
	}
}

func TestEncodeRuleConfigRoundTrip(t *testing.T) {
	raw := []byte(`{"tiers":[{"count":2,"discountCents":20000}]}`)
	cfg, err := DecodeRuleConfig(KindMultiCourseTiered, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	encoded, err := EncodeRuleConfig(KindMultiCourseTiered, cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeRuleConfig(KindMultiCourseTiered, encoded)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if back.MultiCourse.Tiers[0] != cfg.MultiCourse.Tiers[0] {
		t.Fatalf("round trip mismatch: %+v vs %+v", back.MultiCourse, cfg.MultiCourse)
	}
}
