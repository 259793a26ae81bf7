package schema

import "testing"

func TestTrustBadgeThresholds(t *testing.T) {
	cases := map[int]TrustBadge{
		100: BadgePro,
		95:  BadgePro,
		94:  BadgePremium,
		85:  BadgePremium,
		84:  BadgeVerified,
		70:  BadgeVerified,
		69:  BadgeNone,
		0:   BadgeNone,
	}
	for score, expected := range cases {
		if got := TrustBadgeFor(score); got != expected {
			t.Fatalf("TrustBadgeFor(%d)=%q want %q", score, got, expected)
		}
	}
}

func TestWithDerivedBadgeOverwritesStaleBadge(t *testing.T) {
	p := Participant{ID: "p1", TrustScore: 96, TrustBadge: BadgeVerified}
	if got := p.WithDerivedBadge().TrustBadge; got != BadgePro {
		t.Fatalf("derived badge=%q want pro", got)
	}
}

func TestHintTableCoversEveryStatus(t *testing.T) {
	for _, status := range Statuses() {
		hint := HintFor(status)
		if hint.Headline == "" || hint.Urgency == "" {
			t.Fatalf("status %s has an incomplete hint: %+v", status, hint)
		}
	}
	fallback := HintFor(TradeStatus("mystery"))
	if fallback.Headline == "" {
		t.Fatalf("unknown status must map to a neutral hint")
	}
}
