package schema

// TrustBadge labels a participant's reputation tier.
type TrustBadge string

const (
	// BadgeNone is the default tier for unproven participants.
	BadgeNone TrustBadge = ""
	// BadgeVerified marks participants with a trust score of 70 or above.
	BadgeVerified TrustBadge = "verified"
	// BadgePremium marks participants with a trust score of 85 or above.
	BadgePremium TrustBadge = "premium"
	// BadgePro marks participants with a trust score of 95 or above.
	BadgePro TrustBadge = "pro"
)

// TrustBadgeFor derives the badge tier from a 0..100 trust score. It is the
// single derivation point; callers must not re-implement the thresholds.
func TrustBadgeFor(score int) TrustBadge {
	switch {
	case score >= 95:
		return BadgePro
	case score >= 85:
		return BadgePremium
	case score >= 70:
		return BadgeVerified
	default:
		return BadgeNone
	}
}

// Participant describes one side of an offer or trade.
type Participant struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	TrustScore      int        `json:"trustScore"`
	TrustBadge      TrustBadge `json:"trustBadge,omitempty"`
	CompletedTrades int        `json:"completedTrades"`
	ResponseTime    string     `json:"responseTime,omitempty"`
	Online          bool       `json:"online"`
}

// WithDerivedBadge returns a copy with TrustBadge recomputed from TrustScore.
func (p Participant) WithDerivedBadge() Participant {
	p.TrustBadge = TrustBadgeFor(p.TrustScore)
	return p
}
