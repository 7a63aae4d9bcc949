package entitlement

// Tier is the user's entitlement level. It selects which quota policy, if
// any, applies to a feature. The tier is client-reported and trusted as-is.
type Tier string

const (
	TierFree    Tier = "Free"
	TierPremium Tier = "Premium"
)

// Feature identifies a gated action. The values double as the persistent
// counter keys, so they must stay stable.
type Feature string

const (
	FeatureSelfieAnalysis Feature = "selfie_analysis"
	FeatureCoachMessage   Feature = "coach_message"
	FeatureOutfitItem     Feature = "outfit_item"
	FeaturePlanDay        Feature = "plan_day"
)

// Policy is one variant of quota rule. A feature with no policy for a tier
// is unlimited for that tier.
type Policy interface {
	isPolicy()
}

// PerDay caps successful uses per calendar day. The counter is persisted and
// lazily treated as zero once the stored day key no longer matches today.
type PerDay struct {
	Limit int
}

// PerSession caps successful uses per process lifetime. The counter is held
// in memory only and resets on restart.
type PerSession struct {
	Limit int
}

// Selection caps the size of a set the user is building. Releasing an item
// frees capacity; the count is not monotonic.
type Selection struct {
	Limit int
}

// IndexWindow unlocks only the first Days entries of an indexed sequence.
// It is position-based, not count-based, and has no counter.
type IndexWindow struct {
	Days int
}

func (PerDay) isPolicy()      {}
func (PerSession) isPolicy()  {}
func (Selection) isPolicy()   {}
func (IndexWindow) isPolicy() {}

// DefaultPolicies is the reference policy table. Premium has no entries:
// every feature is unlimited on that tier.
func DefaultPolicies() map[Feature]map[Tier]Policy {
	return map[Feature]map[Tier]Policy{
		FeatureSelfieAnalysis: {TierFree: PerDay{Limit: 1}},
		FeatureCoachMessage:   {TierFree: PerSession{Limit: 3}},
		FeatureOutfitItem:     {TierFree: Selection{Limit: 4}},
		FeaturePlanDay:        {TierFree: IndexWindow{Days: 2}},
	}
}

// DenyReason explains a denied Decision.
type DenyReason string

const ReasonQuotaExceeded DenyReason = "quota_exceeded"

// Unlimited is the Remaining value reported when no policy applies.
const Unlimited = -1

// Decision is the outcome of an entitlement check. Denial is a normal return
// value, never an error.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	Feature   Feature    `json:"feature"`
	Reason    DenyReason `json:"reason,omitempty"`
	Remaining int        `json:"remaining"`
}
