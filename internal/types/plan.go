package types

// PlanStatus is the persisted billing status of a profile.
type PlanStatus string

const (
	PlanStatusTrial PlanStatus = "trial"
	PlanStatusPaid  PlanStatus = "paid"
)

// PlanTier is the persisted paid tier. Empty while the profile is on trial.
type PlanTier string

const (
	PlanTierStarter PlanTier = "starter"
	PlanTierPro     PlanTier = "pro"
)

// TrialType distinguishes organic signups from referred ones; referred
// signups get a longer trial.
type TrialType string

const (
	TrialTypeNormal   TrialType = "normal"
	TrialTypeReferral TrialType = "referral"
)

// PlanKind is the derived plan state of a profile. It is recomputed from the
// profile row and the wall clock on every read and never persisted.
type PlanKind string

const (
	PlanKindNone         PlanKind = "no_plan"
	PlanKindTrial        PlanKind = "trial"
	PlanKindTrialExpired PlanKind = "trial_expired"
	PlanKindStarter      PlanKind = "starter"
	PlanKindPro          PlanKind = "pro"
)

// PlanState is the computed view over a profile's plan fields.
type PlanState struct {
	Kind                PlanKind `json:"kind"`
	TrialDaysRemaining  int      `json:"trial_days_remaining,omitempty"`
	TrialExpiredDaysAgo int      `json:"trial_expired_days_ago,omitempty"`
	Label               string   `json:"label"`
}

// IsPaid reports whether the state corresponds to an active paid tier.
func (s PlanState) IsPaid() bool {
	return s.Kind == PlanKindStarter || s.Kind == PlanKindPro
}

// Feature identifies a metered AI-backed feature.
type Feature string

const (
	FeatureURL    Feature = "url"
	FeatureVision Feature = "vision"
	FeatureChat   Feature = "chat"
	FeatureVideo  Feature = "video"
)

// ValidFeature reports whether f is one of the known feature types.
func ValidFeature(f Feature) bool {
	switch f {
	case FeatureURL, FeatureVision, FeatureChat, FeatureVideo:
		return true
	}
	return false
}

// AccessDecision is the result of a feature-gate check.
type AccessDecision struct {
	Allowed bool `json:"allowed"`
	// Limited is true when the feature carries a monthly quota; Remaining is
	// only meaningful in that case.
	Limited   bool   `json:"limited"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}
