package plan

import (
	"fmt"
	"time"

	"github.com/briefly-ai/briefly-api/internal/types"
)

// ComputePlanState maps a profile's registration date, trial type and payment
// fields to the derived plan state at the given instant. Pure function, no
// hidden cache: callers recompute on every read so the state can never go
// stale relative to the profile row or the wall clock.
func ComputePlanState(p *types.Profile, now time.Time, rules TrialRules) types.PlanState {
	if p == nil {
		return types.PlanState{Kind: types.PlanKindNone, Label: "No plan"}
	}

	if p.PlanStatus == types.PlanStatusPaid && p.PlanTier != nil {
		switch *p.PlanTier {
		case types.PlanTierPro:
			return types.PlanState{Kind: types.PlanKindPro, Label: "Pro plan"}
		default:
			return types.PlanState{Kind: types.PlanKindStarter, Label: "Starter plan"}
		}
	}

	// Malformed or missing trial metadata degrades to no_plan, never errors.
	if p.RegisteredAt.IsZero() || p.TrialType == "" {
		return types.PlanState{Kind: types.PlanKindNone, Label: "No plan"}
	}

	trialDays := rules.NormalDays
	if p.TrialType == types.TrialTypeReferral {
		trialDays = rules.ReferralDays
	}

	elapsed := int(now.Sub(p.RegisteredAt).Hours() / 24) // whole days
	remaining := trialDays - elapsed

	if remaining > 0 {
		return types.PlanState{
			Kind:               types.PlanKindTrial,
			TrialDaysRemaining: remaining,
			Label:              fmt.Sprintf("Trial (%d %s left)", remaining, dayWord(remaining)),
		}
	}

	return types.PlanState{
		Kind:                types.PlanKindTrialExpired,
		TrialExpiredDaysAgo: -remaining,
		Label:               fmt.Sprintf("Trial expired %d %s ago", -remaining, dayWord(-remaining)),
	}
}

func dayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

// ComputeAccessState is ComputePlanState plus the payment-validity check: a
// paid profile whose plan_valid_until has elapsed (e.g. after cancellation)
// no longer grants paid access and is reported as trial_expired.
func ComputeAccessState(p *types.Profile, now time.Time, rules TrialRules) types.PlanState {
	state := ComputePlanState(p, now, rules)
	if state.IsPaid() && p.PlanValidUntil != nil && now.After(*p.PlanValidUntil) {
		return types.PlanState{
			Kind:  types.PlanKindTrialExpired,
			Label: "Plan lapsed",
		}
	}
	return state
}
