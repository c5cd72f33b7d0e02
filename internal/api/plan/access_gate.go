package plan

import (
	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// CheckFeatureAccess decides whether a metered feature may be invoked under
// the given plan state. url/vision/chat carry no quota and are always
// permitted; video is permitted only on trial and pro, within the monthly
// quota. Pure decision function: the caller counts prior usage for the
// current month before invoking it.
func CheckFeatureAccess(state types.PlanState, feature types.Feature, usedThisMonth int, rules QuotaRules) types.AccessDecision {
	if feature != types.FeatureVideo {
		return types.AccessDecision{Allowed: true}
	}

	var quota int
	switch state.Kind {
	case types.PlanKindTrial:
		quota = rules.VideoTrial
	case types.PlanKindPro:
		quota = rules.VideoPro
	default:
		// starter, trial_expired and no_plan are denied outright,
		// regardless of usage count
		return types.AccessDecision{
			Allowed: false,
			Limited: true,
			Reason:  api.CodePlanNotAllowed,
		}
	}

	remaining := quota - usedThisMonth
	if remaining <= 0 {
		return types.AccessDecision{
			Allowed:   false,
			Limited:   true,
			Remaining: 0,
			Reason:    api.CodeQuotaExhausted,
		}
	}

	return types.AccessDecision{
		Allowed:   true,
		Limited:   true,
		Remaining: remaining,
	}
}
