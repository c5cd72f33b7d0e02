package plan

import (
	"errors"

	"github.com/briefly-ai/briefly-api/config"
	"github.com/briefly-ai/briefly-api/internal/types"
)

var ErrAlreadyPaid = errors.New("profile already on a paid plan")
var ErrNotOnStarter = errors.New("upgrade requires an active starter plan")
var ErrNotOnPro = errors.New("downgrade requires an active pro plan")
var ErrNotPaid = errors.New("profile has no active paid plan")

// TrialRules carries the trial lengths, in whole days, per trial type.
// Always built from config.PlansConfig; never redefined at a call site.
type TrialRules struct {
	NormalDays   int
	ReferralDays int
}

// QuotaRules carries the monthly video quota per plan kind. Starter has no
// video access at all, so it does not appear here.
type QuotaRules struct {
	VideoTrial int
	VideoPro   int
}

// RulesFromConfig derives the authoritative rule set from configuration.
func RulesFromConfig(cfg *config.PlansConfig) (TrialRules, QuotaRules) {
	return TrialRules{
			NormalDays:   cfg.TrialDaysNormal,
			ReferralDays: cfg.TrialDaysReferral,
		}, QuotaRules{
			VideoTrial: cfg.VideoQuotaTrial,
			VideoPro:   cfg.VideoQuotaPro,
		}
}

// SubscribeRequest is the body for subscribe and the tier-change endpoints.
type SubscribeRequest struct {
	Tier types.PlanTier `json:"tier"`
}

// PlanResponse is returned by the plan endpoints.
type PlanResponse struct {
	Success   bool            `json:"success"`
	PlanState types.PlanState `json:"plan_state"`
	Message   string          `json:"message,omitempty"`
}
