package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/types"
)

var testQuotaRules = QuotaRules{VideoTrial: 5, VideoPro: 30}

func TestCheckFeatureAccess(t *testing.T) {
	trial := types.PlanState{Kind: types.PlanKindTrial}
	starter := types.PlanState{Kind: types.PlanKindStarter}
	pro := types.PlanState{Kind: types.PlanKindPro}

	t.Run("UnmeteredFeaturesAlwaysAllowed", func(t *testing.T) {
		for _, feature := range []types.Feature{types.FeatureURL, types.FeatureVision, types.FeatureChat} {
			for _, state := range []types.PlanState{trial, starter, pro} {
				decision := CheckFeatureAccess(state, feature, 0, testQuotaRules)

				assert.True(t, decision.Allowed)
				assert.False(t, decision.Limited)
			}
		}
	})

	t.Run("VideoDeniedOnStarterRegardlessOfUsage", func(t *testing.T) {
		decision := CheckFeatureAccess(starter, types.FeatureVideo, 0, testQuotaRules)

		assert.False(t, decision.Allowed)
		assert.Equal(t, api.CodePlanNotAllowed, decision.Reason)
	})

	t.Run("VideoDeniedWithoutPlan", func(t *testing.T) {
		for _, kind := range []types.PlanKind{types.PlanKindNone, types.PlanKindTrialExpired} {
			decision := CheckFeatureAccess(types.PlanState{Kind: kind}, types.FeatureVideo, 0, testQuotaRules)

			assert.False(t, decision.Allowed)
			assert.Equal(t, api.CodePlanNotAllowed, decision.Reason)
		}
	})

	t.Run("VideoWithinProQuota", func(t *testing.T) {
		decision := CheckFeatureAccess(pro, types.FeatureVideo, 29, testQuotaRules)

		assert.True(t, decision.Allowed)
		assert.True(t, decision.Limited)
		assert.Equal(t, 1, decision.Remaining)
	})

	t.Run("VideoProQuotaExhausted", func(t *testing.T) {
		decision := CheckFeatureAccess(pro, types.FeatureVideo, 30, testQuotaRules)

		assert.False(t, decision.Allowed)
		assert.Equal(t, 0, decision.Remaining)
		assert.Equal(t, api.CodeQuotaExhausted, decision.Reason)
	})

	t.Run("VideoTrialQuotaIsSmaller", func(t *testing.T) {
		allowed := CheckFeatureAccess(trial, types.FeatureVideo, 4, testQuotaRules)
		denied := CheckFeatureAccess(trial, types.FeatureVideo, 5, testQuotaRules)

		assert.True(t, allowed.Allowed)
		assert.Equal(t, 1, allowed.Remaining)
		assert.False(t, denied.Allowed)
		assert.Equal(t, api.CodeQuotaExhausted, denied.Reason)
	})
}
