package usage

import (
	"regexp"

	"github.com/briefly-ai/briefly-api/config"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// AggregateRequest is the batch-aggregation body accepted by the admin
// endpoint. Individual records tolerate both snake_case and camelCase field
// names; see types.UsageEventInput.
type AggregateRequest struct {
	Events []types.UsageEventInput `json:"events"`
}

// SummaryResponse wraps the month buckets returned by the summary endpoints.
type SummaryResponse struct {
	Summaries []types.MonthlySummary `json:"summaries"`
}

// TopUsersResponse wraps the per-user spend ranking.
type TopUsersResponse struct {
	Users []types.UserSpend `json:"users"`
}

// DashboardView is the combined admin dashboard payload: one month breakdown
// plus the spend ranking.
type DashboardView struct {
	Month    types.MonthlySummary `json:"month"`
	TopUsers []types.UserSpend    `json:"top_users"`
}

const defaultTopLimit = 10

var monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ValidMonthKey reports whether s is a YYYY-MM bucket key.
func ValidMonthKey(s string) bool {
	return monthKeyPattern.MatchString(s)
}

// PriceTableFromConfig builds the per-event price table from the single
// config source.
func PriceTableFromConfig(cfg config.PricingConfig) types.PriceTable {
	return types.PriceTable{
		types.FeatureURL:    cfg.URL,
		types.FeatureVision: cfg.Vision,
		types.FeatureChat:   cfg.Chat,
		types.FeatureVideo:  cfg.Video,
	}
}
