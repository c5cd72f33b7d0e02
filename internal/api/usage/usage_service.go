package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/briefly-ai/briefly-api/app/observability/metrics"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// Service defines the business logic contract for usage accounting and the
// admin cost aggregation.
type Service interface {
	// Record appends one usage event for a billable AI call.
	Record(ctx context.Context, userID uuid.UUID, feature types.Feature, promptTokens, completionTokens int) error

	MonthlySummaries(ctx context.Context) ([]types.MonthlySummary, error)
	MonthSummary(ctx context.Context, month string) (*types.MonthlySummary, error)
	TopUsers(ctx context.Context, limit int) ([]types.UserSpend, error)
	// Dashboard fans out the month breakdown and the spend ranking
	// concurrently.
	Dashboard(ctx context.Context, month string, limit int) (*DashboardView, error)
	// AggregateBatch aggregates a posted batch of raw records without
	// touching storage.
	AggregateBatch(inputs []types.UsageEventInput) []types.MonthlySummary
}

// summaryCacheTTL bounds how stale the admin dashboard may be.
const summaryCacheTTL = 5 * time.Minute

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger *slog.Logger
	repo   Repo
	prices types.PriceTable
	cache  *cache.Cache
	now    func() time.Time
}

func NewUsageService(repo Repo, prices types.PriceTable, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		prices: prices,
		cache:  cache.New(summaryCacheTTL, 10*time.Minute),
		now:    time.Now,
	}
}

func (s *ServiceImpl) Record(ctx context.Context, userID uuid.UUID, feature types.Feature, promptTokens, completionTokens int) error {
	event := &types.UsageEvent{
		UserID:           userID,
		Feature:          feature,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}
	if err := s.repo.InsertEvent(ctx, event); err != nil {
		return err
	}
	metrics.Get().UsageEventsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("feature", string(feature))))
	return nil
}

func (s *ServiceImpl) MonthlySummaries(ctx context.Context) ([]types.MonthlySummary, error) {
	const key = "summary:all"
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]types.MonthlySummary), nil
	}

	events, err := s.allEvents(ctx)
	if err != nil {
		return nil, err
	}

	summaries := AggregateMonthly(events, s.prices)
	s.cache.Set(key, summaries, cache.DefaultExpiration)
	return summaries, nil
}

func (s *ServiceImpl) MonthSummary(ctx context.Context, month string) (*types.MonthlySummary, error) {
	if month == "" {
		month = MonthKey(s.now())
	}
	if !ValidMonthKey(month) {
		return nil, fmt.Errorf("invalid month %q, want YYYY-MM", month)
	}

	key := "summary:" + month
	if cached, ok := s.cache.Get(key); ok {
		summary := cached.(types.MonthlySummary)
		return &summary, nil
	}

	from, to, err := monthRange(month)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListEventsInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	summary := summarizeMonth(month, events, s.prices)
	s.cache.Set(key, summary, cache.DefaultExpiration)
	return &summary, nil
}

func (s *ServiceImpl) TopUsers(ctx context.Context, limit int) ([]types.UserSpend, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}

	key := fmt.Sprintf("top:%d", limit)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]types.UserSpend), nil
	}

	events, err := s.allEvents(ctx)
	if err != nil {
		return nil, err
	}

	ranking := RankUsers(events, s.prices, limit)
	s.cache.Set(key, ranking, cache.DefaultExpiration)
	return ranking, nil
}

func (s *ServiceImpl) Dashboard(ctx context.Context, month string, limit int) (*DashboardView, error) {
	var view DashboardView

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.MonthSummary(gctx, month)
		if err != nil {
			return err
		}
		view.Month = *summary
		return nil
	})
	g.Go(func() error {
		users, err := s.TopUsers(gctx, limit)
		if err != nil {
			return err
		}
		view.TopUsers = users
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *ServiceImpl) AggregateBatch(inputs []types.UsageEventInput) []types.MonthlySummary {
	events := make([]types.UsageEvent, 0, len(inputs))
	for _, in := range inputs {
		events = append(events, in.Event())
	}
	return AggregateMonthly(events, s.prices)
}

func (s *ServiceImpl) allEvents(ctx context.Context) ([]types.UsageEvent, error) {
	// Open-ended window over the whole log.
	from := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	return s.repo.ListEventsInRange(ctx, from, s.now().UTC().Add(time.Hour))
}

// MonthKey returns the YYYY-MM UTC bucket key for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func monthRange(month string) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation("2006-01", month, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: %w", month, err)
	}
	return from, from.AddDate(0, 1, 0), nil
}

// AggregateMonthly buckets events into UTC calendar months and prices each
// bucket from the flat per-event table. Chat events are priced per request;
// their token counts are informational only. Results are sorted by month.
func AggregateMonthly(events []types.UsageEvent, prices types.PriceTable) []types.MonthlySummary {
	buckets := make(map[string][]types.UsageEvent)
	for _, e := range events {
		key := MonthKey(e.CreatedAt)
		buckets[key] = append(buckets[key], e)
	}

	months := make([]string, 0, len(buckets))
	for month := range buckets {
		months = append(months, month)
	}
	sort.Strings(months)

	summaries := make([]types.MonthlySummary, 0, len(months))
	for _, month := range months {
		summaries = append(summaries, summarizeMonth(month, buckets[month], prices))
	}
	return summaries
}

func summarizeMonth(month string, events []types.UsageEvent, prices types.PriceTable) types.MonthlySummary {
	summary := types.MonthlySummary{
		Month:  month,
		Counts: make(map[types.Feature]int),
		Costs:  make(map[types.Feature]float64),
	}
	for _, e := range events {
		summary.Counts[e.Feature]++
	}
	for feature, count := range summary.Counts {
		cost := float64(count) * prices[feature]
		summary.Costs[feature] = cost
		summary.TotalCost += cost
	}
	return summary
}

// RankUsers orders users by total spend descending, ties broken by user id
// so the ranking is deterministic, and truncates to limit.
func RankUsers(events []types.UsageEvent, prices types.PriceTable, limit int) []types.UserSpend {
	byUser := make(map[uuid.UUID]*types.UserSpend)
	for _, e := range events {
		spend, ok := byUser[e.UserID]
		if !ok {
			spend = &types.UserSpend{UserID: e.UserID}
			byUser[e.UserID] = spend
		}
		spend.Events++
		spend.TotalCost += prices[e.Feature]
	}

	ranking := make([]types.UserSpend, 0, len(byUser))
	for _, spend := range byUser {
		ranking = append(ranking, *spend)
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].TotalCost != ranking[j].TotalCost {
			return ranking[i].TotalCost > ranking[j].TotalCost
		}
		return ranking[i].UserID.String() < ranking[j].UserID.String()
	})

	if limit > 0 && len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking
}
