package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	FeatureRequestsTotal   metric.Int64Counter
	FeatureDeniedTotal     metric.Int64Counter
	LLMRequestDuration     metric.Float64Histogram
	UsageEventsTotal       metric.Int64Counter
	PlanTransitionsTotal   metric.Int64Counter
	DbQueryErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("briefly-api")
		var err error
		m := &AppMetrics{}

		m.FeatureRequestsTotal, err = meter.Int64Counter(
			"feature_requests_total",
			metric.WithDescription("Total number of AI feature requests served"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feature_requests_total: %v", err)
		}

		m.FeatureDeniedTotal, err = meter.Int64Counter(
			"feature_denied_total",
			metric.WithDescription("Total number of feature requests denied by the access gate"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create feature_denied_total: %v", err)
		}

		m.LLMRequestDuration, err = meter.Float64Histogram(
			"llm_request_duration_seconds",
			metric.WithDescription("Duration of upstream LLM calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_request_duration_seconds: %v", err)
		}

		m.UsageEventsTotal, err = meter.Int64Counter(
			"usage_events_total",
			metric.WithDescription("Total number of billable usage events written"),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create usage_events_total: %v", err)
		}

		m.PlanTransitionsTotal, err = meter.Int64Counter(
			"plan_transitions_total",
			metric.WithDescription("Total number of applied plan transitions"),
			metric.WithUnit("{transition}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create plan_transitions_total: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
