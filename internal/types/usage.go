package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UsageEvent is one append-only record per billable AI call. Immutable once
// written; used only for aggregation.
type UsageEvent struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Feature          Feature   `json:"feature"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageEventInput is the wire form of a usage record accepted by the admin
// aggregation endpoint. Historical exports used camelCase field names while
// the API emits snake_case, so decoding tolerates both. Normalization happens
// here, once, at the boundary; everything downstream sees UsageEvent.
type UsageEventInput struct {
	UserID    uuid.UUID
	Feature   Feature
	CreatedAt time.Time
}

func (u *UsageEventInput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pick := func(keys ...string) (json.RawMessage, bool) {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				return v, true
			}
		}
		return nil, false
	}

	if v, ok := pick("user_id", "userId"); ok {
		if err := json.Unmarshal(v, &u.UserID); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
	}
	if v, ok := pick("feature", "feature_type", "featureType", "type"); ok {
		if err := json.Unmarshal(v, &u.Feature); err != nil {
			return fmt.Errorf("invalid feature: %w", err)
		}
	}
	if v, ok := pick("created_at", "createdAt"); ok {
		if err := json.Unmarshal(v, &u.CreatedAt); err != nil {
			return fmt.Errorf("invalid created_at: %w", err)
		}
	}
	return nil
}

// Event converts the normalized input into a domain usage event.
func (u UsageEventInput) Event() UsageEvent {
	return UsageEvent{
		UserID:    u.UserID,
		Feature:   u.Feature,
		CreatedAt: u.CreatedAt,
	}
}

// PriceTable maps a feature type to its per-event cost in the billing
// currency. Loaded from config; there is no second price source.
type PriceTable map[Feature]float64

// MonthlySummary is one calendar-month bucket of aggregated usage.
type MonthlySummary struct {
	Month     string              `json:"month"` // YYYY-MM, UTC
	Counts    map[Feature]int     `json:"counts"`
	Costs     map[Feature]float64 `json:"costs"`
	TotalCost float64             `json:"total_cost"`
}

// UserSpend is one row of the per-user cost ranking.
type UserSpend struct {
	UserID    uuid.UUID `json:"user_id"`
	Events    int       `json:"events"`
	TotalCost float64   `json:"total_cost"`
}
