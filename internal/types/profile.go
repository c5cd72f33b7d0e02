package types

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the single per-user row holding identity, trial metadata, plan
// fields and referral linkage. Soft-deleted via DeletedAt, never hard-deleted.
type Profile struct {
	ID              uuid.UUID  `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Role            string     `json:"role"`
	AccountCode     string     `json:"account_code"` // 5-digit display code
	TrialType       TrialType  `json:"trial_type,omitempty"`
	RegisteredAt    time.Time  `json:"registered_at"`
	PlanStatus      PlanStatus `json:"plan_status"`
	PlanTier        *PlanTier  `json:"plan_tier,omitempty"`
	PlanStartedAt   *time.Time `json:"plan_started_at,omitempty"`
	PlanValidUntil  *time.Time `json:"plan_valid_until,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	ReferralCode    string     `json:"referral_code"`
	UsedReferralCode *string   `json:"used_referral_code,omitempty"`
	ReferredBy      *uuid.UUID `json:"referred_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"-"`
}

// UpdateProfileParams defines the fields allowed for profile updates.
// Pointers distinguish "not provided" from zero values for partial updates.
type UpdateProfileParams struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// ProfileView is the profile as returned to the owning user, with the
// derived plan state attached.
type ProfileView struct {
	Profile        Profile   `json:"profile"`
	PlanState      PlanState `json:"plan_state"`
	VideoRemaining *int      `json:"video_remaining,omitempty"`
}
