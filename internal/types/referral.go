package types

import (
	"time"

	"github.com/google/uuid"
)

// Referral links a referrer profile to a referred profile. The row is created
// lazily on the referred user's first subscribe, with ConvertedAt set.
type Referral struct {
	ID          uuid.UUID  `json:"id"`
	ReferrerID  uuid.UUID  `json:"referrer_id"`
	ReferredID  uuid.UUID  `json:"referred_id"`
	CodeUsed    string     `json:"code_used"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ReferralStats summarizes a user's referral activity.
type ReferralStats struct {
	ReferralCode  string `json:"referral_code"`
	TotalReferred int    `json:"total_referred"`
	Converted     int    `json:"converted"`
}
