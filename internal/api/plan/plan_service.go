package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/briefly-ai/briefly-api/app/observability/metrics"
	"github.com/briefly-ai/briefly-api/internal/types"
)

var ErrTrialExpired = errors.New("trial period has expired")
var ErrNoPlan = errors.New("profile has no active plan")

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// UsageCounter counts a user's usage events in a time range. Satisfied by the
// usage repository; usage accounting stays append-only and is counted by
// range query, never incremented in place.
type UsageCounter interface {
	CountEventsInRange(ctx context.Context, userID uuid.UUID, feature types.Feature, from, to time.Time) (int, error)
}

// ReferralRecorder records a referral conversion, idempotently.
type ReferralRecorder interface {
	RecordConversion(ctx context.Context, referrerID, referredID uuid.UUID, codeUsed string) error
}

// Service defines the business logic contract for plan operations.
type Service interface {
	// GetPlanState returns the profile together with its derived plan state.
	GetPlanState(ctx context.Context, userID uuid.UUID) (*types.Profile, types.PlanState, error)
	// Guard enforces the feature-endpoint plan check: the profile must hold
	// an active trial or unexpired paid plan. Returns ErrTrialExpired or
	// ErrNoPlan otherwise.
	Guard(ctx context.Context, userID uuid.UUID) (*types.Profile, types.PlanState, error)
	// CheckAccess runs Guard plus the per-feature quota gate.
	CheckAccess(ctx context.Context, userID uuid.UUID, feature types.Feature) (*types.Profile, types.AccessDecision, error)
	// VideoRemaining reports the remaining monthly video quota, nil when the
	// plan has no video access.
	VideoRemaining(ctx context.Context, profile *types.Profile) (*int, error)

	Subscribe(ctx context.Context, userID uuid.UUID, tier types.PlanTier) error
	// ConfirmPaid applies a verified payment idempotently: confirming an
	// already-paid profile on the same tier is a no-op success.
	ConfirmPaid(ctx context.Context, userID uuid.UUID, tier types.PlanTier) error
	Upgrade(ctx context.Context, userID uuid.UUID) error
	Downgrade(ctx context.Context, userID uuid.UUID) error
	Cancel(ctx context.Context, userID uuid.UUID) error
	// RevokePaid clears plan fields after the payment provider reports the
	// subscription gone.
	RevokePaid(ctx context.Context, userID uuid.UUID) error
}

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger     *slog.Logger
	repo       Repo
	usage      UsageCounter
	referrals  ReferralRecorder
	trialRules TrialRules
	quotaRules QuotaRules
	paidPeriod time.Duration
	now        func() time.Time
}

// NewPlanService creates a new plan service instance. The trial and quota
// rules come from the single config source.
func NewPlanService(repo Repo, usage UsageCounter, referrals ReferralRecorder, trialRules TrialRules, quotaRules QuotaRules, paidPeriodDays int, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		repo:       repo,
		usage:      usage,
		referrals:  referrals,
		trialRules: trialRules,
		quotaRules: quotaRules,
		paidPeriod: time.Duration(paidPeriodDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

func (s *ServiceImpl) GetPlanState(ctx context.Context, userID uuid.UUID) (*types.Profile, types.PlanState, error) {
	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		return nil, types.PlanState{}, fmt.Errorf("error fetching profile: %w", err)
	}
	return profile, ComputePlanState(profile, s.now(), s.trialRules), nil
}

func (s *ServiceImpl) Guard(ctx context.Context, userID uuid.UUID) (*types.Profile, types.PlanState, error) {
	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		return nil, types.PlanState{}, err
	}

	state := ComputeAccessState(profile, s.now(), s.trialRules)
	switch state.Kind {
	case types.PlanKindTrialExpired:
		return profile, state, ErrTrialExpired
	case types.PlanKindNone:
		return profile, state, ErrNoPlan
	}
	return profile, state, nil
}

func (s *ServiceImpl) CheckAccess(ctx context.Context, userID uuid.UUID, feature types.Feature) (*types.Profile, types.AccessDecision, error) {
	profile, state, err := s.Guard(ctx, userID)
	if err != nil {
		return profile, types.AccessDecision{}, err
	}

	used := 0
	if feature == types.FeatureVideo {
		from, to := currentMonthRange(s.now())
		used, err = s.usage.CountEventsInRange(ctx, userID, feature, from, to)
		if err != nil {
			return profile, types.AccessDecision{}, fmt.Errorf("error counting monthly usage: %w", err)
		}
	}

	decision := CheckFeatureAccess(state, feature, used, s.quotaRules)
	if !decision.Allowed {
		metrics.Get().FeatureDeniedTotal.Add(ctx, 1, otelFeatureAttr(feature))
	}
	return profile, decision, nil
}

func (s *ServiceImpl) VideoRemaining(ctx context.Context, profile *types.Profile) (*int, error) {
	state := ComputeAccessState(profile, s.now(), s.trialRules)

	var quota int
	switch state.Kind {
	case types.PlanKindTrial:
		quota = s.quotaRules.VideoTrial
	case types.PlanKindPro:
		quota = s.quotaRules.VideoPro
	default:
		return nil, nil
	}

	from, to := currentMonthRange(s.now())
	used, err := s.usage.CountEventsInRange(ctx, profile.ID, types.FeatureVideo, from, to)
	if err != nil {
		return nil, fmt.Errorf("error counting monthly usage: %w", err)
	}
	remaining := quota - used
	if remaining < 0 {
		remaining = 0
	}
	return &remaining, nil
}

// Subscribe applies the trial → paid transition. Rejected with ErrAlreadyPaid
// when the profile is already paid; the row is not touched in that case.
func (s *ServiceImpl) Subscribe(ctx context.Context, userID uuid.UUID, tier types.PlanTier) error {
	ctx, span := otel.Tracer("PlanService").Start(ctx, "Subscribe", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("plan.tier", string(tier)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Subscribe"), slog.String("userID", userID.String()))

	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile lookup failed")
		return err
	}

	if profile.PlanStatus == types.PlanStatusPaid {
		l.WarnContext(ctx, "Subscribe rejected: already paid")
		return ErrAlreadyPaid
	}

	now := s.now()
	if err := s.repo.SetPaidPlan(ctx, userID, tier, now, now.Add(s.paidPeriod)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan update failed")
		return fmt.Errorf("error applying subscription: %w", err)
	}
	metrics.Get().PlanTransitionsTotal.Add(ctx, 1, otelTransitionAttr("subscribe"))

	s.recordReferralConversion(ctx, profile)

	l.InfoContext(ctx, "Subscription applied", slog.String("tier", string(tier)))
	return nil
}

func (s *ServiceImpl) ConfirmPaid(ctx context.Context, userID uuid.UUID, tier types.PlanTier) error {
	l := s.logger.With(slog.String("method", "ConfirmPaid"), slog.String("userID", userID.String()))

	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		return err
	}

	if profile.PlanStatus == types.PlanStatusPaid && profile.PlanTier != nil && *profile.PlanTier == tier {
		l.InfoContext(ctx, "Payment already confirmed, nothing to do")
		return nil
	}

	now := s.now()
	if err := s.repo.SetPaidPlan(ctx, userID, tier, now, now.Add(s.paidPeriod)); err != nil {
		return fmt.Errorf("error confirming payment: %w", err)
	}
	metrics.Get().PlanTransitionsTotal.Add(ctx, 1, otelTransitionAttr("confirm_paid"))

	s.recordReferralConversion(ctx, profile)

	l.InfoContext(ctx, "Payment confirmed", slog.String("tier", string(tier)))
	return nil
}

func (s *ServiceImpl) Upgrade(ctx context.Context, userID uuid.UUID) error {
	l := s.logger.With(slog.String("method", "Upgrade"), slog.String("userID", userID.String()))

	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		return err
	}

	if profile.PlanStatus != types.PlanStatusPaid || profile.PlanTier == nil || *profile.PlanTier != types.PlanTierStarter {
		l.WarnContext(ctx, "Upgrade rejected: not on starter")
		return ErrNotOnStarter
	}

	if err := s.repo.SetTier(ctx, userID, types.PlanTierPro); err != nil {
		return fmt.Errorf("error upgrading plan: %w", err)
	}
	metrics.Get().PlanTransitionsTotal.Add(ctx, 1, otelTransitionAttr("upgrade"))

	l.InfoContext(ctx, "Plan upgraded to pro")
	return nil
}

func (s *ServiceImpl) Downgrade(ctx context.Context, userID uuid.UUID) error {
	l := s.logger.With(slog.String("method", "Downgrade"), slog.String("userID", userID.String()))

	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		return err
	}

	if profile.PlanStatus != types.PlanStatusPaid || profile.PlanTier == nil || *profile.PlanTier != types.PlanTierPro {
		l.WarnContext(ctx, "Downgrade rejected: not on pro")
		return ErrNotOnPro
	}

	// Tier changes immediately; there is no deferred effective date.
	if err := s.repo.SetTier(ctx, userID, types.PlanTierStarter); err != nil {
		return fmt.Errorf("error downgrading plan: %w", err)
	}
	metrics.Get().PlanTransitionsTotal.Add(ctx, 1, otelTransitionAttr("downgrade"))

	l.InfoContext(ctx, "Plan downgraded to starter")
	return nil
}

func (s *ServiceImpl) Cancel(ctx context.Context, userID uuid.UUID) error {
	l := s.logger.With(slog.String("method", "Cancel"), slog.String("userID", userID.String()))

	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		return err
	}
	if profile.PlanStatus != types.PlanStatusPaid {
		l.WarnContext(ctx, "Cancel rejected: no paid plan")
		return ErrNotPaid
	}

	if err := s.repo.SetCancelRequested(ctx, userID); err != nil {
		return fmt.Errorf("error flagging cancellation: %w", err)
	}
	metrics.Get().PlanTransitionsTotal.Add(ctx, 1, otelTransitionAttr("cancel"))

	l.InfoContext(ctx, "Cancellation flagged; access remains until plan_valid_until")
	return nil
}

func (s *ServiceImpl) RevokePaid(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.ClearPaidPlan(ctx, userID); err != nil {
		return fmt.Errorf("error revoking paid plan: %w", err)
	}
	metrics.Get().PlanTransitionsTotal.Add(ctx, 1, otelTransitionAttr("revoke"))
	return nil
}

// recordReferralConversion books the conversion for a referred profile.
// Failures are logged and swallowed: referral bookkeeping never blocks a
// subscription.
func (s *ServiceImpl) recordReferralConversion(ctx context.Context, profile *types.Profile) {
	if s.referrals == nil || profile.ReferredBy == nil {
		return
	}
	code := ""
	if profile.UsedReferralCode != nil {
		code = *profile.UsedReferralCode
	}
	if err := s.referrals.RecordConversion(ctx, *profile.ReferredBy, profile.ID, code); err != nil {
		s.logger.WarnContext(ctx, "Failed to record referral conversion",
			slog.String("userID", profile.ID.String()), slog.Any("error", err))
	}
}

// currentMonthRange returns the UTC calendar-month window containing now.
func currentMonthRange(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func otelFeatureAttr(feature types.Feature) metric.AddOption {
	return metric.WithAttributes(attribute.String("feature", string(feature)))
}

func otelTransitionAttr(kind string) metric.AddOption {
	return metric.WithAttributes(attribute.String("transition", kind))
}
