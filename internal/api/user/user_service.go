package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/briefly-ai/briefly-api/internal/api/plan"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// Ensure implementation satisfies the interface
var _ UserService = (*UserServiceImpl)(nil)

// PlanViewer derives the plan state attached to a profile view.
type PlanViewer interface {
	VideoRemaining(ctx context.Context, profile *types.Profile) (*int, error)
}

var _ PlanViewer = (plan.Service)(nil)

// UserService defines the business logic contract for profile management.
type UserService interface {
	// GetProfileView returns the profile with its derived plan state and the
	// remaining monthly video quota when the plan has video access.
	GetProfileView(ctx context.Context, userID uuid.UUID) (*types.ProfileView, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.Profile, error)
	DeleteProfile(ctx context.Context, userID uuid.UUID) error
}

// UserServiceImpl provides the implementation for UserService.
type UserServiceImpl struct {
	logger     *slog.Logger
	repo       Repo
	planViewer PlanViewer
	trialRules plan.TrialRules
	now        func() time.Time
}

// NewUserService creates a new user service instance.
func NewUserService(repo Repo, planViewer PlanViewer, trialRules plan.TrialRules, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger:     logger,
		repo:       repo,
		planViewer: planViewer,
		trialRules: trialRules,
		now:        time.Now,
	}
}

func (s *UserServiceImpl) GetProfileView(ctx context.Context, userID uuid.UUID) (*types.ProfileView, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	state := plan.ComputeAccessState(profile, s.now(), s.trialRules)

	remaining, err := s.planViewer.VideoRemaining(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("error computing video quota: %w", err)
	}

	return &types.ProfileView{
		Profile:        *profile,
		PlanState:      state,
		VideoRemaining: remaining,
	}, nil
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.Profile, error) {
	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.String("userID", userID.String()))

	profile, err := s.repo.UpdateProfile(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("error updating profile: %w", err)
	}

	l.InfoContext(ctx, "Profile updated")
	return profile, nil
}

func (s *UserServiceImpl) DeleteProfile(ctx context.Context, userID uuid.UUID) error {
	l := s.logger.With(slog.String("method", "DeleteProfile"), slog.String("userID", userID.String()))

	if err := s.repo.SoftDelete(ctx, userID); err != nil {
		return err
	}

	l.InfoContext(ctx, "Profile soft-deleted")
	return nil
}
