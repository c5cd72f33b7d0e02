package user

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/briefly-ai/briefly-api/internal/api/plan"
	"github.com/briefly-ai/briefly-api/internal/types"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*types.Profile)
	return profile, args.Error(1)
}

func (m *MockUserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.Profile, error) {
	args := m.Called(ctx, userID, params)
	profile, _ := args.Get(0).(*types.Profile)
	return profile, args.Error(1)
}

func (m *MockUserRepo) SoftDelete(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockPlanViewer struct {
	mock.Mock
}

func (m *MockPlanViewer) VideoRemaining(ctx context.Context, profile *types.Profile) (*int, error) {
	args := m.Called(ctx, profile)
	remaining, _ := args.Get(0).(*int)
	return remaining, args.Error(1)
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repo, viewer PlanViewer) *UserServiceImpl {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewUserService(repo, viewer, plan.TrialRules{NormalDays: 7, ReferralDays: 14}, logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestGetProfileView(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("AttachesPlanStateAndQuota", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		mockViewer := new(MockPlanViewer)
		profile := &types.Profile{
			ID:           userID,
			Username:     "rita",
			TrialType:    types.TrialTypeNormal,
			RegisteredAt: testNow.AddDate(0, 0, -3),
			PlanStatus:   types.PlanStatusTrial,
		}
		remaining := 5
		mockRepo.On("GetProfile", ctx, userID).Return(profile, nil)
		mockViewer.On("VideoRemaining", ctx, profile).Return(&remaining, nil)

		svc := newTestService(mockRepo, mockViewer)

		view, err := svc.GetProfileView(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, types.PlanKindTrial, view.PlanState.Kind)
		assert.Equal(t, 4, view.PlanState.TrialDaysRemaining)
		require.NotNil(t, view.VideoRemaining)
		assert.Equal(t, 5, *view.VideoRemaining)
	})

	t.Run("NoQuotaForStarter", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		mockViewer := new(MockPlanViewer)
		tier := types.PlanTierStarter
		validUntil := testNow.AddDate(0, 1, 0)
		profile := &types.Profile{
			ID:             userID,
			PlanStatus:     types.PlanStatusPaid,
			PlanTier:       &tier,
			PlanValidUntil: &validUntil,
		}
		mockRepo.On("GetProfile", ctx, userID).Return(profile, nil)
		mockViewer.On("VideoRemaining", ctx, profile).Return(nil, nil)

		svc := newTestService(mockRepo, mockViewer)

		view, err := svc.GetProfileView(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, types.PlanKindStarter, view.PlanState.Kind)
		assert.Nil(t, view.VideoRemaining)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		mockRepo.On("GetProfile", ctx, userID).Return(nil, types.ErrNotFound)

		svc := newTestService(mockRepo, new(MockPlanViewer))

		_, err := svc.GetProfileView(ctx, userID)

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockRepo := new(MockUserRepo)
	username := "rita-updated"
	params := types.UpdateProfileParams{Username: &username}
	mockRepo.On("UpdateProfile", ctx, userID, params).Return(&types.Profile{ID: userID, Username: username}, nil)

	svc := newTestService(mockRepo, new(MockPlanViewer))

	profile, err := svc.UpdateProfile(ctx, userID, params)

	require.NoError(t, err)
	assert.Equal(t, username, profile.Username)
	mockRepo.AssertExpectations(t)
}

func TestDeleteProfile(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockRepo := new(MockUserRepo)
	mockRepo.On("SoftDelete", ctx, userID).Return(nil)

	svc := newTestService(mockRepo, new(MockPlanViewer))

	require.NoError(t, svc.DeleteProfile(ctx, userID))
	mockRepo.AssertExpectations(t)
}
