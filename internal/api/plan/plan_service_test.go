package plan

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/briefly-ai/briefly-api/app/observability/metrics"
	"github.com/briefly-ai/briefly-api/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type MockPlanRepo struct {
	mock.Mock
}

func (m *MockPlanRepo) GetProfileByID(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*types.Profile)
	return profile, args.Error(1)
}

func (m *MockPlanRepo) SetPaidPlan(ctx context.Context, userID uuid.UUID, tier types.PlanTier, startedAt, validUntil time.Time) error {
	args := m.Called(ctx, userID, tier, startedAt, validUntil)
	return args.Error(0)
}

func (m *MockPlanRepo) SetTier(ctx context.Context, userID uuid.UUID, tier types.PlanTier) error {
	args := m.Called(ctx, userID, tier)
	return args.Error(0)
}

func (m *MockPlanRepo) SetCancelRequested(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockPlanRepo) ClearPaidPlan(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockUsageCounter struct {
	mock.Mock
}

func (m *MockUsageCounter) CountEventsInRange(ctx context.Context, userID uuid.UUID, feature types.Feature, from, to time.Time) (int, error) {
	args := m.Called(ctx, userID, feature, from, to)
	return args.Int(0), args.Error(1)
}

type MockReferralRecorder struct {
	mock.Mock
}

func (m *MockReferralRecorder) RecordConversion(ctx context.Context, referrerID, referredID uuid.UUID, codeUsed string) error {
	args := m.Called(ctx, referrerID, referredID, codeUsed)
	return args.Error(0)
}

// --- Helpers ---

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repo, usage UsageCounter, referrals ReferralRecorder) *ServiceImpl {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewPlanService(repo, usage, referrals, testTrialRules, testQuotaRules, 30, logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

// --- Tests ---

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("TrialProfileBecomesPaid", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := trialProfile(types.TrialTypeNormal, testNow.AddDate(0, 0, -2))
		profile.ID = userID
		mockRepo.On("GetProfileByID", mock.Anything, userID).Return(profile, nil)
		mockRepo.On("SetPaidPlan", mock.Anything, userID, types.PlanTierStarter, testNow, testNow.AddDate(0, 0, 30)).Return(nil)

		svc := newTestService(mockRepo, nil, nil)

		err := svc.Subscribe(ctx, userID, types.PlanTierStarter)

		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("AlreadyPaidIsRejectedWithoutMutation", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := paidProfile(types.PlanTierStarter, testNow.AddDate(0, 1, 0))
		profile.ID = userID
		mockRepo.On("GetProfileByID", mock.Anything, userID).Return(profile, nil)

		svc := newTestService(mockRepo, nil, nil)

		err := svc.Subscribe(ctx, userID, types.PlanTierPro)

		assert.ErrorIs(t, err, ErrAlreadyPaid)
		mockRepo.AssertNotCalled(t, "SetPaidPlan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ExpiredTrialMaySubscribe", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := trialProfile(types.TrialTypeNormal, testNow.AddDate(0, 0, -30))
		profile.ID = userID
		mockRepo.On("GetProfileByID", mock.Anything, userID).Return(profile, nil)
		mockRepo.On("SetPaidPlan", mock.Anything, userID, types.PlanTierPro, testNow, testNow.AddDate(0, 0, 30)).Return(nil)

		svc := newTestService(mockRepo, nil, nil)

		err := svc.Subscribe(ctx, userID, types.PlanTierPro)

		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ReferredProfileBooksConversion", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		mockReferrals := new(MockReferralRecorder)
		referrerID := uuid.New()
		code := "XKCD2345"

		profile := trialProfile(types.TrialTypeReferral, testNow.AddDate(0, 0, -2))
		profile.ID = userID
		profile.ReferredBy = &referrerID
		profile.UsedReferralCode = &code
		mockRepo.On("GetProfileByID", mock.Anything, userID).Return(profile, nil)
		mockRepo.On("SetPaidPlan", mock.Anything, userID, types.PlanTierStarter, testNow, mock.Anything).Return(nil)
		mockReferrals.On("RecordConversion", mock.Anything, referrerID, userID, code).Return(nil)

		svc := newTestService(mockRepo, nil, mockReferrals)

		err := svc.Subscribe(ctx, userID, types.PlanTierStarter)

		require.NoError(t, err)
		mockReferrals.AssertExpectations(t)
	})

	t.Run("ReferralBookkeepingFailureDoesNotBlock", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		mockReferrals := new(MockReferralRecorder)
		referrerID := uuid.New()

		profile := trialProfile(types.TrialTypeReferral, testNow.AddDate(0, 0, -2))
		profile.ID = userID
		profile.ReferredBy = &referrerID
		mockRepo.On("GetProfileByID", mock.Anything, userID).Return(profile, nil)
		mockRepo.On("SetPaidPlan", mock.Anything, userID, types.PlanTierStarter, testNow, mock.Anything).Return(nil)
		mockReferrals.On("RecordConversion", mock.Anything, referrerID, userID, "").Return(assert.AnError)

		svc := newTestService(mockRepo, nil, mockReferrals)

		err := svc.Subscribe(ctx, userID, types.PlanTierStarter)

		require.NoError(t, err)
	})
}

func TestConfirmPaid(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("IdempotentOnSameTier", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := paidProfile(types.PlanTierPro, testNow.AddDate(0, 1, 0))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)

		svc := newTestService(mockRepo, nil, nil)

		err := svc.ConfirmPaid(ctx, userID, types.PlanTierPro)

		require.NoError(t, err)
		mockRepo.AssertNotCalled(t, "SetPaidPlan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AppliesPlanFromTrial", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := trialProfile(types.TrialTypeNormal, testNow.AddDate(0, 0, -3))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)
		mockRepo.On("SetPaidPlan", ctx, userID, types.PlanTierStarter, testNow, testNow.AddDate(0, 0, 30)).Return(nil)

		svc := newTestService(mockRepo, nil, nil)

		err := svc.ConfirmPaid(ctx, userID, types.PlanTierStarter)

		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})
}

func TestTierChanges(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("UpgradeStarterToPro", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := paidProfile(types.PlanTierStarter, testNow.AddDate(0, 1, 0))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)
		mockRepo.On("SetTier", ctx, userID, types.PlanTierPro).Return(nil)

		svc := newTestService(mockRepo, nil, nil)

		require.NoError(t, svc.Upgrade(ctx, userID))
		mockRepo.AssertExpectations(t)
	})

	t.Run("UpgradeRequiresStarter", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := trialProfile(types.TrialTypeNormal, testNow.AddDate(0, 0, -1))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)

		svc := newTestService(mockRepo, nil, nil)

		assert.ErrorIs(t, svc.Upgrade(ctx, userID), ErrNotOnStarter)
		mockRepo.AssertNotCalled(t, "SetTier", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("DowngradeProToStarter", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := paidProfile(types.PlanTierPro, testNow.AddDate(0, 1, 0))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)
		mockRepo.On("SetTier", ctx, userID, types.PlanTierStarter).Return(nil)

		svc := newTestService(mockRepo, nil, nil)

		require.NoError(t, svc.Downgrade(ctx, userID))
		mockRepo.AssertExpectations(t)
	})

	t.Run("DowngradeRequiresPro", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := paidProfile(types.PlanTierStarter, testNow.AddDate(0, 1, 0))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)

		svc := newTestService(mockRepo, nil, nil)

		assert.ErrorIs(t, svc.Downgrade(ctx, userID), ErrNotOnPro)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("FlagsPaidPlanForNonRenewal", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := paidProfile(types.PlanTierPro, testNow.AddDate(0, 1, 0))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)
		mockRepo.On("SetCancelRequested", ctx, userID).Return(nil)

		svc := newTestService(mockRepo, nil, nil)

		require.NoError(t, svc.Cancel(ctx, userID))
		mockRepo.AssertExpectations(t)
	})

	t.Run("RejectedWithoutPaidPlan", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := trialProfile(types.TrialTypeNormal, testNow.AddDate(0, 0, -1))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)

		svc := newTestService(mockRepo, nil, nil)

		assert.ErrorIs(t, svc.Cancel(ctx, userID), ErrNotPaid)
	})
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("ExpiredTrialIsBlocked", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := trialProfile(types.TrialTypeNormal, testNow.AddDate(0, 0, -8))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)

		svc := newTestService(mockRepo, nil, nil)

		_, state, err := svc.Guard(ctx, userID)

		assert.ErrorIs(t, err, ErrTrialExpired)
		assert.Equal(t, types.PlanKindTrialExpired, state.Kind)
	})

	t.Run("ActiveTrialPasses", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := trialProfile(types.TrialTypeReferral, testNow.AddDate(0, 0, -8))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)

		svc := newTestService(mockRepo, nil, nil)

		_, state, err := svc.Guard(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, types.PlanKindTrial, state.Kind)
	})

	t.Run("MissingTrialMetadataIsNoPlan", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		profile := trialProfile("", testNow)
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)

		svc := newTestService(mockRepo, nil, nil)

		_, _, err := svc.Guard(ctx, userID)

		assert.ErrorIs(t, err, ErrNoPlan)
	})
}

func TestCheckAccess(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("VideoCountsCurrentMonthOnly", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		mockUsage := new(MockUsageCounter)
		profile := paidProfile(types.PlanTierPro, testNow.AddDate(0, 1, 0))
		profile.ID = userID

		monthStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		monthEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)
		mockUsage.On("CountEventsInRange", ctx, userID, types.FeatureVideo, monthStart, monthEnd).Return(29, nil)

		svc := newTestService(mockRepo, mockUsage, nil)

		_, decision, err := svc.CheckAccess(ctx, userID, types.FeatureVideo)

		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 1, decision.Remaining)
		mockUsage.AssertExpectations(t)
	})

	t.Run("ChatSkipsUsageCount", func(t *testing.T) {
		mockRepo := new(MockPlanRepo)
		mockUsage := new(MockUsageCounter)
		profile := trialProfile(types.TrialTypeNormal, testNow.AddDate(0, 0, -1))
		profile.ID = userID
		mockRepo.On("GetProfileByID", ctx, userID).Return(profile, nil)

		svc := newTestService(mockRepo, mockUsage, nil)

		_, decision, err := svc.CheckAccess(ctx, userID, types.FeatureChat)

		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		mockUsage.AssertNotCalled(t, "CountEventsInRange",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestVideoRemaining(t *testing.T) {
	ctx := context.Background()

	t.Run("NilForStarter", func(t *testing.T) {
		mockUsage := new(MockUsageCounter)
		profile := paidProfile(types.PlanTierStarter, testNow.AddDate(0, 1, 0))

		svc := newTestService(new(MockPlanRepo), mockUsage, nil)

		remaining, err := svc.VideoRemaining(ctx, profile)

		require.NoError(t, err)
		assert.Nil(t, remaining)
		mockUsage.AssertNotCalled(t, "CountEventsInRange",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CountedForTrial", func(t *testing.T) {
		mockUsage := new(MockUsageCounter)
		profile := trialProfile(types.TrialTypeNormal, testNow.AddDate(0, 0, -1))
		mockUsage.On("CountEventsInRange", ctx, profile.ID, types.FeatureVideo, mock.Anything, mock.Anything).Return(2, nil)

		svc := newTestService(new(MockPlanRepo), mockUsage, nil)

		remaining, err := svc.VideoRemaining(ctx, profile)

		require.NoError(t, err)
		require.NotNil(t, remaining)
		assert.Equal(t, 3, *remaining)
	})
}

func TestRevokePaid(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	mockRepo := new(MockPlanRepo)
	mockRepo.On("ClearPaidPlan", ctx, userID).Return(nil)

	svc := newTestService(mockRepo, nil, nil)

	require.NoError(t, svc.RevokePaid(ctx, userID))
	mockRepo.AssertExpectations(t)
}
