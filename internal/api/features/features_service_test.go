package features

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/briefly-ai/briefly-api/app/observability/metrics"
	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/api/generative_ai"
	"github.com/briefly-ai/briefly-api/internal/api/plan"
	"github.com/briefly-ai/briefly-api/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	m.Run()
}

// MockAccessChecker is a mock implementation of the AccessChecker interface
type MockAccessChecker struct {
	mock.Mock
}

func (m *MockAccessChecker) CheckAccess(ctx context.Context, userID uuid.UUID, feature types.Feature) (*types.Profile, types.AccessDecision, error) {
	args := m.Called(ctx, userID, feature)
	var profile *types.Profile
	if args.Get(0) != nil {
		profile = args.Get(0).(*types.Profile)
	}
	return profile, args.Get(1).(types.AccessDecision), args.Error(2)
}

// MockUsageRecorder is a mock implementation of the UsageRecorder interface
type MockUsageRecorder struct {
	mock.Mock
}

func (m *MockUsageRecorder) Record(ctx context.Context, userID uuid.UUID, feature types.Feature, promptTokens, completionTokens int) error {
	args := m.Called(ctx, userID, feature, promptTokens, completionTokens)
	return args.Error(0)
}

// MockLLMClient is a mock implementation of the generativeAI.LLMClient interface
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) SummarizeURL(ctx context.Context, pageURL string) (string, error) {
	args := m.Called(ctx, pageURL)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) CaptionImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	args := m.Called(ctx, data, mimeType)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Chat(ctx context.Context, history []generativeAI.ChatTurn, message string) (*generativeAI.ChatResult, error) {
	args := m.Called(ctx, history, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generativeAI.ChatResult), args.Error(1)
}

func (m *MockLLMClient) TranscribeVideo(ctx context.Context, data []byte, mimeType string) (string, error) {
	args := m.Called(ctx, data, mimeType)
	return args.String(0), args.Error(1)
}

func newTestService() (*ServiceImpl, *MockAccessChecker, *MockUsageRecorder, *MockLLMClient) {
	gate := new(MockAccessChecker)
	recorder := new(MockUsageRecorder)
	llm := new(MockLLMClient)
	service := NewFeaturesService(gate, recorder, llm, slog.Default())
	return service, gate, recorder, llm
}

func TestSummarizeURL(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		service, gate, recorder, llm := newTestService()

		gate.On("CheckAccess", mock.Anything, userID, types.FeatureURL).
			Return(&types.Profile{ID: userID}, types.AccessDecision{Allowed: true}, nil).Once()
		llm.On("SummarizeURL", mock.Anything, "https://example.com/post").
			Return("A short summary.", nil).Once()
		recorder.On("Record", mock.Anything, userID, types.FeatureURL, 0, 0).Return(nil).Once()

		resp, err := service.SummarizeURL(ctx, userID, "https://example.com/post")

		require.NoError(t, err)
		assert.Equal(t, "A short summary.", resp.Text)
		assert.Nil(t, resp.Remaining)
		gate.AssertExpectations(t)
		recorder.AssertExpectations(t)
	})

	t.Run("TrialExpired", func(t *testing.T) {
		service, gate, recorder, llm := newTestService()

		gate.On("CheckAccess", mock.Anything, userID, types.FeatureURL).
			Return(nil, types.AccessDecision{}, plan.ErrTrialExpired).Once()

		_, err := service.SummarizeURL(ctx, userID, "https://example.com/post")

		assert.ErrorIs(t, err, plan.ErrTrialExpired)
		llm.AssertNotCalled(t, "SummarizeURL", mock.Anything, mock.Anything)
		recorder.AssertNotCalled(t, "Record",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UpstreamFailure", func(t *testing.T) {
		service, gate, recorder, llm := newTestService()

		gate.On("CheckAccess", mock.Anything, userID, types.FeatureURL).
			Return(&types.Profile{ID: userID}, types.AccessDecision{Allowed: true}, nil).Once()
		llm.On("SummarizeURL", mock.Anything, "https://example.com/post").
			Return("", errors.New("model overloaded")).Once()

		_, err := service.SummarizeURL(ctx, userID, "https://example.com/post")

		assert.ErrorIs(t, err, ErrUpstream)
		// No usage event when the AI call failed.
		recorder.AssertNotCalled(t, "Record",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("TokensStoredWithEvent", func(t *testing.T) {
		service, gate, recorder, llm := newTestService()

		history := []generativeAI.ChatTurn{{Role: "user", Message: "hi"}}
		gate.On("CheckAccess", mock.Anything, userID, types.FeatureChat).
			Return(&types.Profile{ID: userID}, types.AccessDecision{Allowed: true}, nil).Once()
		llm.On("Chat", mock.Anything, history, "how are you?").
			Return(&generativeAI.ChatResult{Reply: "Fine!", PromptTokens: 42, CompletionTokens: 11}, nil).Once()
		recorder.On("Record", mock.Anything, userID, types.FeatureChat, 42, 11).Return(nil).Once()

		resp, err := service.Chat(ctx, userID, history, "how are you?")

		require.NoError(t, err)
		assert.Equal(t, "Fine!", resp.Text)
		recorder.AssertExpectations(t)
	})
}

func TestTranscribeVideo(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	data := []byte("not really a video")

	t.Run("ReportsRemainingAfterUse", func(t *testing.T) {
		service, gate, recorder, llm := newTestService()

		gate.On("CheckAccess", mock.Anything, userID, types.FeatureVideo).
			Return(&types.Profile{ID: userID},
				types.AccessDecision{Allowed: true, Limited: true, Remaining: 1}, nil).Once()
		llm.On("TranscribeVideo", mock.Anything, data, "video/mp4").
			Return("transcript text", nil).Once()
		recorder.On("Record", mock.Anything, userID, types.FeatureVideo, 0, 0).Return(nil).Once()

		resp, err := service.TranscribeVideo(ctx, userID, data, "video/mp4")

		require.NoError(t, err)
		assert.Equal(t, "transcript text", resp.Text)
		require.NotNil(t, resp.Remaining)
		assert.Equal(t, 0, *resp.Remaining)
	})

	t.Run("QuotaExhausted", func(t *testing.T) {
		service, gate, recorder, llm := newTestService()

		gate.On("CheckAccess", mock.Anything, userID, types.FeatureVideo).
			Return(&types.Profile{ID: userID},
				types.AccessDecision{Allowed: false, Limited: true, Remaining: 0, Reason: api.CodeQuotaExhausted}, nil).Once()

		_, err := service.TranscribeVideo(ctx, userID, data, "video/mp4")

		var denied *AccessDeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, api.CodeQuotaExhausted, denied.Code)
		llm.AssertNotCalled(t, "TranscribeVideo", mock.Anything, mock.Anything, mock.Anything)
		recorder.AssertNotCalled(t, "Record",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StarterDenied", func(t *testing.T) {
		service, gate, _, llm := newTestService()

		gate.On("CheckAccess", mock.Anything, userID, types.FeatureVideo).
			Return(&types.Profile{ID: userID},
				types.AccessDecision{Allowed: false, Limited: true, Reason: api.CodePlanNotAllowed}, nil).Once()

		_, err := service.TranscribeVideo(ctx, userID, data, "video/mp4")

		var denied *AccessDeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, api.CodePlanNotAllowed, denied.Code)
		llm.AssertNotCalled(t, "TranscribeVideo", mock.Anything, mock.Anything, mock.Anything)
	})
}
