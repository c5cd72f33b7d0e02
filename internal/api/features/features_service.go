package features

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/briefly-ai/briefly-api/app/observability/metrics"
	"github.com/briefly-ai/briefly-api/internal/api/generative_ai"
	"github.com/briefly-ai/briefly-api/internal/api/plan"
	"github.com/briefly-ai/briefly-api/internal/api/usage"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// ErrUpstream marks a failure of the AI backend or a remote fetch, as opposed
// to a local validation or plan error.
var ErrUpstream = errors.New("upstream request failed")

// maxImageBytes caps the size of a fetched caption image.
const maxImageBytes = 10 * 1024 * 1024

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// AccessChecker is the slice of the plan service the feature pipeline needs.
type AccessChecker interface {
	CheckAccess(ctx context.Context, userID uuid.UUID, feature types.Feature) (*types.Profile, types.AccessDecision, error)
}

// UsageRecorder appends one usage event per successful AI call.
type UsageRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, feature types.Feature, promptTokens, completionTokens int) error
}

var _ AccessChecker = (plan.Service)(nil)
var _ UsageRecorder = (usage.Service)(nil)

// Service defines the business logic contract for the metered AI features.
// Every method runs the same pipeline: plan gate, AI call, usage append.
type Service interface {
	SummarizeURL(ctx context.Context, userID uuid.UUID, pageURL string) (*FeatureResponse, error)
	CaptionImage(ctx context.Context, userID uuid.UUID, imageURL string) (*FeatureResponse, error)
	Chat(ctx context.Context, userID uuid.UUID, history []generativeAI.ChatTurn, message string) (*FeatureResponse, error)
	TranscribeVideo(ctx context.Context, userID uuid.UUID, data []byte, mimeType string) (*FeatureResponse, error)
}

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger *slog.Logger
	gate   AccessChecker
	usage  UsageRecorder
	llm    generativeAI.LLMClient
	httpc  *http.Client
}

func NewFeaturesService(gate AccessChecker, usage UsageRecorder, llm generativeAI.LLMClient, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		gate:   gate,
		usage:  usage,
		llm:    llm,
		httpc:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ServiceImpl) SummarizeURL(ctx context.Context, userID uuid.UUID, pageURL string) (*FeatureResponse, error) {
	return s.run(ctx, userID, types.FeatureURL, func(ctx context.Context) (string, int, int, error) {
		text, err := s.llm.SummarizeURL(ctx, pageURL)
		return text, 0, 0, err
	})
}

func (s *ServiceImpl) CaptionImage(ctx context.Context, userID uuid.UUID, imageURL string) (*FeatureResponse, error) {
	return s.run(ctx, userID, types.FeatureVision, func(ctx context.Context) (string, int, int, error) {
		data, mimeType, err := s.fetchImage(ctx, imageURL)
		if err != nil {
			return "", 0, 0, err
		}
		text, err := s.llm.CaptionImage(ctx, data, mimeType)
		return text, 0, 0, err
	})
}

func (s *ServiceImpl) Chat(ctx context.Context, userID uuid.UUID, history []generativeAI.ChatTurn, message string) (*FeatureResponse, error) {
	return s.run(ctx, userID, types.FeatureChat, func(ctx context.Context) (string, int, int, error) {
		result, err := s.llm.Chat(ctx, history, message)
		if err != nil {
			return "", 0, 0, err
		}
		// Token counts ride along on the usage event for reporting; chat
		// bills at a flat per-request rate regardless.
		return result.Reply, result.PromptTokens, result.CompletionTokens, nil
	})
}

func (s *ServiceImpl) TranscribeVideo(ctx context.Context, userID uuid.UUID, data []byte, mimeType string) (*FeatureResponse, error) {
	return s.run(ctx, userID, types.FeatureVideo, func(ctx context.Context) (string, int, int, error) {
		text, err := s.llm.TranscribeVideo(ctx, data, mimeType)
		return text, 0, 0, err
	})
}

// run is the shared feature pipeline: access check, timed AI call, usage
// append. The usage write is not rolled back if it fails after a successful
// AI call; the event is simply lost and the failure surfaced.
func (s *ServiceImpl) run(ctx context.Context, userID uuid.UUID, feature types.Feature, call func(ctx context.Context) (string, int, int, error)) (*FeatureResponse, error) {
	ctx, span := otel.Tracer("FeaturesService").Start(ctx, "run", trace.WithAttributes(
		attribute.String("feature", string(feature)),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("feature", string(feature)), slog.String("userID", userID.String()))

	metrics.Get().FeatureRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("feature", string(feature))))

	_, decision, err := s.gate.CheckAccess(ctx, userID, feature)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !decision.Allowed {
		l.WarnContext(ctx, "Feature access denied", slog.String("reason", decision.Reason))
		return nil, &AccessDeniedError{Code: decision.Reason}
	}

	start := time.Now()
	text, promptTokens, completionTokens, err := call(ctx)
	metrics.Get().LLMRequestDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("feature", string(feature))))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "AI call failed")
		l.ErrorContext(ctx, "AI call failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if err := s.usage.Record(ctx, userID, feature, promptTokens, completionTokens); err != nil {
		span.RecordError(err)
		l.ErrorContext(ctx, "Failed to record usage event", slog.Any("error", err))
		return nil, fmt.Errorf("error recording usage: %w", err)
	}

	resp := &FeatureResponse{Text: text}
	if decision.Limited {
		remaining := decision.Remaining - 1
		if remaining < 0 {
			remaining = 0
		}
		resp.Remaining = &remaining
	}
	return resp, nil
}

func (s *ServiceImpl) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return nil, "", fmt.Errorf("unsupported image URL scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
