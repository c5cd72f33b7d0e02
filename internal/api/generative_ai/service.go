package generativeAI

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"github.com/briefly-ai/briefly-api/config"
)

// maxFetchBytes caps how much of a remote page is fed into the summarizer.
const maxFetchBytes = 512 * 1024

// ChatTurn is one prior exchange in a conversation, replayed to the model so
// follow-up messages keep their context.
type ChatTurn struct {
	Role    string `json:"role"` // "user" or "model"
	Message string `json:"message"`
}

// ChatResult carries the model reply plus the token usage reported by the
// API. Tokens are stored with the usage event but never priced directly;
// chat requests bill at a flat per-request rate.
type ChatResult struct {
	Reply            string
	PromptTokens     int
	CompletionTokens int
}

// LLMClient is the contract the feature endpoints depend on. *AIClient is the
// production implementation; tests substitute a mock.
type LLMClient interface {
	SummarizeURL(ctx context.Context, pageURL string) (string, error)
	CaptionImage(ctx context.Context, data []byte, mimeType string) (string, error)
	Chat(ctx context.Context, history []ChatTurn, message string) (*ChatResult, error)
	TranscribeVideo(ctx context.Context, data []byte, mimeType string) (string, error)
}

var _ LLMClient = (*AIClient)(nil)

type AIClient struct {
	client *genai.Client
	model  string
	httpc  *http.Client
	logger *slog.Logger
}

func NewAIClient(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		err := fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	return &AIClient{
		client: client,
		model:  model,
		httpc:  &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}, nil
}

// SummarizeURL fetches the page and asks the model for a short summary.
func (ai *AIClient) SummarizeURL(ctx context.Context, pageURL string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "SummarizeURL")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageURL))

	body, err := ai.fetchPage(ctx, pageURL)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}

	prompt := fmt.Sprintf(
		"Summarize the following web page in a few short paragraphs. "+
			"Focus on the main points and skip navigation or boilerplate.\n\nURL: %s\n\nContent:\n%s",
		pageURL, body)

	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "GenerateContent failed")
		return "", err
	}
	return result.Text(), nil
}

// CaptionImage describes the given image. The image is passed inline, which
// keeps us under the API's inline payload limit for typical uploads.
func (ai *AIClient) CaptionImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "CaptionImage")
	defer span.End()
	span.SetAttributes(attribute.Int("image.bytes", len(data)))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("Describe this image in one or two sentences."),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	result, err := ai.client.Models.GenerateContent(ctx, ai.model, contents, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "GenerateContent failed")
		return "", err
	}
	return result.Text(), nil
}

// Chat replays the prior turns and sends the new message, returning the reply
// and the total token usage the API reported.
func (ai *AIClient) Chat(ctx context.Context, history []ChatTurn, message string) (*ChatResult, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Chat")
	defer span.End()
	span.SetAttributes(attribute.Int("history.turns", len(history)))

	var priorTurns []*genai.Content
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == "model" || turn.Role == "assistant" {
			role = genai.RoleModel
		}
		priorTurns = append(priorTurns, genai.NewContentFromText(turn.Message, role))
	}

	chat, err := ai.client.Chats.Create(ctx, ai.model, nil, priorTurns)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	result, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SendMessage failed")
		return nil, err
	}

	chatResult := &ChatResult{Reply: result.Text()}
	if result.UsageMetadata != nil {
		chatResult.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		chatResult.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return chatResult, nil
}

// TranscribeVideo transcribes the spoken audio of a video file passed inline.
func (ai *AIClient) TranscribeVideo(ctx context.Context, data []byte, mimeType string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "TranscribeVideo")
	defer span.End()
	span.SetAttributes(attribute.Int("video.bytes", len(data)))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("Transcribe the spoken audio of this video. " +
				"Return only the transcript text."),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	result, err := ai.client.Models.GenerateContent(ctx, ai.model, contents, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "GenerateContent failed")
		return "", err
	}
	return result.Text(), nil
}

func (ai *AIClient) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return "", fmt.Errorf("unsupported URL scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "briefly-bot/1.0")

	resp, err := ai.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
