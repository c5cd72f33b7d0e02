package features

import (
	"fmt"

	"github.com/briefly-ai/briefly-api/internal/api/generative_ai"
)

// SummarizeURLRequest is the body of POST /features/url/summarize.
type SummarizeURLRequest struct {
	URL string `json:"url"`
}

// CaptionImageRequest is the body of POST /features/vision/caption.
type CaptionImageRequest struct {
	ImageURL string `json:"image_url"`
}

// ChatRequest is the body of POST /features/chat. History is optional; each
// turn is replayed so follow-ups keep their context.
type ChatRequest struct {
	Message string                  `json:"message"`
	History []generativeAI.ChatTurn `json:"history,omitempty"`
}

// FeatureResponse is the common success payload of every feature endpoint.
// Remaining is only present for quota-limited features (video).
type FeatureResponse struct {
	Text      string `json:"text"`
	Remaining *int   `json:"remaining,omitempty"`
}

// AccessDeniedError is returned when the feature gate rejects a request. Code
// is the stable machine-readable reason written into the error response.
type AccessDeniedError struct {
	Code string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("feature access denied: %s", e.Code)
}
