package features

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/api/auth"
	"github.com/briefly-ai/briefly-api/internal/api/plan"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// maxVideoUploadBytes caps the multipart video upload.
const maxVideoUploadBytes = 50 * 1024 * 1024

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	SummarizeURL(w http.ResponseWriter, r *http.Request)
	CaptionImage(w http.ResponseWriter, r *http.Request)
	Chat(w http.ResponseWriter, r *http.Request)
	TranscribeVideo(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	featuresService Service
	logger          *slog.Logger
}

// NewHandlerImpl creates a new features HandlerImpl instance.
func NewHandlerImpl(featuresService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		featuresService: featuresService,
		logger:          logger,
	}
}

func (h *HandlerImpl) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userIDStr == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, api.CodeNotLoggedIn, "Authentication required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// SummarizeURL godoc
// @Summary      Summarize URL
// @Description  Fetches a web page and returns a short AI-generated summary.
// @Tags         Features
// @Accept       json
// @Produce      json
// @Param        body body SummarizeURLRequest true "Page URL"
// @Success      200 {object} FeatureResponse
// @Failure      403 {object} types.Response "Trial Expired"
// @Security     BearerAuth
// @Router       /features/url/summarize [post]
func (h *HandlerImpl) SummarizeURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req SummarizeURLRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if req.URL == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "url is required")
		return
	}

	resp, err := h.featuresService.SummarizeURL(r.Context(), userID, req.URL)
	if err != nil {
		h.writeFeatureError(w, r, err, "Failed to summarize URL")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// CaptionImage godoc
// @Summary      Caption Image
// @Description  Fetches an image by URL and returns an AI-generated caption.
// @Tags         Features
// @Accept       json
// @Produce      json
// @Param        body body CaptionImageRequest true "Image URL"
// @Success      200 {object} FeatureResponse
// @Failure      403 {object} types.Response "Trial Expired"
// @Security     BearerAuth
// @Router       /features/vision/caption [post]
func (h *HandlerImpl) CaptionImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req CaptionImageRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if req.ImageURL == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "image_url is required")
		return
	}

	resp, err := h.featuresService.CaptionImage(r.Context(), userID, req.ImageURL)
	if err != nil {
		h.writeFeatureError(w, r, err, "Failed to caption image")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// Chat godoc
// @Summary      Chat
// @Description  Sends a chat message, optionally with prior turns for context.
// @Tags         Features
// @Accept       json
// @Produce      json
// @Param        body body ChatRequest true "Message and optional history"
// @Success      200 {object} FeatureResponse
// @Failure      403 {object} types.Response "Trial Expired"
// @Security     BearerAuth
// @Router       /features/chat [post]
func (h *HandlerImpl) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if req.Message == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "message is required")
		return
	}

	resp, err := h.featuresService.Chat(r.Context(), userID, req.History, req.Message)
	if err != nil {
		h.writeFeatureError(w, r, err, "Failed to chat")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// TranscribeVideo godoc
// @Summary      Transcribe Video
// @Description  Accepts a multipart video upload and returns its transcript. Counts against the monthly video quota.
// @Tags         Features
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Video file"
// @Success      200 {object} FeatureResponse
// @Failure      403 {object} types.Response "Quota Exhausted"
// @Security     BearerAuth
// @Router       /features/video/transcribe [post]
func (h *HandlerImpl) TranscribeVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "TranscribeVideo"))

	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxVideoUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "file is required")
		return
	}
	defer file.Close()

	// Spool the upload to a temp file so the request body is released before
	// the long transcription call.
	tmp, err := os.CreateTemp("", "briefly-video-*")
	if err != nil {
		l.ErrorContext(ctx, "Failed to create temp file", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to accept upload")
		return
	}
	defer func() {
		tmp.Close()
		// Cleanup failures leave a stray temp file behind but never fail the
		// request.
		if err := os.Remove(tmp.Name()); err != nil {
			l.WarnContext(ctx, "Failed to remove temp upload", slog.String("path", tmp.Name()), slog.Any("error", err))
		}
	}()

	if _, err := io.Copy(tmp, file); err != nil {
		l.ErrorContext(ctx, "Failed to spool upload", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to accept upload")
		return
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		l.ErrorContext(ctx, "Failed to read spooled upload", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to accept upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	resp, err := h.featuresService.TranscribeVideo(ctx, userID, data, mimeType)
	if err != nil {
		h.writeFeatureError(w, r, err, "Failed to transcribe video")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *HandlerImpl) writeFeatureError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	h.logger.ErrorContext(r.Context(), logMsg, slog.Any("error", err))

	var denied *AccessDeniedError
	switch {
	case errors.As(err, &denied):
		api.ErrorResponse(w, r, http.StatusForbidden, denied.Code, "Feature not available on the current plan")
	case errors.Is(err, plan.ErrTrialExpired):
		api.ErrorResponse(w, r, http.StatusForbidden, api.CodeTrialExpired, "Trial period has expired")
	case errors.Is(err, plan.ErrNoPlan):
		api.ErrorResponse(w, r, http.StatusForbidden, api.CodePlanNotAllowed, "No active plan")
	case errors.Is(err, types.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, api.CodeProfileNotFound, "Profile not found")
	case errors.Is(err, ErrUpstream):
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeUpstream, "Upstream AI request failed")
	default:
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Feature request failed")
	}
}
