package referral

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/api/auth"
	"github.com/briefly-ai/briefly-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetStats(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	referralService Service
	logger          *slog.Logger
}

// NewHandlerImpl creates a new referral HandlerImpl instance.
func NewHandlerImpl(referralService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		referralService: referralService,
		logger:          logger,
	}
}

// GetStats godoc
// @Summary      Referral Stats
// @Description  Returns the user's share code with referred and converted counts.
// @Tags         Referrals
// @Produce      json
// @Success      200 {object} types.ReferralStats
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /referrals/stats [get]
func (h *HandlerImpl) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetStats"))

	userIDStr, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userIDStr == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, api.CodeNotLoggedIn, "Authentication required")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "Invalid user ID format")
		return
	}

	stats, err := h.referralService.GetStats(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load referral stats", slog.Any("error", err))
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, api.CodeProfileNotFound, "Profile not found")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to load referral stats")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, stats)
}
