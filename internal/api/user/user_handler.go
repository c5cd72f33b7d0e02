package user

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/api/auth"
	"github.com/briefly-ai/briefly-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetProfile(w http.ResponseWriter, r *http.Request)
	UpdateProfile(w http.ResponseWriter, r *http.Request)
	DeleteProfile(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

// NewHandlerImpl creates a new user HandlerImpl instance.
func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

func userIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
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

// GetProfile godoc
// @Summary      Get Profile
// @Description  Returns the authenticated user's profile with derived plan state and video quota.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.ProfileView "Profile"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      404 {object} types.Response "Profile Not Found"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /user/profile [get]
func (h *HandlerImpl) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetProfile"))

	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	view, err := h.userService.GetProfileView(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to get profile", slog.Any("error", err))
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, api.CodeProfileNotFound, "Profile not found")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to retrieve profile")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

// UpdateProfile godoc
// @Summary      Update Profile
// @Description  Applies a partial update to the authenticated user's profile.
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        request body types.UpdateProfileParams true "Fields to update"
// @Success      200 {object} types.Profile "Updated Profile"
// @Failure      400 {object} types.Response "Invalid Request"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      404 {object} types.Response "Profile Not Found"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /user/profile [put]
func (h *HandlerImpl) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateProfile"))

	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var params types.UpdateProfileParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if params.Username == nil && params.Email == nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "No fields to update")
		return
	}
	if params.Username != nil && strings.TrimSpace(*params.Username) == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "Username cannot be empty")
		return
	}
	if params.Email != nil && !strings.Contains(*params.Email, "@") {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "Invalid email address")
		return
	}

	profile, err := h.userService.UpdateProfile(ctx, userID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err))
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, api.CodeProfileNotFound, "Profile not found")
		} else if errors.Is(err, types.ErrConflict) {
			api.ErrorResponse(w, r, http.StatusConflict, api.CodeValidation, "Email already in use")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to update profile")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

// DeleteProfile godoc
// @Summary      Delete Profile
// @Description  Soft-deletes the authenticated user's account. Usage history is retained for billing records.
// @Tags         User
// @Produce      json
// @Success      204 "Deleted"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      404 {object} types.Response "Profile Not Found"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /user/profile [delete]
func (h *HandlerImpl) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "DeleteProfile"))

	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.userService.DeleteProfile(ctx, userID); err != nil {
		l.ErrorContext(ctx, "Failed to delete profile", slog.Any("error", err))
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, api.CodeProfileNotFound, "Profile not found")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to delete profile")
		}
		return
	}

	l.InfoContext(ctx, "Profile deleted", slog.String("userID", userID.String()))
	w.WriteHeader(http.StatusNoContent)
}
