package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/briefly-ai/briefly-api/internal/api"
	"github.com/briefly-ai/briefly-api/internal/types"
)

type AuthHandler struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register godoc
// @Summary      Register
// @Description  Creates a new trial profile. An optional referral code grants the longer referral trial.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body RegisterRequest true "Registration details"
// @Success      201 {object} types.Response "User Registered"
// @Failure      400 {object} types.Response "Invalid Input"
// @Failure      409 {object} types.Response "Email Taken"
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "username, email and password are required")
		return
	}
	if len(req.Password) < 8 {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "password must be at least 8 characters")
		return
	}

	profile, err := h.authService.Register(ctx, req.Username, req.Email, req.Password, req.ReferralCode)
	if err != nil {
		l.ErrorContext(ctx, "Registration failed", slog.Any("error", err))
		if errors.Is(err, types.ErrConflict) {
			api.ErrorResponse(w, r, http.StatusConflict, api.CodeValidation, "Email already registered")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to register user")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{
		"success":       true,
		"message":       "User registered successfully",
		"account_code":  profile.AccountCode,
		"referral_code": profile.ReferralCode,
	})
}

// Login godoc
// @Summary      Login
// @Description  Authenticates a user and returns access and refresh tokens.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body LoginRequest true "Credentials"
// @Success      200 {object} LoginResponse "Tokens"
// @Failure      401 {object} types.Response "Invalid Credentials"
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "email and password are required")
		return
	}

	accessToken, refreshToken, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		l.WarnContext(ctx, "Login failed", slog.String("email", req.Email), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusUnauthorized, api.CodeNotLoggedIn, "Authentication failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Message:      "Login successful",
	})
}

// RefreshSession godoc
// @Summary      Refresh Tokens
// @Description  Rotates the refresh token and mints a new access token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body RefreshTokenRequest true "Refresh token"
// @Success      200 {object} TokenResponse "New Tokens"
// @Failure      401 {object} types.Response "Invalid Refresh Token"
// @Router       /auth/refresh [post]
func (h *AuthHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "RefreshSession"))

	var req RefreshTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if req.RefreshToken == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "refresh_token is required")
		return
	}

	accessToken, refreshToken, err := h.authService.RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		l.WarnContext(ctx, "Token refresh failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusUnauthorized, api.CodeNotLoggedIn, "Invalid refresh token")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// Logout godoc
// @Summary      Logout
// @Description  Invalidates the presented refresh token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body LogoutRequest true "Refresh token"
// @Success      200 {object} types.Response "Logged Out"
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LogoutRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}

	if err := h.authService.Logout(ctx, req.RefreshToken); err != nil {
		h.logger.ErrorContext(ctx, "Logout failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to logout")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "Logged out successfully"})
}

// UpdatePassword godoc
// @Summary      Update Password
// @Description  Changes the authenticated user's password and invalidates all refresh tokens.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body ChangePasswordRequest true "Old and new password"
// @Success      200 {object} types.Response "Password Updated"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /auth/update-password [put]
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdatePassword"))

	userID, ok := GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, api.CodeNotLoggedIn, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, err.Error())
		return
	}
	if len(req.NewPassword) < 8 {
		api.ErrorResponse(w, r, http.StatusBadRequest, api.CodeValidation, "new password must be at least 8 characters")
		return
	}

	if err := h.authService.UpdatePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
		l.ErrorContext(ctx, "Password update failed", slog.Any("error", err))
		if errors.Is(err, types.ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, api.CodeNotLoggedIn, "Current password is incorrect")
		} else {
			api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to update password")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true, Message: "Password updated successfully"})
}
