package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"github.com/briefly-ai/briefly-api/config"
	"github.com/briefly-ai/briefly-api/internal/api"
)

// SetupOAuthProviders registers the social login providers with goth. Call
// once at startup before mounting the OAuth routes.
func SetupOAuthProviders(cfg config.OAuthConfig) {
	gothic.Store = sessions.NewCookieStore([]byte(cfg.SessionSecret))

	if cfg.GoogleClientKey != "" {
		goth.UseProviders(
			google.New(cfg.GoogleClientKey, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, "email", "profile"),
		)
	}

	// gothic reads the provider from the URL by default via a query param;
	// we route it as a chi path param instead.
	gothic.GetProviderName = func(r *http.Request) (string, error) {
		if provider := chi.URLParam(r, "provider"); provider != "" {
			return provider, nil
		}
		return "", errors.New("no oauth provider in request path")
	}
}

// BeginOAuth godoc
// @Summary      Begin OAuth Login
// @Description  Redirects to the provider's consent screen.
// @Tags         Auth
// @Param        provider path string true "OAuth provider" Enums(google)
// @Success      307 "Redirect to provider"
// @Router       /auth/{provider} [get]
func (h *AuthHandler) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	// If the user already has a valid session with this provider, skip the
	// consent screen and complete directly.
	if gothUser, err := gothic.CompleteUserAuth(w, r); err == nil {
		h.finishOAuth(w, r, gothUser)
		return
	}
	gothic.BeginAuthHandler(w, r)
}

// OAuthCallback godoc
// @Summary      OAuth Callback
// @Description  Completes the OAuth flow and returns API tokens.
// @Tags         Auth
// @Produce      json
// @Param        provider path string true "OAuth provider" Enums(google)
// @Success      200 {object} LoginResponse "Tokens"
// @Failure      401 {object} types.Response "OAuth Failed"
// @Router       /auth/{provider}/callback [get]
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	gothUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "OAuth completion failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusUnauthorized, api.CodeNotLoggedIn, "OAuth authentication failed")
		return
	}
	h.finishOAuth(w, r, gothUser)
}

func (h *AuthHandler) finishOAuth(w http.ResponseWriter, r *http.Request, gothUser goth.User) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "finishOAuth"), slog.String("provider", gothUser.Provider))

	profile, err := h.authService.GetOrCreateUserFromProvider(ctx, gothUser.Provider, gothUser)
	if err != nil {
		l.ErrorContext(ctx, "Failed to resolve provider user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to sign in")
		return
	}

	accessToken, refreshToken, err := h.authService.IssueTokens(ctx, profile)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue tokens", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, api.CodeInternal, "Failed to sign in")
		return
	}

	// Best effort; a stale gothic session only means a fresh consent screen
	// next time.
	_ = gothic.Logout(w, r)

	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Message:      "Login successful",
	})
}
