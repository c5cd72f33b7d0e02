package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/briefly-ai/briefly-api/config"
	"github.com/briefly-ai/briefly-api/internal/api/auth"
	"github.com/briefly-ai/briefly-api/internal/container"
)

// SetupRouter wires every API route onto a chi router. Server-wide middleware
// (requestID, logger, recoverer) is applied before mounting this in main.go.
func SetupRouter(c *container.Container, jwtCfg config.JWTConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	authenticate := auth.Authenticate(c.Logger, jwtCfg)

	r.Route("/api/v1", func(r chi.Router) {

		// --- Public routes ---
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", c.AuthHandler.Register)
			r.Post("/auth/login", c.AuthHandler.Login)
			r.Post("/auth/refresh", c.AuthHandler.RefreshSession)

			r.Get("/auth/{provider}", c.AuthHandler.BeginOAuth)
			r.Get("/auth/{provider}/callback", c.AuthHandler.OAuthCallback)

			// Stripe authenticates itself through the signature header.
			r.Post("/billing/webhook", c.BillingHandler.Webhook)
		})

		// --- Protected routes ---
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/auth/logout", c.AuthHandler.Logout)
			r.Put("/auth/update-password", c.AuthHandler.UpdatePassword)

			r.Get("/user/profile", c.UserHandler.GetProfile)
			r.Put("/user/profile", c.UserHandler.UpdateProfile)
			r.Delete("/user/profile", c.UserHandler.DeleteProfile)

			r.Get("/plan", c.PlanHandler.GetPlan)
			r.Post("/plan/subscribe", c.PlanHandler.Subscribe)
			r.Post("/plan/upgrade", c.PlanHandler.Upgrade)
			r.Post("/plan/downgrade", c.PlanHandler.Downgrade)
			r.Post("/plan/cancel", c.PlanHandler.Cancel)

			r.Post("/features/url/summarize", c.FeaturesHandler.SummarizeURL)
			r.Post("/features/vision/caption", c.FeaturesHandler.CaptionImage)
			r.Post("/features/chat", c.FeaturesHandler.Chat)
			r.Post("/features/video/transcribe", c.FeaturesHandler.TranscribeVideo)

			r.Post("/billing/checkout", c.BillingHandler.Checkout)
			r.Post("/billing/confirm", c.BillingHandler.Confirm)

			r.Get("/referrals/stats", c.ReferralHandler.GetStats)
		})

		// --- Admin routes ---
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(auth.RequireRole(c.Logger, "admin"))

			r.Get("/admin/usage/summary", c.UsageHandler.GetSummary)
			r.Get("/admin/usage/summary/{month}", c.UsageHandler.GetMonthSummary)
			r.Get("/admin/usage/top", c.UsageHandler.GetTopUsers)
			r.Get("/admin/usage/dashboard", c.UsageHandler.GetDashboard)
			r.Post("/admin/usage/aggregate", c.UsageHandler.AggregateBatch)
		})
	})

	return r
}
