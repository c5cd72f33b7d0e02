package container

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/briefly-ai/briefly-api/app/db"
	"github.com/briefly-ai/briefly-api/app/email"
	"github.com/briefly-ai/briefly-api/config"
	"github.com/briefly-ai/briefly-api/internal/api/auth"
	"github.com/briefly-ai/briefly-api/internal/api/billing"
	"github.com/briefly-ai/briefly-api/internal/api/features"
	generativeAI "github.com/briefly-ai/briefly-api/internal/api/generative_ai"
	"github.com/briefly-ai/briefly-api/internal/api/plan"
	"github.com/briefly-ai/briefly-api/internal/api/referral"
	"github.com/briefly-ai/briefly-api/internal/api/usage"
	"github.com/briefly-ai/briefly-api/internal/api/user"
)

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	Logger          *slog.Logger
	Pool            *pgxpool.Pool
	AuthHandler     *auth.AuthHandler
	UserHandler     *user.HandlerImpl
	PlanHandler     *plan.HandlerImpl
	FeaturesHandler *features.HandlerImpl
	BillingHandler  *billing.HandlerImpl
	ReferralHandler *referral.HandlerImpl
	UsageHandler    *usage.Handler
}

// NewContainer initializes and returns a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	trialRules, quotaRules := plan.RulesFromConfig(&cfg.Plans)

	// Repositories
	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	userRepo := user.NewPostgresUserRepo(pool, logger)
	planRepo := plan.NewPostgresPlanRepo(pool, logger)
	usageRepo := usage.NewPostgresUsageRepo(pool, logger)
	referralRepo := referral.NewPostgresReferralRepo(pool, logger)

	// Services
	mailer := email.NewPostmarkMailer(cfg.Email, logger)
	var welcomeMailer auth.WelcomeMailer
	if mailer != nil {
		welcomeMailer = mailer
	}
	authService := auth.NewAuthService(authRepo, cfg, welcomeMailer, logger)

	referralService := referral.NewReferralService(referralRepo, logger)
	planService := plan.NewPlanService(planRepo, usageRepo, referralService, trialRules, quotaRules, cfg.Plans.PaidPeriodDays, logger)
	usageService := usage.NewUsageService(usageRepo, usage.PriceTableFromConfig(cfg.Pricing), logger)
	userService := user.NewUserService(userRepo, planService, trialRules, logger)

	llmClient, err := generativeAI.NewAIClient(ctx, cfg.Gemini, logger)
	if err != nil {
		logger.Error("Failed to initialize AI client", slog.Any("error", err))
		pool.Close()
		return nil, err
	}
	featuresService := features.NewFeaturesService(planService, usageService, llmClient, logger)
	billingService := billing.NewBillingService(planService, cfg.Stripe, logger)

	// Handlers
	return &Container{
		Config:          cfg,
		Logger:          logger,
		Pool:            pool,
		AuthHandler:     auth.NewAuthHandler(authService, logger),
		UserHandler:     user.NewHandlerImpl(userService, logger),
		PlanHandler:     plan.NewHandlerImpl(planService, logger),
		FeaturesHandler: features.NewHandlerImpl(featuresService, logger),
		BillingHandler:  billing.NewHandlerImpl(billingService, cfg.Stripe, logger),
		ReferralHandler: referral.NewHandlerImpl(referralService, logger),
		UsageHandler:    usage.NewUsageHandler(usageService, logger),
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations(connectionURL string) error {
	return database.RunMigrations(connectionURL, c.Logger)
}
