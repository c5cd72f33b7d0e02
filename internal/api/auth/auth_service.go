package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"golang.org/x/crypto/bcrypt"

	"github.com/briefly-ai/briefly-api/config"
	"github.com/briefly-ai/briefly-api/internal/types"
)

// Ensure implementation satisfies the interface
var _ AuthService = (*AuthServiceImpl)(nil)

// WelcomeMailer sends the signup welcome email. Send failures never fail the
// signup; the service logs and swallows them.
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, to, username string, trialDays int) error
}

// AuthService defines the business logic contract for authentication.
type AuthService interface {
	Register(ctx context.Context, username, email, password, referralCode string) (*types.Profile, error)
	Login(ctx context.Context, email, password string) (string, string, error)
	RefreshSession(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context, refreshToken string) error
	UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error
	GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*types.Profile, error)
	IssueTokens(ctx context.Context, profile *types.Profile) (string, string, error)
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepo
	cfg    *config.Config
	mailer WelcomeMailer
}

// NewAuthService creates a new auth service instance. mailer may be nil in
// tests; the welcome email is then skipped.
func NewAuthService(repo AuthRepo, cfg *config.Config, mailer WelcomeMailer, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		cfg:    cfg,
		mailer: mailer,
	}
}

// Register creates a new trial profile. A valid referral code switches the
// trial type to referral (longer trial) and links the referrer; an unknown
// code falls back to a normal trial rather than failing the signup.
func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password, referralCode string) (*types.Profile, error) {
	l := s.logger.With(slog.String("method", "Register"), slog.String("email", email))

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", types.ErrConflict)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("error checking existing user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	params := CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         "user",
		AccountCode:  generateAccountCode(),
		ReferralCode: generateReferralCode(),
		TrialType:    types.TrialTypeNormal,
	}

	if referralCode != "" {
		referrer, err := s.repo.FindReferrerByCode(ctx, referralCode)
		if err != nil {
			l.WarnContext(ctx, "Unknown referral code at signup, falling back to normal trial",
				slog.String("code", referralCode))
		} else {
			params.TrialType = types.TrialTypeReferral
			params.UsedReferralCode = &referralCode
			params.ReferredBy = &referrer.ID
		}
	}

	profile, err := s.repo.CreateUser(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.sendWelcomeEmail(ctx, profile)

	l.InfoContext(ctx, "User registered", slog.String("userID", profile.ID.String()),
		slog.String("trial_type", string(profile.TrialType)))
	return profile, nil
}

// Login authenticates a user and returns access and refresh tokens.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", "", fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	if user.PasswordHash == "" {
		// OAuth-only account
		return "", "", fmt.Errorf("password login not available: %w", types.ErrUnauthenticated)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	return s.IssueTokens(ctx, user)
}

// IssueTokens mints a JWT access token and stores a fresh opaque refresh token.
func (s *AuthServiceImpl) IssueTokens(ctx context.Context, profile *types.Profile) (string, string, error) {
	accessToken, err := s.generateAccessToken(profile)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken := uuid.NewString()
	expiresAt := time.Now().Add(s.cfg.JWT.RefreshTokenTTL)
	if err := s.repo.StoreRefreshToken(ctx, profile.ID.String(), refreshToken, expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// RefreshSession rotates the refresh token and mints a new access token.
func (s *AuthServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (string, string, error) {
	userID, err := s.repo.ValidateRefreshTokenAndGetUserID(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("error fetching user for refresh: %w", err)
	}

	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		return "", "", fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return s.IssueTokens(ctx, user)
}

func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("error during logout: %w", err)
	}
	return nil
}

func (s *AuthServiceImpl) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("current password mismatch: %w", types.ErrUnauthenticated)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}

	// Force re-login everywhere after a password change.
	return s.repo.InvalidateAllUserRefreshTokens(ctx, userID)
}

func (s *AuthServiceImpl) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	return s.repo.InvalidateAllUserRefreshTokens(ctx, userID)
}

// GetOrCreateUserFromProvider resolves a social login to a local profile,
// creating a trial profile on first sight.
func (s *AuthServiceImpl) GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*types.Profile, error) {
	l := s.logger.With(slog.String("method", "GetOrCreateUserFromProvider"), slog.String("provider", provider))

	if providerUser.Email == "" {
		return nil, fmt.Errorf("provider returned no email: %w", types.ErrUnauthenticated)
	}

	user, err := s.repo.GetUserByEmail(ctx, providerUser.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("error looking up provider user: %w", err)
	}

	username := providerUser.NickName
	if username == "" {
		username = providerUser.Name
	}

	profile, err := s.repo.CreateUser(ctx, CreateUserParams{
		Username:     username,
		Email:        providerUser.Email,
		Role:         "user",
		AccountCode:  generateAccountCode(),
		ReferralCode: generateReferralCode(),
		TrialType:    types.TrialTypeNormal,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user from provider: %w", err)
	}

	s.sendWelcomeEmail(ctx, profile)

	l.InfoContext(ctx, "User created from provider", slog.String("userID", profile.ID.String()))
	return profile, nil
}

func (s *AuthServiceImpl) sendWelcomeEmail(ctx context.Context, profile *types.Profile) {
	if s.mailer == nil {
		return
	}

	// Same config source the plan calculator and feature gate read from.
	trialDays := s.cfg.Plans.TrialDaysNormal
	if profile.TrialType == types.TrialTypeReferral {
		trialDays = s.cfg.Plans.TrialDaysReferral
	}

	if err := s.mailer.SendWelcome(ctx, profile.Email, profile.Username, trialDays); err != nil {
		s.logger.WarnContext(ctx, "Failed to send welcome email",
			slog.String("email", profile.Email), slog.Any("error", err))
	}
}

func (s *AuthServiceImpl) generateAccessToken(profile *types.Profile) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   profile.ID.String(),
		Username: profile.Username,
		Email:    profile.Email,
		Role:     profile.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.JWT.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.JWT.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTokenTTL)),
			Subject:   profile.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.SecretKey))
}
