package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefly-ai/briefly-api/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// CreateUserParams carries everything needed to create a profile row at
// signup. TrialType and the referral linkage are derived by the service from
// the presence of a referral code.
type CreateUserParams struct {
	Username         string
	Email            string
	PasswordHash     string
	Role             string
	AccountCode      string
	ReferralCode     string
	TrialType        types.TrialType
	UsedReferralCode *string
	ReferredBy       *uuid.UUID
}

// AuthRepo defines the persistence contract for authentication operations.
type AuthRepo interface {
	GetUserByEmail(ctx context.Context, email string) (*types.Profile, error)
	GetUserByID(ctx context.Context, userID string) (*types.Profile, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*types.Profile, error)
	// FindReferrerByCode resolves a share code to the owning profile.
	FindReferrerByCode(ctx context.Context, code string) (*types.Profile, error)
	StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error)
	InvalidateRefreshToken(ctx context.Context, refreshToken string) error
	InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, newHashedPassword string) error
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresAuthRepo(pgxpool *pgxpool.Pool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgxpool,
	}
}

const userColumns = `
	id, username, email, COALESCE(password_hash, ''), role, account_code,
	COALESCE(trial_type, ''), registered_at, plan_status, plan_tier,
	plan_started_at, plan_valid_until, cancel_requested, referral_code,
	used_referral_code, referred_by, created_at, updated_at`

func scanUser(row pgx.Row) (*types.Profile, error) {
	var p types.Profile
	var tier *string
	err := row.Scan(
		&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.Role, &p.AccountCode,
		&p.TrialType, &p.RegisteredAt, &p.PlanStatus, &tier,
		&p.PlanStartedAt, &p.PlanValidUntil, &p.CancelRequested, &p.ReferralCode,
		&p.UsedReferralCode, &p.ReferredBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if tier != nil {
		t := types.PlanTier(*tier)
		p.PlanTier = &t
	}
	return &p, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.Profile, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND deleted_at IS NULL`,
		email)
	return scanUser(row)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID string) (*types.Profile, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`,
		userID)
	return scanUser(row)
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, params CreateUserParams) (*types.Profile, error) {
	var passwordHash *string
	if params.PasswordHash != "" {
		passwordHash = &params.PasswordHash
	}

	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, role, account_code,
		                    trial_type, referral_code, used_referral_code, referred_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+userColumns,
		params.Username, params.Email, passwordHash, params.Role, params.AccountCode,
		string(params.TrialType), params.ReferralCode, params.UsedReferralCode, params.ReferredBy)

	profile, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return profile, nil
}

func (r *PostgresAuthRepo) FindReferrerByCode(ctx context.Context, code string) (*types.Profile, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = $1 AND deleted_at IS NULL`,
		code)
	return scanUser(row)
}

func (r *PostgresAuthRepo) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error) {
	var userID string
	var expiresAt time.Time
	var invalidatedAt *time.Time

	err := r.pgpool.QueryRow(ctx,
		`SELECT user_id, expires_at, invalidated_at FROM refresh_tokens WHERE token = $1`,
		refreshToken).Scan(&userID, &expiresAt, &invalidatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("refresh token not found: %w", types.ErrUnauthenticated)
		}
		return "", fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if time.Now().After(expiresAt) || invalidatedAt != nil {
		return "", fmt.Errorf("refresh token expired or invalidated: %w", types.ErrUnauthenticated)
	}
	return userID, nil
}

func (r *PostgresAuthRepo) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET invalidated_at = now() WHERE token = $1 AND invalidated_at IS NULL`,
		refreshToken)
	if err != nil {
		return fmt.Errorf("failed to invalidate refresh token: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET invalidated_at = now() WHERE user_id = $1 AND invalidated_at IS NULL`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to invalidate refresh tokens: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID, newHashedPassword string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		userID, newHashedPassword)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found for password update: %w", types.ErrNotFound)
	}
	return nil
}
