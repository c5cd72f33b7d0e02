package plan

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

var _ Repo = (*PostgresPlanRepo)(nil)

// Repo defines the persistence contract for plan operations.
type Repo interface {
	// GetProfileByID returns the profile row for a non-deleted user.
	// Returns types.ErrNotFound if the user doesn't exist or is soft-deleted.
	GetProfileByID(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	// SetPaidPlan marks the profile paid with the given tier and validity window.
	SetPaidPlan(ctx context.Context, userID uuid.UUID, tier types.PlanTier, startedAt, validUntil time.Time) error
	// SetTier changes the tier of an already-paid profile.
	SetTier(ctx context.Context, userID uuid.UUID, tier types.PlanTier) error
	// SetCancelRequested flags the profile for non-renewal. Plan fields are
	// untouched; access runs out via plan_valid_until.
	SetCancelRequested(ctx context.Context, userID uuid.UUID) error
	// ClearPaidPlan reverts the profile to trial status (subscription gone
	// at the payment provider).
	ClearPaidPlan(ctx context.Context, userID uuid.UUID) error
}

type PostgresPlanRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresPlanRepo(pgxpool *pgxpool.Pool, logger *slog.Logger) *PostgresPlanRepo {
	return &PostgresPlanRepo{
		logger: logger,
		pgpool: pgxpool,
	}
}

const profileColumns = `
	id, username, email, COALESCE(password_hash, ''), role, account_code,
	COALESCE(trial_type, ''), registered_at, plan_status, plan_tier,
	plan_started_at, plan_valid_until, cancel_requested, referral_code,
	used_referral_code, referred_by, created_at, updated_at`

func scanProfile(row pgx.Row) (*types.Profile, error) {
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
			return nil, fmt.Errorf("profile not found: %w", types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	if tier != nil {
		t := types.PlanTier(*tier)
		p.PlanTier = &t
	}
	return &p, nil
}

func (r *PostgresPlanRepo) GetProfileByID(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`,
		userID)
	return scanProfile(row)
}

func (r *PostgresPlanRepo) SetPaidPlan(ctx context.Context, userID uuid.UUID, tier types.PlanTier, startedAt, validUntil time.Time) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users
		 SET plan_status = 'paid', plan_tier = $2, plan_started_at = $3,
		     plan_valid_until = $4, cancel_requested = FALSE, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		userID, string(tier), startedAt, validUntil)
	if err != nil {
		return fmt.Errorf("failed to set paid plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile not found for plan update: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresPlanRepo) SetTier(ctx context.Context, userID uuid.UUID, tier types.PlanTier) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET plan_tier = $2, updated_at = now()
		 WHERE id = $1 AND plan_status = 'paid' AND deleted_at IS NULL`,
		userID, string(tier))
	if err != nil {
		return fmt.Errorf("failed to set plan tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("paid profile not found for tier change: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresPlanRepo) SetCancelRequested(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET cancel_requested = TRUE, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to flag cancellation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile not found for cancellation: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresPlanRepo) ClearPaidPlan(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users
		 SET plan_status = 'trial', plan_tier = NULL, plan_started_at = NULL,
		     plan_valid_until = NULL, cancel_requested = FALSE, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to clear paid plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile not found for plan clear: %w", types.ErrNotFound)
	}
	return nil
}
