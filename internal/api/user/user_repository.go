package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefly-ai/briefly-api/internal/types"
)

var _ Repo = (*PostgresUserRepo)(nil)

// Repo defines the persistence contract for profile management.
type Repo interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	// UpdateProfile applies a partial update; nil fields are left untouched.
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.Profile, error)
	// SoftDelete marks the profile deleted. The row and its usage history
	// are kept.
	SoftDelete(ctx context.Context, userID uuid.UUID) error
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresUserRepo(pgxpool *pgxpool.Pool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgxpool,
	}
}

const profileColumns = `
	id, username, email, role, account_code,
	COALESCE(trial_type, ''), registered_at, plan_status, plan_tier,
	plan_started_at, plan_valid_until, cancel_requested, referral_code,
	used_referral_code, referred_by, created_at, updated_at`

func scanProfile(row pgx.Row) (*types.Profile, error) {
	var p types.Profile
	var tier *string
	err := row.Scan(
		&p.ID, &p.Username, &p.Email, &p.Role, &p.AccountCode,
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

func (r *PostgresUserRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`,
		userID)
	return scanProfile(row)
}

func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.Profile, error) {
	sets := []string{"updated_at = now()"}
	args := []any{userID}

	if params.Username != nil {
		args = append(args, *params.Username)
		sets = append(sets, fmt.Sprintf("username = $%d", len(args)))
	}
	if params.Email != nil {
		args = append(args, *params.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}

	row := r.pgpool.QueryRow(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+`
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+profileColumns,
		args...)
	return scanProfile(row)
}

func (r *PostgresUserRepo) SoftDelete(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile not found for delete: %w", types.ErrNotFound)
	}
	return nil
}
