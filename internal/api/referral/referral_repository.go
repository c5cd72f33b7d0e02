package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefly-ai/briefly-api/internal/types"
)

var _ Repo = (*PostgresReferralRepo)(nil)

// Repo defines the persistence contract for referral bookkeeping.
type Repo interface {
	// RecordConversion books the referred user's conversion. Idempotent: a
	// second subscribe for the same referred user changes nothing.
	RecordConversion(ctx context.Context, referrerID, referredID uuid.UUID, codeUsed string) error
	// GetStats returns the user's share code with referred and converted
	// counts.
	GetStats(ctx context.Context, userID uuid.UUID) (*types.ReferralStats, error)
}

type PostgresReferralRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresReferralRepo(pgxpool *pgxpool.Pool, logger *slog.Logger) *PostgresReferralRepo {
	return &PostgresReferralRepo{
		logger: logger,
		pgpool: pgxpool,
	}
}

func (r *PostgresReferralRepo) RecordConversion(ctx context.Context, referrerID, referredID uuid.UUID, codeUsed string) error {
	// referred_id is unique, so replayed conversions are swallowed here.
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO referrals (referrer_id, referred_id, code_used, converted_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (referred_id) DO NOTHING`,
		referrerID, referredID, codeUsed)
	if err != nil {
		return fmt.Errorf("failed to record referral conversion: %w", err)
	}
	return nil
}

func (r *PostgresReferralRepo) GetStats(ctx context.Context, userID uuid.UUID) (*types.ReferralStats, error) {
	var stats types.ReferralStats

	err := r.pgpool.QueryRow(ctx,
		`SELECT u.referral_code,
		        (SELECT COUNT(*) FROM users ref
		          WHERE ref.referred_by = u.id AND ref.deleted_at IS NULL),
		        (SELECT COUNT(*) FROM referrals rf
		          WHERE rf.referrer_id = u.id AND rf.converted_at IS NOT NULL)
		 FROM users u
		 WHERE u.id = $1 AND u.deleted_at IS NULL`,
		userID,
	).Scan(&stats.ReferralCode, &stats.TotalReferred, &stats.Converted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load referral stats: %w", err)
	}
	return &stats, nil
}
