package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/briefly-ai/briefly-api/app/observability/metrics"
	"github.com/briefly-ai/briefly-api/internal/types"
)

var _ Repo = (*PostgresUsageRepo)(nil)

// PGXPool is the slice of the pgxpool API this repository needs. Narrowed so
// tests can substitute a pgxmock pool.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repo defines the persistence contract for the append-only usage log.
// Events are never updated or deleted; monthly counts are derived by range
// query.
type Repo interface {
	// InsertEvent appends one usage record. ID and CreatedAt are assigned by
	// the database and written back into the event.
	InsertEvent(ctx context.Context, event *types.UsageEvent) error
	CountEventsInRange(ctx context.Context, userID uuid.UUID, feature types.Feature, from, to time.Time) (int, error)
	ListEventsInRange(ctx context.Context, from, to time.Time) ([]types.UsageEvent, error)
}

type PostgresUsageRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresUsageRepo(pgxpool PGXPool, logger *slog.Logger) *PostgresUsageRepo {
	return &PostgresUsageRepo{
		logger: logger,
		pgpool: pgxpool,
	}
}

func (r *PostgresUsageRepo) InsertEvent(ctx context.Context, event *types.UsageEvent) error {
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO usage_events (user_id, feature, prompt_tokens, completion_tokens)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		event.UserID, string(event.Feature), event.PromptTokens, event.CompletionTokens,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to insert usage event: %w", err)
	}
	return nil
}

func (r *PostgresUsageRepo) CountEventsInRange(ctx context.Context, userID uuid.UUID, feature types.Feature, from, to time.Time) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_events
		 WHERE user_id = $1 AND feature = $2 AND created_at >= $3 AND created_at < $4`,
		userID, string(feature), from, to,
	).Scan(&count)
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return count, nil
}

func (r *PostgresUsageRepo) ListEventsInRange(ctx context.Context, from, to time.Time) ([]types.UsageEvent, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT id, user_id, feature, prompt_tokens, completion_tokens, created_at
		 FROM usage_events
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY created_at`,
		from, to)
	if err != nil {
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to list usage events: %w", err)
	}
	defer rows.Close()

	var events []types.UsageEvent
	for rows.Next() {
		var e types.UsageEvent
		var feature string
		if err := rows.Scan(&e.ID, &e.UserID, &feature, &e.PromptTokens, &e.CompletionTokens, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		e.Feature = types.Feature(feature)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage events: %w", err)
	}
	return events, nil
}
