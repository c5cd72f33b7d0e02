package usage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefly-ai/briefly-api/internal/types"
)

func newMockRepo(t *testing.T) (*PostgresUsageRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresUsageRepo(mockPool, slog.Default()), mockPool
}

func TestInsertEvent(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	userID := uuid.New()
	eventID := uuid.New()
	createdAt := time.Now().UTC()

	mockPool.ExpectQuery(`INSERT INTO usage_events`).
		WithArgs(userID, "chat", 120, 80).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(eventID, createdAt))

	event := &types.UsageEvent{
		UserID:           userID,
		Feature:          types.FeatureChat,
		PromptTokens:     120,
		CompletionTokens: 80,
	}
	err := repo.InsertEvent(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, eventID, event.ID)
	assert.Equal(t, createdAt, event.CreatedAt)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCountEventsInRange(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	userID := uuid.New()
	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mockPool.ExpectQuery(`SELECT COUNT\(\*\) FROM usage_events`).
		WithArgs(userID, "video", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(29))

	count, err := repo.CountEventsInRange(context.Background(), userID, types.FeatureVideo, from, to)

	require.NoError(t, err)
	assert.Equal(t, 29, count)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestListEventsInRange(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	userID := uuid.New()
	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	at := from.Add(36 * time.Hour)

	mockPool.ExpectQuery(`SELECT id, user_id, feature, prompt_tokens, completion_tokens, created_at`).
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "user_id", "feature", "prompt_tokens", "completion_tokens", "created_at"}).
			AddRow(uuid.New(), userID, "url", 0, 0, at).
			AddRow(uuid.New(), userID, "chat", 100, 50, at.Add(time.Hour)))

	events, err := repo.ListEventsInRange(context.Background(), from, to)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.FeatureURL, events[0].Feature)
	assert.Equal(t, types.FeatureChat, events[1].Feature)
	assert.Equal(t, 100, events[1].PromptTokens)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
