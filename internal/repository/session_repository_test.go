package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestMemorySessionRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(0, 0)

	_, err := repo.Get(ctx, "chat-1")
	assert.True(t, errors.Is(err, appErrors.ErrSessionMiss))

	results := []models.BatchRecord{{ID: "1", Title: "Physics Batch"}}
	require.NoError(t, repo.Put(ctx, "chat-1", models.NewResultsSession(results, time.Now())))

	session, err := repo.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.True(t, session.HasResults())
	assert.Equal(t, results, session.Results)

	require.NoError(t, repo.Put(ctx, "chat-1", models.NewSelectedSession(results[0], time.Now())))
	session, err = repo.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.True(t, session.HasSelection())

	require.NoError(t, repo.Delete(ctx, "chat-1"))
	_, err = repo.Get(ctx, "chat-1")
	assert.True(t, errors.Is(err, appErrors.ErrSessionMiss))
}

func TestMemorySessionRepositoryExpires(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := NewMemorySessionRepository(time.Hour, 0)
	repo.now = clock.Now

	require.NoError(t, repo.Put(ctx, "chat-1", models.NewResultsSession(nil, clock.now)))
	clock.now = clock.now.Add(59 * time.Minute)
	_, err := repo.Get(ctx, "chat-1")
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = repo.Get(ctx, "chat-1")
	assert.True(t, errors.Is(err, appErrors.ErrSessionMiss))
	assert.Zero(t, repo.Len())
}

func TestMemorySessionRepositoryEvictsOldest(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := NewMemorySessionRepository(0, 2)
	repo.now = clock.Now

	for _, chat := range []string{"a", "b"} {
		require.NoError(t, repo.Put(ctx, chat, models.NewResultsSession(nil, clock.now)))
		clock.now = clock.now.Add(time.Minute)
	}
	require.NoError(t, repo.Put(ctx, "a", models.NewResultsSession(nil, clock.now)))
	clock.now = clock.now.Add(time.Minute)
	require.NoError(t, repo.Put(ctx, "c", models.NewResultsSession(nil, clock.now)))

	assert.Equal(t, 2, repo.Len())
	_, err := repo.Get(ctx, "b")
	assert.True(t, errors.Is(err, appErrors.ErrSessionMiss))
	_, err = repo.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = repo.Get(ctx, "c")
	assert.NoError(t, err)
}

func newRedisSessionRepo(t *testing.T, ttl time.Duration) (*RedisSessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := NewRedisSessionRepository(client, "test:session:", ttl, zap.NewNop())
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func TestRedisSessionRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRedisSessionRepo(t, time.Hour)

	_, err := repo.Get(ctx, "42")
	assert.True(t, errors.Is(err, appErrors.ErrSessionMiss))

	record := models.BatchRecord{ID: "7", Title: "Chemistry Batch"}
	require.NoError(t, repo.Put(ctx, "42", models.NewSelectedSession(record, time.Now())))
	assert.True(t, mr.Exists("test:session:42"))

	session, err := repo.Get(ctx, "42")
	require.NoError(t, err)
	require.True(t, session.HasSelection())
	assert.Equal(t, record, *session.Selected)

	mr.FastForward(2 * time.Hour)
	_, err = repo.Get(ctx, "42")
	assert.True(t, errors.Is(err, appErrors.ErrSessionMiss))
}

func TestRedisSessionRepositoryDropsCorruptValues(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRedisSessionRepo(t, 0)
	require.NoError(t, mr.Set("test:session:9", "{not json"))

	_, err := repo.Get(ctx, "9")
	assert.True(t, errors.Is(err, appErrors.ErrSessionMiss))
	assert.False(t, mr.Exists("test:session:9"))

	require.NoError(t, repo.Put(ctx, "9", models.NewResultsSession(nil, time.Now())))
	require.NoError(t, repo.Delete(ctx, "9"))
	assert.False(t, mr.Exists("test:session:9"))
}
