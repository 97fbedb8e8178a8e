package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
)

// RedisSessionRepository stores chat sessions as JSON values with a TTL, so
// idle chats expire on their own.
type RedisSessionRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSessionRepository constructs a Redis-backed session store.
func NewRedisSessionRepository(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisSessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSessionRepository{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (r *RedisSessionRepository) key(chatID string) string {
	return r.prefix + chatID
}

// Get retrieves and unmarshals the chat's session.
func (r *RedisSessionRepository) Get(ctx context.Context, chatID string) (*models.Session, error) {
	if r.client == nil {
		return nil, appErrors.ErrSessionMiss
	}

	raw, err := r.client.Get(ctx, r.key(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrSessionMiss
		}
		return nil, fmt.Errorf("redis get session %s: %w", chatID, err)
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		r.logger.Warn("dropping unreadable session", zap.String("chat_id", chatID), zap.Error(err))
		_ = r.client.Del(ctx, r.key(chatID)).Err()
		return nil, appErrors.ErrSessionMiss
	}
	return &session, nil
}

// Put marshals the session and stores it with the configured TTL.
func (r *RedisSessionRepository) Put(ctx context.Context, chatID string, session models.Session) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session for %s: %w", chatID, err)
	}

	if err := r.client.Set(ctx, r.key(chatID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", chatID, err)
	}
	return nil
}

// Delete removes the chat's session.
func (r *RedisSessionRepository) Delete(ctx context.Context, chatID string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.key(chatID)).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", chatID, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisSessionRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
