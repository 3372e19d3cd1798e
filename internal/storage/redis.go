package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/village-mystery/pkg/storage"
)

const DefaultSessionTTL = 24 * time.Hour

// RedisStorage keeps play sessions in Redis. Every key expires after the
// session TTL and is refreshed on save.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisClient parses a redis:// URL. A bare host:port is accepted too.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if !strings.Contains(redisURL, "://") {
		return redis.NewClient(&redis.Options{Addr: redisURL}), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStorage {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Client exposes the underlying connection so the memory store, the turn
// lock and the broadcaster can share it.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}
