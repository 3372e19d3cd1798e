package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/village-mystery/pkg/agent"
)

const DefaultLockTTL = 2 * time.Minute

// releaseScript deletes the lock only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker serializes turns per session across API processes.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ agent.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func lockKey(sessionID string) string {
	return fmt.Sprintf("turn-lock:%s", sessionID)
}

// Acquire takes the session lock or fails with agent.ErrTurnInProgress.
// The lock expires on its own if the holder dies.
func (l *RedisLocker) Acquire(ctx context.Context, sessionID string) (func(), error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(sessionID), owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire turn lock: %w", err)
	}
	if !ok {
		return nil, agent.ErrTurnInProgress
	}

	l.logger.Debug("Acquired turn lock", "session_id", sessionID, "owner", owner)
	return func() {
		// The turn's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{lockKey(sessionID)}, owner).Err(); err != nil {
			l.logger.Error("Failed to release turn lock", "session_id", sessionID, "error", err)
		}
	}, nil
}
