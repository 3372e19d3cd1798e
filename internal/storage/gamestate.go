package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/village-mystery/pkg/state"
)

// stateVersion is bumped whenever GameState changes incompatibly. Sessions
// written under another version are dropped and the player starts over.
const stateVersion = 1

type storedState struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"saved_at"`
	State   *state.GameState `json:"state"`
}

func gameStateKey(id string) string {
	return "gamestate:" + id
}

// SaveGameState writes the session and refreshes its TTL.
func (r *RedisStorage) SaveGameState(ctx context.Context, id string, gs *state.GameState) error {
	if gs == nil {
		return errors.New("gamestate cannot be nil")
	}
	data, err := json.Marshal(storedState{Version: stateVersion, SavedAt: time.Now().UTC(), State: gs})
	if err != nil {
		r.logger.Error("Failed to marshal gamestate", "session_id", id, "error", err)
		return fmt.Errorf("failed to marshal gamestate: %w", err)
	}

	if err := r.client.Set(ctx, gameStateKey(id), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save gamestate", "session_id", id, "error", err)
		return fmt.Errorf("failed to save gamestate: %w", err)
	}
	return nil
}

// LoadGameState returns nil, nil for unknown, expired or outdated sessions.
func (r *RedisStorage) LoadGameState(ctx context.Context, id string) (*state.GameState, error) {
	data, err := r.client.Get(ctx, gameStateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Gamestate not found", "session_id", id)
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to load gamestate", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to load gamestate: %w", err)
	}

	var stored storedState
	if err := json.Unmarshal(data, &stored); err != nil {
		r.logger.Error("Failed to unmarshal gamestate", "session_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal gamestate: %w", err)
	}
	if stored.Version != stateVersion || stored.State == nil {
		r.logger.Warn("Discarding gamestate with unsupported version",
			"session_id", id,
			"version", stored.Version,
			"want", stateVersion)
		return nil, nil
	}
	return stored.State, nil
}

func (r *RedisStorage) DeleteGameState(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, gameStateKey(id)).Err(); err != nil {
		r.logger.Error("Failed to delete gamestate", "session_id", id, "error", err)
		return fmt.Errorf("failed to delete gamestate: %w", err)
	}
	return nil
}
