package storage

import (
	"context"

	"github.com/jwebster45206/village-mystery/pkg/state"
)

// Storage persists play sessions.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// LoadGameState returns nil, nil when the session does not exist.
	SaveGameState(ctx context.Context, id string, gs *state.GameState) error
	LoadGameState(ctx context.Context, id string) (*state.GameState, error)
	DeleteGameState(ctx context.Context, id string) error
}
