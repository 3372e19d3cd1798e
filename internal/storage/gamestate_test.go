package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/village-mystery/pkg/state"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newSession(t *testing.T, id string) *state.GameState {
	t.Helper()
	eng := world.NewEngine(world.Village())
	_, _, err := world.NewAdapter(eng).Step("take money")
	require.NoError(t, err)
	gs := state.NewGameState(id, eng.Snapshot(), 3)
	gs.Narrator.Append("take money", "You pick up the money.")
	gs.NPC("villager").Append("hello", "Good day.")
	gs.Turn = 1
	return gs
}

func TestRedisStorage_SaveAndLoad(t *testing.T) {
	_, client := setupRedis(t)
	s := NewRedisStorage(client, time.Hour, discard())
	ctx := context.Background()

	gs := newSession(t, "s1")
	require.NoError(t, s.SaveGameState(ctx, "s1", gs))

	loaded, err := s.LoadGameState(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "s1", loaded.ID)
	assert.Equal(t, 1, loaded.Turn)
	assert.Equal(t, 3, loaded.NPCHistoryLimit)
	assert.Equal(t, 1, loaded.Narrator.Len())
	assert.Equal(t, 1, loaded.NPC("villager").Len())

	a := world.NewAdapter(world.NewEngine(world.Village()).Restore(loaded.World))
	assert.Equal(t, []string{"money"}, a.Inventory())
	assert.Equal(t, "Home", a.Location())
}

func TestRedisStorage_LoadMissing(t *testing.T) {
	_, client := setupRedis(t)
	s := NewRedisStorage(client, 0, discard())

	gs, err := s.LoadGameState(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, gs)
}

func TestRedisStorage_Delete(t *testing.T) {
	_, client := setupRedis(t)
	s := NewRedisStorage(client, 0, discard())
	ctx := context.Background()

	require.NoError(t, s.SaveGameState(ctx, "s1", newSession(t, "s1")))
	require.NoError(t, s.DeleteGameState(ctx, "s1"))

	gs, err := s.LoadGameState(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, gs)

	// Deleting twice is fine.
	assert.NoError(t, s.DeleteGameState(ctx, "s1"))
}

func TestRedisStorage_TTL(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStorage(client, time.Minute, discard())
	ctx := context.Background()

	require.NoError(t, s.SaveGameState(ctx, "s1", newSession(t, "s1")))
	assert.Equal(t, time.Minute, mr.TTL(gameStateKey("s1")))

	mr.FastForward(2 * time.Minute)
	gs, err := s.LoadGameState(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, gs)
}

func TestRedisStorage_CorruptState(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStorage(client, 0, discard())

	require.NoError(t, mr.Set(gameStateKey("s1"), "{not json"))
	_, err := s.LoadGameState(context.Background(), "s1")
	assert.Error(t, err)
}

func TestRedisStorage_OutdatedVersion(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStorage(client, 0, discard())

	tests := map[string]string{
		"older version": `{"version":0,"state":{"id":"s1","turn":3}}`,
		"bare state":    `{"id":"s1","turn":3}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, mr.Set(gameStateKey("s1"), raw))
			gs, err := s.LoadGameState(context.Background(), "s1")
			require.NoError(t, err)
			assert.Nil(t, gs)
		})
	}
}

func TestRedisStorage_SaveNil(t *testing.T) {
	_, client := setupRedis(t)
	s := NewRedisStorage(client, 0, discard())
	assert.Error(t, s.SaveGameState(context.Background(), "s1", nil))
}

func TestRedisStorage_PingAndWait(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStorage(client, 0, discard())
	ctx := context.Background()

	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.WaitForConnection(ctx, 3, time.Millisecond))

	mr.Close()
	assert.Error(t, s.Ping(ctx))
	assert.Error(t, s.WaitForConnection(ctx, 2, time.Millisecond))
}

func TestNewRedisClient(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantAddr string
		wantErr  bool
	}{
		{name: "bare address", url: "localhost:6379", wantAddr: "localhost:6379"},
		{name: "redis url", url: "redis://redis:6380/2", wantAddr: "redis:6380"},
		{name: "bad scheme", url: "http://redis:6379", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRedisClient(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = client.Close() }()
			assert.Equal(t, tt.wantAddr, client.Options().Addr)
		})
	}
}
