package events

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

	"github.com/jwebster45206/village-mystery/pkg/agent"
)

func setupBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBroadcaster_PublishSubscribe(t *testing.T) {
	b := setupBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := b.Subscribe(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "other", agent.EventTurnStarted, nil))
	require.NoError(t, b.Publish(ctx, "s1", agent.EventTurnCompleted, map[string]any{"location": "Shop"}))

	select {
	case ev := <-events:
		assert.Equal(t, agent.EventTurnCompleted, ev.Type)
		assert.Equal(t, "s1", ev.SessionID)
		assert.Equal(t, "Shop", ev.Data["location"])
		assert.NotEmpty(t, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close")
	}
}

func TestBroadcaster_PublishWithoutRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer func() { _ = client.Close() }()
	b := NewBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Error(t, b.Publish(context.Background(), "s1", agent.EventTurnStarted, nil))
}
