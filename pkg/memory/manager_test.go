package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/village-mystery/pkg/oracle"
	"github.com/jwebster45206/village-mystery/pkg/oracle/oracletest"
	"github.com/jwebster45206/village-mystery/pkg/prompts"
)

const clue = "The drunker saw the vendor near the well at night."

func extractReply(records ...map[string]any) string {
	if records == nil {
		records = []map[string]any{}
	}
	return oracletest.Reply(map[string]any{"records": records}, "Looking for clues.")
}

func clueRecord() map[string]any {
	return map[string]any{
		"character":   "drunker",
		"memory_type": "dialogue",
		"summary":     clue,
		"raw_input":   "I saw him by the well, hic.",
		"keywords":    []string{"vendor", "well", "night"},
	}
}

func queryReply(sentence string, keywords ...string) string {
	return oracletest.Reply(map[string]any{
		"character":   map[string]any{"filter": true, "value": "drunker"},
		"memory_type": map[string]any{"filter": false, "value": ""},
		"keywords":    map[string]any{"filter": len(keywords) > 0, "value": keywords},
		"sentence":    sentence,
	})
}

func newTestManager(llm *oracletest.MockLLM, store Store) *Manager {
	return NewManager(oracle.New(llm, oracle.WithRetryDelay(0)), store, NewHashEmbedder(),
		WithStoreRetryDelay(0))
}

func TestManager_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	llm := oracletest.NewMockLLM().
		On(prompts.TaskMemoryExtract, extractReply(clueRecord())).
		On(prompts.TaskMemoryQuery, queryReply(clue, "well"))
	m := newTestManager(llm, store)

	require.NoError(t, m.Record(ctx, "Player: Did you see anything?\nDrunker: I saw him by the well, hic."))
	assert.Equal(t, 1, store.Len())

	got, err := m.Retrieve(ctx, "what did the drunker see?", "what the drunker saw")
	require.NoError(t, err)
	assert.Equal(t, clue, got)
}

func TestManager_RetrieveNotFound(t *testing.T) {
	llm := oracletest.NewMockLLM().On(prompts.TaskMemoryQuery, queryReply("anything about rope", "rope"))
	m := newTestManager(llm, NewMemStore())

	got, err := m.Retrieve(context.Background(), "rope?", "rope")
	require.NoError(t, err)
	assert.Equal(t, NotFound, got)
}

func TestManager_RetrieveMalformed(t *testing.T) {
	t.Run("prose instead of json", func(t *testing.T) {
		llm := oracletest.NewMockLLM().On(prompts.TaskMemoryQuery, "I think the drunker knows.")
		m := newTestManager(llm, NewMemStore())
		got, err := m.Retrieve(context.Background(), "x", "y")
		assert.ErrorIs(t, err, oracle.ErrMalformedResponse)
		assert.Empty(t, got)
	})

	t.Run("unknown character filter", func(t *testing.T) {
		llm := oracletest.NewMockLLM().On(prompts.TaskMemoryQuery, oracletest.Reply(map[string]any{
			"character":   map[string]any{"filter": true, "value": "mayor"},
			"memory_type": map[string]any{"filter": false, "value": ""},
			"keywords":    map[string]any{"filter": false, "value": []string{}},
			"sentence":    "the mayor",
		}))
		m := newTestManager(llm, NewMemStore())
		_, err := m.Retrieve(context.Background(), "x", "y")
		assert.ErrorIs(t, err, oracle.ErrMalformedResponse)
		assert.Equal(t, oracle.DefaultMaxAttempts, llm.CallsFor(prompts.TaskMemoryQuery))
	})
}

func TestManager_RetrieveDegrades(t *testing.T) {
	t.Run("oracle unavailable", func(t *testing.T) {
		llm := oracletest.NewMockLLM().OnError(prompts.TaskMemoryQuery, errors.New("connection refused"))
		m := newTestManager(llm, NewMemStore())
		got, err := m.Retrieve(context.Background(), "x", "y")
		require.NoError(t, err)
		assert.Equal(t, NotFound, got)
	})

	t.Run("store unavailable is retried once", func(t *testing.T) {
		store := &failingStore{err: ErrStoreUnavailable}
		llm := oracletest.NewMockLLM().On(prompts.TaskMemoryQuery, queryReply(clue))
		m := newTestManager(llm, store)
		got, err := m.Retrieve(context.Background(), "x", "y")
		require.NoError(t, err)
		assert.Equal(t, NotFound, got)
		assert.Equal(t, 2, store.searches())
	})
}

func TestManager_MergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	llm := oracletest.NewMockLLM().
		On(prompts.TaskMemoryExtract, extractReply(clueRecord())).
		On(prompts.TaskMemoryMerge, oracletest.Reply(map[string]any{"summary": clue, "superseded": true}))

	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(oracle.New(llm, oracle.WithRetryDelay(0)), store, NewHashEmbedder(),
		WithClock(func() time.Time { tick = tick.Add(time.Second); return tick }))

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Record(ctx, "Drunker: I saw him by the well, hic."))
	}
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 2, llm.CallsFor(prompts.TaskMemoryMerge))

	hits, err := store.Search(ctx, Query{Keywords: []string{"well"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, clue, hits[0].Record.Summary)
	assert.Equal(t, tick, hits[0].Record.Timestamp)
}

func TestManager_MergeKeepsOldWhenNotSuperseded(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	merged := "The drunker saw the vendor near the well at night, carrying a knife."
	second := clueRecord()
	second["keywords"] = []string{"well", "knife"}
	llm := oracletest.NewMockLLM().
		On(prompts.TaskMemoryExtract, extractReply(clueRecord()), extractReply(second)).
		On(prompts.TaskMemoryMerge, oracletest.Reply(map[string]any{"summary": merged, "superseded": false}))
	m := newTestManager(llm, store)

	require.NoError(t, m.Record(ctx, "one"))
	require.NoError(t, m.Record(ctx, "two"))
	assert.Equal(t, 2, store.Len())

	hits, err := store.Search(ctx, Query{Keywords: []string{"knife"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, merged, hits[0].Record.Summary)
	assert.ElementsMatch(t, []string{"vendor", "well", "night", "knife"}, hits[0].Record.Keywords)
}

func TestManager_NoMergeWithoutSharedKeyword(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	second := clueRecord()
	second["keywords"] = []string{"hic"}
	llm := oracletest.NewMockLLM().
		On(prompts.TaskMemoryExtract, extractReply(clueRecord()), extractReply(second))
	m := newTestManager(llm, store)

	require.NoError(t, m.Record(ctx, "one"))
	require.NoError(t, m.Record(ctx, "two"))
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 0, llm.CallsFor(prompts.TaskMemoryMerge))
}

func TestManager_RecordNothingWorthKeeping(t *testing.T) {
	store := NewMemStore()
	llm := oracletest.NewMockLLM().On(prompts.TaskMemoryExtract, extractReply())
	m := newTestManager(llm, store)

	require.NoError(t, m.Record(context.Background(), "Player: hi\nAlex: hello"))
	assert.Equal(t, 0, store.Len())
}

func TestManager_RecordSeveralCandidates(t *testing.T) {
	store := NewMemStore()
	other := map[string]any{
		"character":   "vendor",
		"memory_type": "fact",
		"summary":     "The vendor sells rope.",
		"raw_input":   "Rope for sale!",
		"keywords":    []string{"rope"},
	}
	llm := oracletest.NewMockLLM().On(prompts.TaskMemoryExtract, extractReply(clueRecord(), other))
	m := newTestManager(llm, store)

	require.NoError(t, m.Record(context.Background(), "..."))
	assert.Equal(t, 2, store.Len())
}

func TestManager_RecordRejectsUnknownEnum(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
	}{
		{
			name:   "character outside the cast",
			record: map[string]any{"character": "bob the baker", "memory_type": "fact", "summary": clue, "raw_input": "x", "keywords": []string{"well"}},
		},
		{
			name:   "memory type outside the enum",
			record: map[string]any{"character": "drunker", "memory_type": "gossip", "summary": clue, "raw_input": "x", "keywords": []string{"well"}},
		},
		{
			name:   "missing character",
			record: map[string]any{"memory_type": "fact", "summary": clue, "raw_input": "x", "keywords": []string{"well"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemStore()
			llm := oracletest.NewMockLLM().On(prompts.TaskMemoryExtract, extractReply(tt.record))
			m := newTestManager(llm, store)

			err := m.Record(context.Background(), "Player: hello")
			assert.ErrorIs(t, err, oracle.ErrMalformedResponse)
			assert.Equal(t, 0, store.Len())
			assert.Equal(t, oracle.DefaultMaxAttempts, llm.CallsFor(prompts.TaskMemoryExtract))
		})
	}
}

func TestManager_RecordAcceptsUnknownMember(t *testing.T) {
	store := NewMemStore()
	rec := clueRecord()
	rec["character"] = "unknown"
	rec["memory_type"] = "unknown"
	llm := oracletest.NewMockLLM().On(prompts.TaskMemoryExtract, extractReply(rec))
	m := newTestManager(llm, store)

	require.NoError(t, m.Record(context.Background(), "Player: who was that?"))
	assert.Equal(t, 1, store.Len())
}

func TestManager_RecordErrors(t *testing.T) {
	t.Run("oracle unavailable", func(t *testing.T) {
		llm := oracletest.NewMockLLM().OnError(prompts.TaskMemoryExtract, errors.New("boom"))
		m := newTestManager(llm, NewMemStore())
		err := m.Record(context.Background(), "x")
		assert.ErrorIs(t, err, oracle.ErrUnavailable)
	})

	t.Run("store unavailable", func(t *testing.T) {
		llm := oracletest.NewMockLLM().On(prompts.TaskMemoryExtract, extractReply(clueRecord()))
		m := newTestManager(llm, &failingStore{err: ErrStoreUnavailable})
		err := m.Record(context.Background(), "x")
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

type failingStore struct {
	err error

	mu    sync.Mutex
	count int
}

func (f *failingStore) Insert(context.Context, Record) (string, error) { return "", f.err }

func (f *failingStore) Search(context.Context, Query) ([]Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return nil, f.err
}

func (f *failingStore) Delete(context.Context, string) error { return f.err }

func (f *failingStore) searches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}
