package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/village-mystery/pkg/memory"
)

// RedisMemories keeps each session's memories under its own key prefix.
// The session segment is base64url encoded so client supplied IDs can never
// contain a separator or reach into another session's keys:
//
//	memory:{session}:rec:{id}        JSON record
//	memory:{session}:ids             set of record IDs
//	memory:{session}:keys            set of every index key below
//	memory:{session}:char:{name}     IDs by character
//	memory:{session}:type:{name}     IDs by memory type
//	memory:{session}:kw:{keyword}    IDs by keyword
//
// Redis narrows the candidates by filter; similarity ranking happens in
// memory.Rank.
type RedisMemories struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ memory.Namespacer = (*RedisMemories)(nil)

const dropBatch = 200

func NewRedisMemories(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisMemories {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisMemories{client: client, ttl: ttl, logger: logger}
}

func (m *RedisMemories) Namespace(sessionID string) memory.Store {
	return m.store(sessionID)
}

func (m *RedisMemories) store(sessionID string) *RedisMemoryStore {
	return &RedisMemoryStore{client: m.client, prefix: memoryPrefix(sessionID), ttl: m.ttl, logger: m.logger}
}

// Drop deletes every key of a session's memory. Keys are found through the
// session's own ids and keys sets, never by pattern.
func (m *RedisMemories) Drop(ctx context.Context, sessionID string) error {
	s := m.store(sessionID)
	ids, err := m.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return unavailable(err)
	}
	indexes, err := m.client.SMembers(ctx, s.keysKey()).Result()
	if err != nil {
		return unavailable(err)
	}

	keys := make([]string, 0, len(ids)+len(indexes)+2)
	for _, id := range ids {
		keys = append(keys, s.recKey(id))
	}
	keys = append(keys, indexes...)
	keys = append(keys, s.idsKey(), s.keysKey())

	for start := 0; start < len(keys); start += dropBatch {
		end := min(start+dropBatch, len(keys))
		if err := m.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return unavailable(err)
		}
	}
	m.logger.Debug("Dropped memories", "session_id", sessionID, "records", len(ids))
	return nil
}

func memoryPrefix(sessionID string) string {
	return "memory:" + base64.RawURLEncoding.EncodeToString([]byte(sessionID)) + ":"
}

// RedisMemoryStore is one session's memory.Store.
type RedisMemoryStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ memory.Store = (*RedisMemoryStore)(nil)

func (s *RedisMemoryStore) recKey(id string) string           { return s.prefix + "rec:" + id }
func (s *RedisMemoryStore) idsKey() string                    { return s.prefix + "ids" }
func (s *RedisMemoryStore) keysKey() string                   { return s.prefix + "keys" }
func (s *RedisMemoryStore) charKey(c memory.Character) string { return s.prefix + "char:" + string(c) }
func (s *RedisMemoryStore) typeKey(t memory.Type) string      { return s.prefix + "type:" + string(t) }
func (s *RedisMemoryStore) kwKey(k string) string             { return s.prefix + "kw:" + k }

func (s *RedisMemoryStore) indexKeys(rec memory.Record) []string {
	keys := []string{s.idsKey(), s.charKey(rec.Character), s.typeKey(rec.Type)}
	for _, k := range rec.Keywords {
		keys = append(keys, s.kwKey(k))
	}
	return keys
}

func (s *RedisMemoryStore) Insert(ctx context.Context, rec memory.Record) (string, error) {
	if err := memory.CheckDimensions(rec.Embedding); err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Keywords = memory.NormalizeKeywords(rec.Keywords)

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal memory record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recKey(rec.ID), data, s.ttl)
	indexes := s.indexKeys(rec)
	for _, key := range indexes {
		pipe.SAdd(ctx, key, rec.ID)
		pipe.Expire(ctx, key, s.ttl)
	}
	members := make([]any, len(indexes))
	for i, key := range indexes {
		members[i] = key
	}
	pipe.SAdd(ctx, s.keysKey(), members...)
	pipe.Expire(ctx, s.keysKey(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", unavailable(err)
	}
	return rec.ID, nil
}

func (s *RedisMemoryStore) Search(ctx context.Context, q memory.Query) ([]memory.Hit, error) {
	if q.Vector != nil {
		if err := memory.CheckDimensions(q.Vector); err != nil {
			return nil, err
		}
	}

	ids, err := s.candidates(ctx, q)
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	records := make([]memory.Record, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Expired record still listed in an index.
			continue
		}
		var rec memory.Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			s.logger.Warn("Skipping unreadable memory record", "key", keys[i], "error", err)
			continue
		}
		records = append(records, rec)
	}
	return memory.Rank(records, q)
}

// candidates narrows the search with the index sets. Hard filters intersect;
// without them any keyword hit qualifies.
func (s *RedisMemoryStore) candidates(ctx context.Context, q memory.Query) ([]string, error) {
	var must []string
	if q.Character != "" {
		must = append(must, s.charKey(q.Character))
	}
	if q.Type != "" {
		must = append(must, s.typeKey(q.Type))
	}
	if len(must) > 0 {
		return s.client.SInter(ctx, must...).Result()
	}

	if kws := memory.NormalizeKeywords(q.Keywords); len(kws) > 0 {
		keys := make([]string, len(kws))
		for i, k := range kws {
			keys[i] = s.kwKey(k)
		}
		return s.client.SUnion(ctx, keys...).Result()
	}
	return s.client.SMembers(ctx, s.idsKey()).Result()
}

func (s *RedisMemoryStore) Delete(ctx context.Context, id string) error {
	data, err := s.client.Get(ctx, s.recKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", memory.ErrRecordNotFound, id)
	}
	if err != nil {
		return unavailable(err)
	}
	var rec memory.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to unmarshal memory record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recKey(id))
	for _, key := range s.indexKeys(rec) {
		pipe.SRem(ctx, key, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", memory.ErrStoreUnavailable, err)
}
