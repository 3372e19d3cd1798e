package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store. It is safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

// Insert stores rec, assigning an ID and timestamp when missing.
func (s *MemStore) Insert(ctx context.Context, rec Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := CheckDimensions(rec.Embedding); err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Keywords = NormalizeKeywords(rec.Keywords)
	rec.Embedding = append([]float32(nil), rec.Embedding...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return rec.ID, nil
}

// Search ranks every stored record against q.
func (s *MemStore) Search(ctx context.Context, q Query) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	all := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, rec)
	}
	s.mu.RUnlock()
	return Rank(all, q)
}

// Delete removes a record.
func (s *MemStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	delete(s.records, id)
	return nil
}

// Len reports how many records are stored.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MemNamespaces keeps one MemStore per session.
type MemNamespaces struct {
	mu     sync.Mutex
	stores map[string]*MemStore
}

var _ Namespacer = (*MemNamespaces)(nil)

func NewMemNamespaces() *MemNamespaces {
	return &MemNamespaces{stores: make(map[string]*MemStore)}
}

// Namespace returns the session's store, creating it on first use.
func (n *MemNamespaces) Namespace(sessionID string) Store {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.stores[sessionID]
	if !ok {
		s = NewMemStore()
		n.stores[sessionID] = s
	}
	return s
}

// Drop forgets everything a session remembered.
func (n *MemNamespaces) Drop(_ context.Context, sessionID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.stores, sessionID)
	return nil
}
