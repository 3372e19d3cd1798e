package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/village-mystery/pkg/oracle"
	"github.com/jwebster45206/village-mystery/pkg/prompts"
)

const (
	DefaultDuplicateThreshold = 0.8
	DefaultStoreTimeout       = 5 * time.Second
	DefaultStoreRetryDelay    = 200 * time.Millisecond

	duplicateCandidates = 5
	retrieveTopK        = 3
)

// Manager builds retrieval queries and writes de-duplicated memories for one
// session store.
type Manager struct {
	oracle     oracle.Asker
	store      Store
	embedder   Embedder
	threshold  float64
	timeout    time.Duration
	retryDelay time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

func WithDuplicateThreshold(t float64) Option {
	return func(m *Manager) {
		if t > 0 {
			m.threshold = t
		}
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithStoreRetryDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.retryDelay = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager over a session store.
func NewManager(asker oracle.Asker, store Store, embedder Embedder, opts ...Option) *Manager {
	m := &Manager{
		oracle:     asker,
		store:      store,
		embedder:   embedder,
		threshold:  DefaultDuplicateThreshold,
		timeout:    DefaultStoreTimeout,
		retryDelay: DefaultStoreRetryDelay,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type fieldFilter struct {
	Filter bool   `json:"filter"`
	Value  string `json:"value"`
}

type keywordFilter struct {
	Filter bool     `json:"filter"`
	Value  []string `json:"value"`
}

// queryPlan is the oracle's answer for memory_query.
type queryPlan struct {
	Character  fieldFilter   `json:"character"`
	MemoryType fieldFilter   `json:"memory_type"`
	Keywords   keywordFilter `json:"keywords"`
	Sentence   string        `json:"sentence"`
}

func (p *queryPlan) Validate() error {
	if strings.TrimSpace(p.Sentence) == "" {
		return errors.New("sentence is required")
	}
	if p.Character.Filter {
		if _, ok := ParseCharacter(p.Character.Value); !ok {
			return fmt.Errorf("unknown character %q", p.Character.Value)
		}
	}
	if p.MemoryType.Filter {
		if _, ok := ParseType(p.MemoryType.Value); !ok {
			return fmt.Errorf("unknown memory type %q", p.MemoryType.Value)
		}
	}
	if p.Keywords.Filter && len(NormalizeKeywords(p.Keywords.Value)) == 0 {
		return errors.New("keyword filter without keywords")
	}
	return nil
}

func (p *queryPlan) query(vector []float32) Query {
	q := Query{Vector: vector, TopK: retrieveTopK, SortByRecency: true}
	if p.Character.Filter {
		q.Character, _ = ParseCharacter(p.Character.Value)
	}
	if p.MemoryType.Filter {
		q.Type, _ = ParseType(p.MemoryType.Value)
	}
	if p.Keywords.Filter {
		q.Keywords = NormalizeKeywords(p.Keywords.Value)
	}
	return q
}

// Retrieve returns the summary of the best memory for a query, or NotFound.
// A malformed oracle answer is returned as an error; an unavailable oracle,
// embedder or store degrades to NotFound.
func (m *Manager) Retrieve(ctx context.Context, original, query string) (string, error) {
	msgs, err := prompts.New().
		WithTask(prompts.TaskMemoryQuery, prompts.MemoryQueryData{
			Characters: Characters(),
			Types:      Types(),
			Original:   original,
			Query:      query,
		}).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build memory query prompt: %w", err)
	}

	var plan queryPlan
	if err := m.oracle.Ask(ctx, prompts.TaskMemoryQuery, msgs, &plan); err != nil {
		if errors.Is(err, oracle.ErrMalformedResponse) {
			return "", fmt.Errorf("failed to plan memory query: %w", err)
		}
		m.logger.Warn("Memory query planning failed, treating as not found", "error", err)
		return NotFound, nil
	}

	vector, err := m.embed(ctx, plan.Sentence)
	if err != nil {
		m.logger.Warn("Failed to embed memory query", "error", err)
		return NotFound, nil
	}

	var hits []Hit
	err = m.withStore(ctx, func(ctx context.Context) error {
		var serr error
		hits, serr = m.store.Search(ctx, plan.query(vector))
		return serr
	})
	if err != nil {
		m.logger.Warn("Memory search failed, treating as not found", "error", err)
		return NotFound, nil
	}
	if len(hits) == 0 {
		return NotFound, nil
	}

	m.logger.Debug("Memory retrieved",
		"record_id", hits[0].Record.ID,
		"score", hits[0].Score)
	return hits[0].Record.Summary, nil
}

type candidate struct {
	Character string   `json:"character"`
	Type      string   `json:"memory_type"`
	Summary   string   `json:"summary"`
	RawInput  string   `json:"raw_input"`
	Keywords  []string `json:"keywords"`
}

// extraction is the oracle's answer for memory_extract.
type extraction struct {
	Records []candidate `json:"records"`
}

func (e *extraction) Validate() error {
	if e.Records == nil {
		return errors.New("records is required")
	}
	for i, c := range e.Records {
		if strings.TrimSpace(c.Summary) == "" {
			return fmt.Errorf("record %d has no summary", i)
		}
		if _, ok := ParseCharacter(c.Character); !ok {
			return fmt.Errorf("record %d has unknown character %q", i, c.Character)
		}
		if _, ok := ParseType(c.Type); !ok {
			return fmt.Errorf("record %d has unknown memory type %q", i, c.Type)
		}
	}
	return nil
}

// merge is the oracle's answer for memory_merge.
type merge struct {
	Summary    string `json:"summary"`
	Superseded bool   `json:"superseded"`
}

func (m *merge) Validate() error {
	if strings.TrimSpace(m.Summary) == "" {
		return errors.New("summary is required")
	}
	return nil
}

// Record extracts memories from a finished exchange and stores them, merging
// each with a near duplicate when one exists.
func (m *Manager) Record(ctx context.Context, conversation string) error {
	msgs, err := prompts.New().
		WithTask(prompts.TaskMemoryExtract, prompts.MemoryExtractData{
			Characters:   Characters(),
			Types:        Types(),
			Conversation: conversation,
		}).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build memory extract prompt: %w", err)
	}

	var ext extraction
	if err := m.oracle.Ask(ctx, prompts.TaskMemoryExtract, msgs, &ext); err != nil {
		return fmt.Errorf("failed to extract memories: %w", err)
	}
	if len(ext.Records) == 0 {
		return nil
	}

	records := make([]Record, len(ext.Records))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range ext.Records {
		// Validate already checked both enums.
		character, _ := ParseCharacter(c.Character)
		typ, _ := ParseType(c.Type)
		records[i] = Record{
			Character: character,
			Type:      typ,
			Summary:   strings.TrimSpace(c.Summary),
			RawInput:  c.RawInput,
			Keywords:  NormalizeKeywords(c.Keywords),
		}
		g.Go(func() error {
			vec, err := m.embed(gctx, records[i].Summary)
			if err != nil {
				return err
			}
			records[i].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to embed memories: %w", err)
	}

	for _, rec := range records {
		if err := m.save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// save writes one candidate, merging it into a near duplicate first.
func (m *Manager) save(ctx context.Context, rec Record) error {
	dup, err := m.findDuplicate(ctx, rec)
	if err != nil {
		return err
	}
	if dup != nil {
		merged, superseded, err := m.merge(ctx, dup.Summary, rec.Summary)
		if err != nil {
			m.logger.Warn("Memory merge failed, storing as new", "error", err)
		} else {
			if superseded {
				err := m.withStore(ctx, func(ctx context.Context) error {
					return m.store.Delete(ctx, dup.ID)
				})
				if err != nil && !errors.Is(err, ErrRecordNotFound) {
					return fmt.Errorf("failed to delete superseded memory: %w", err)
				}
			}
			rec.Keywords = UnionKeywords(dup.Keywords, rec.Keywords)
			if merged != rec.Summary {
				rec.Summary = merged
				if rec.Embedding, err = m.embed(ctx, merged); err != nil {
					return fmt.Errorf("failed to embed merged memory: %w", err)
				}
			}
		}
	}

	rec.ID = uuid.New().String()
	rec.Timestamp = m.now()
	err = m.withStore(ctx, func(ctx context.Context) error {
		_, ierr := m.store.Insert(ctx, rec)
		return ierr
	})
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	m.logger.Debug("Memory stored",
		"record_id", rec.ID,
		"character", rec.Character,
		"memory_type", rec.Type,
		"merged", dup != nil)
	return nil
}

// findDuplicate looks for a record about the same character and type that
// shares a keyword and is close enough in meaning.
func (m *Manager) findDuplicate(ctx context.Context, rec Record) (*Record, error) {
	if len(rec.Keywords) == 0 {
		return nil, nil
	}
	var hits []Hit
	err := m.withStore(ctx, func(ctx context.Context) error {
		var serr error
		hits, serr = m.store.Search(ctx, Query{
			Character:      rec.Character,
			Type:           rec.Type,
			Keywords:       rec.Keywords,
			Vector:         rec.Embedding,
			TopK:           duplicateCandidates,
			SortByRecency:  true,
			MinShouldMatch: 1,
		})
		return serr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search for duplicates: %w", err)
	}
	for _, h := range hits {
		if h.Similarity >= m.threshold {
			dup := h.Record
			return &dup, nil
		}
	}
	return nil, nil
}

func (m *Manager) merge(ctx context.Context, old, new string) (string, bool, error) {
	msgs, err := prompts.New().
		WithTask(prompts.TaskMemoryMerge, prompts.MemoryMergeData{Old: old, New: new}).
		Build()
	if err != nil {
		return "", false, err
	}
	var out merge
	if err := m.oracle.Ask(ctx, prompts.TaskMemoryMerge, msgs, &out); err != nil {
		return "", false, err
	}
	return strings.TrimSpace(out.Summary), out.Superseded, nil
}

func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := CheckDimensions(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// withStore runs one store call under the store timeout, retrying once when
// the store reports itself unavailable.
func (m *Manager) withStore(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(m.retryDelay):
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err = fn(callCtx)
		cancel()
		if err == nil || !errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		m.logger.Warn("Memory store call failed", "attempt", attempt, "error", err)
	}
	return err
}
