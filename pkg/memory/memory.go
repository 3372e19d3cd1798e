// Package memory holds the long-term memory of a play session: records
// extracted from narrated exchanges, their vector search and the manager that
// retrieves and merges them.
package memory

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Dimensions is the embedding width every store and embedder agrees on.
const Dimensions = 384

// NotFound is returned by Retrieve when nothing relevant is remembered.
const NotFound = "No related memory found."

var (
	ErrStoreUnavailable  = errors.New("memory store unavailable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrRecordNotFound    = errors.New("memory record not found")
)

// Character is who a memory is about.
type Character string

const (
	CharacterPlayer   Character = "player"
	CharacterVillager Character = "villager"
	CharacterVendor   Character = "vendor"
	CharacterSheriff  Character = "sheriff"
	CharacterDrunker  Character = "drunker"
	CharacterAlex     Character = "alex"
	CharacterUnknown  Character = "unknown"
)

var characters = []Character{
	CharacterPlayer, CharacterVillager, CharacterVendor, CharacterSheriff,
	CharacterDrunker, CharacterAlex, CharacterUnknown,
}

// Type classifies a memory.
type Type string

const (
	TypeEvent       Type = "event"
	TypeThought     Type = "thought"
	TypeObservation Type = "observation"
	TypeDialogue    Type = "dialogue"
	TypePerception  Type = "perception"
	TypeFact        Type = "fact"
	TypeGoal        Type = "goal"
	TypePreference  Type = "preference"
	TypeUnknown     Type = "unknown"
)

var types = []Type{
	TypeEvent, TypeThought, TypeObservation, TypeDialogue, TypePerception,
	TypeFact, TypeGoal, TypePreference, TypeUnknown,
}

// ParseCharacter maps free text onto a Character. ok is false for values
// outside the enum.
func ParseCharacter(s string) (Character, bool) {
	c := Character(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range characters {
		if c == known {
			return c, true
		}
	}
	return CharacterUnknown, false
}

// ParseType maps free text onto a Type. ok is false for values outside the
// enum.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range types {
		if t == known {
			return t, true
		}
	}
	return TypeUnknown, false
}

// Characters lists the character enum as strings, for prompts.
func Characters() []string {
	out := make([]string, len(characters))
	for i, c := range characters {
		out[i] = string(c)
	}
	return out
}

// Types lists the type enum as strings, for prompts.
func Types() []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// Record is one remembered thing.
type Record struct {
	ID        string    `json:"id"`
	Character Character `json:"character"`
	Type      Type      `json:"memory_type"`
	Summary   string    `json:"summary"`
	RawInput  string    `json:"raw_input"`
	Keywords  []string  `json:"keywords"`
	Embedding []float32 `json:"embedding"`
	Timestamp time.Time `json:"timestamp"`
}

// Query selects and ranks records. Character and Type are hard filters when
// set; Keywords only boost, except that a query without hard filters needs
// at least one keyword hit.
type Query struct {
	Character      Character
	Type           Type
	Keywords       []string
	Vector         []float32
	TopK           int
	SortByRecency  bool
	MinShouldMatch int
}

// Hit is a ranked search result.
type Hit struct {
	Record     Record
	Similarity float64
	Score      float64
}

// Store persists records for one session.
type Store interface {
	Insert(ctx context.Context, rec Record) (string, error)
	Search(ctx context.Context, q Query) ([]Hit, error)
	Delete(ctx context.Context, id string) error
}

// Namespacer hands out one Store per session.
type Namespacer interface {
	Namespace(sessionID string) Store
	Drop(ctx context.Context, sessionID string) error
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// NormalizeKeywords lowercases, trims and de-duplicates keywords, keeping the
// first occurrence order.
func NormalizeKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// UnionKeywords merges two keyword sets.
func UnionKeywords(a, b []string) []string {
	return NormalizeKeywords(append(append([]string(nil), a...), b...))
}
