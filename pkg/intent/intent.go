package intent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrInvalid is returned when a classification payload does not fit the
// declared intent kind.
var ErrInvalid = errors.New("invalid intent payload")

// Kind names one of the closed set of player intents.
type Kind string

const (
	KindAction Kind = "action"
	KindQuery  Kind = "query"
	KindTalk   Kind = "talk"
	KindChat   Kind = "chat"
	KindOther  Kind = "other"
)

// Kinds lists every intent kind.
var Kinds = []Kind{KindAction, KindQuery, KindTalk, KindChat, KindOther}

// NPCs that can be talked to.
var NPCs = []string{"villager", "vendor", "sheriff", "drunker"}

// Intent is the classified purpose of one player utterance.
type Intent interface {
	Kind() Kind
}

// Action asks the world to do something.
type Action struct {
	Text string `mapstructure:"text"`
}

// Query asks the narrator a question, possibly about something remembered.
type Query struct {
	Question     string `mapstructure:"question"`
	MemoryNeeded bool   `mapstructure:"memory_needed"`
	MemoryQuery  string `mapstructure:"memory_query"`
}

// Talk addresses an NPC.
type Talk struct {
	NPC          string `mapstructure:"npc"`
	DialogText   string `mapstructure:"dialog_text"`
	MemoryNeeded bool   `mapstructure:"memory_needed"`
	MemoryQuery  string `mapstructure:"memory_query"`
}

// Chat is small talk with the narrator.
type Chat struct {
	Text string `mapstructure:"text"`
}

// Other is anything outside the game.
type Other struct {
	Reason string `mapstructure:"reason"`
}

func (Action) Kind() Kind { return KindAction }
func (Query) Kind() Kind  { return KindQuery }
func (Talk) Kind() Kind   { return KindTalk }
func (Chat) Kind() Kind   { return KindChat }
func (Other) Kind() Kind  { return KindOther }

// Decode turns a status and its content object into the matching variant.
// Unknown keys, missing required keys and wrong types are all errors.
func Decode(status string, content map[string]any) (Intent, error) {
	var (
		target   any
		required []string
	)
	switch Kind(strings.ToLower(status)) {
	case KindAction:
		target, required = &Action{}, []string{"text"}
	case KindQuery:
		target, required = &Query{}, []string{"question", "memory_needed"}
	case KindTalk:
		target, required = &Talk{}, []string{"npc", "dialog_text", "memory_needed"}
	case KindChat:
		target, required = &Chat{}, []string{"text"}
	case KindOther:
		target, required = &Other{}, []string{"reason"}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}

	for _, key := range required {
		if _, ok := content[key]; !ok {
			return nil, fmt.Errorf("%w: %s content missing %q", ErrInvalid, status, key)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      target,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch v := target.(type) {
	case *Action:
		if strings.TrimSpace(v.Text) == "" {
			return nil, fmt.Errorf("%w: action text is empty", ErrInvalid)
		}
		return *v, nil
	case *Query:
		if v.MemoryNeeded && strings.TrimSpace(v.MemoryQuery) == "" {
			return nil, fmt.Errorf("%w: query needs memory but memory_query is empty", ErrInvalid)
		}
		return *v, nil
	case *Talk:
		v.NPC = strings.ToLower(strings.TrimSpace(v.NPC))
		if !IsNPC(v.NPC) {
			return nil, fmt.Errorf("%w: unknown npc %q", ErrInvalid, v.NPC)
		}
		if v.MemoryNeeded && strings.TrimSpace(v.MemoryQuery) == "" {
			return nil, fmt.Errorf("%w: talk needs memory but memory_query is empty", ErrInvalid)
		}
		return *v, nil
	case *Chat:
		return *v, nil
	case *Other:
		return *v, nil
	}
	return nil, fmt.Errorf("%w: unhandled status %q", ErrInvalid, status)
}

// IsNPC reports whether name is one of the talkable NPCs.
func IsNPC(name string) bool {
	for _, n := range NPCs {
		if n == name {
			return true
		}
	}
	return false
}
