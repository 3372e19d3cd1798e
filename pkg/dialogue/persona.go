package dialogue

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/village-mystery/pkg/intent"
	"github.com/jwebster45206/village-mystery/pkg/prompts"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

//go:embed personas.yaml
var personasYAML []byte

// Persona is the static description of a speaker.
type Persona struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	Description string   `yaml:"description"`
	Style       string   `yaml:"style"`
	Room        string   `yaml:"room,omitempty"` // Room ID; empty for the narrator
	Traits      []string `yaml:"traits,omitempty"`
	Knowledge   []string `yaml:"knowledge,omitempty"`
	Forbidden   []string `yaml:"forbidden,omitempty"`
}

// Cast is the narrator plus every NPC.
type Cast struct {
	HistoryLimit int       `yaml:"history_limit"`
	Narrator     Persona   `yaml:"narrator"`
	NPCs         []Persona `yaml:"npcs"`
}

// DefaultCast returns the built-in cast.
func DefaultCast() *Cast {
	c, err := ParseCast(personasYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded personas are invalid: %v", err))
	}
	return c
}

// LoadCast reads a persona file.
func LoadCast(path string) (*Cast, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file: %w", err)
	}
	return ParseCast(data)
}

// ParseCast decodes personas YAML.
func ParseCast(data []byte) (*Cast, error) {
	var c Cast
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse personas: %w", err)
	}
	if c.Narrator.ID == "" || c.Narrator.DisplayName == "" {
		return nil, fmt.Errorf("narrator needs an id and a display name")
	}
	return &c, nil
}

// Validate checks that every talkable NPC has a persona standing in a room
// the map knows, and that the history limit is sensible.
func (c *Cast) Validate(m *world.Map) error {
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit)
	}
	seen := make(map[string]bool, len(c.NPCs))
	for _, p := range c.NPCs {
		if p.ID == "" || p.DisplayName == "" {
			return fmt.Errorf("npc persona needs an id and a display name")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate npc persona %q", p.ID)
		}
		seen[p.ID] = true
		if _, ok := m.Room(p.Room); !ok {
			return fmt.Errorf("npc %q stands in unknown room %q", p.ID, p.Room)
		}
	}
	for _, npc := range intent.NPCs {
		if !seen[npc] {
			return fmt.Errorf("npc %q has no persona", npc)
		}
	}
	return nil
}

// NPC finds an NPC persona by ID.
func (c *Cast) NPC(id string) (Persona, bool) {
	for _, p := range c.NPCs {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

// view renders a persona for prompts, resolving its room name.
func (p Persona) view(m *world.Map) prompts.Persona {
	room := p.Room
	if r, ok := m.Room(p.Room); ok {
		room = r.Name
	}
	return prompts.Persona{
		DisplayName: p.DisplayName,
		Description: p.Description,
		Style:       p.Style,
		Room:        room,
		Traits:      p.Traits,
		Knowledge:   p.Knowledge,
		Forbidden:   p.Forbidden,
	}
}
