package world

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed village.yaml
var villageYAML []byte

// Directions in the order used for deterministic routing.
var Directions = []string{"north", "south", "east", "west"}

// Container states as written in map files.
const (
	ContainerOpen   = "open"
	ContainerClosed = "closed"
	ContainerLocked = "locked"
)

// Room is one cell of the village grid.
type Room struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Row         int               `yaml:"row" json:"row"`
	Col         int               `yaml:"col" json:"col"`
	Exits       map[string]string `yaml:"exits" json:"exits"` // Direction → Room ID
}

// ContainerDef describes a container (or NPC acting as one) and where it stands.
type ContainerDef struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Room        string `yaml:"room" json:"room"`
	State       string `yaml:"state" json:"state"`
	Key         string `yaml:"key,omitempty" json:"key,omitempty"` // item name that unlocks it
}

// ItemDef is an item instance. Several instances may share a name.
type ItemDef struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Room        string `yaml:"room,omitempty" json:"room,omitempty"`
	In          string `yaml:"in,omitempty" json:"in,omitempty"`
}

// Map is the static layout of the world. It is never mutated after loading.
type Map struct {
	Name       string         `yaml:"name"`
	Start      string         `yaml:"start"`
	Rooms      []Room         `yaml:"rooms"`
	Containers []ContainerDef `yaml:"containers"`
	Items      []ItemDef      `yaml:"items"`

	rooms      map[string]*Room
	containers map[string]*ContainerDef
}

// Village returns the built-in village map.
func Village() *Map {
	m, err := ParseMap(villageYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded village map is invalid: %v", err))
	}
	return m
}

// LoadMap reads and validates a map file.
func LoadMap(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}
	return ParseMap(data)
}

// ParseMap decodes a YAML map and validates it.
func ParseMap(data []byte) (*Map, error) {
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse map: %w", err)
	}
	if err := m.index(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Map) index() error {
	m.rooms = make(map[string]*Room, len(m.Rooms))
	for i := range m.Rooms {
		r := &m.Rooms[i]
		if _, dup := m.rooms[r.ID]; dup {
			return fmt.Errorf("duplicate room id %q", r.ID)
		}
		m.rooms[r.ID] = r
	}
	m.containers = make(map[string]*ContainerDef, len(m.Containers))
	for i := range m.Containers {
		c := &m.Containers[i]
		if _, dup := m.containers[c.ID]; dup {
			return fmt.Errorf("duplicate container id %q", c.ID)
		}
		m.containers[c.ID] = c
	}
	return nil
}

// Validate checks that exits are symmetric, every room is reachable from the
// start, and containers and items reference things that exist.
func (m *Map) Validate() error {
	if _, ok := m.rooms[m.Start]; !ok {
		return fmt.Errorf("start room %q does not exist", m.Start)
	}
	for _, r := range m.Rooms {
		for dir, to := range r.Exits {
			back, ok := opposite[dir]
			if !ok {
				return fmt.Errorf("room %q has unknown direction %q", r.ID, dir)
			}
			target, ok := m.rooms[to]
			if !ok {
				return fmt.Errorf("room %q exit %s leads to unknown room %q", r.ID, dir, to)
			}
			if target.Exits[back] != r.ID {
				return fmt.Errorf("exit %s from %q to %q has no matching %s exit", dir, r.ID, to, back)
			}
		}
	}
	if reached := m.reachable(m.Start); len(reached) != len(m.Rooms) {
		return fmt.Errorf("only %d of %d rooms reachable from %q", len(reached), len(m.Rooms), m.Start)
	}

	names := make(map[string]bool)
	for _, it := range m.Items {
		names[it.Name] = true
	}
	for _, c := range m.Containers {
		if _, ok := m.rooms[c.Room]; !ok {
			return fmt.Errorf("container %q is in unknown room %q", c.ID, c.Room)
		}
		switch c.State {
		case ContainerOpen, ContainerClosed:
		case ContainerLocked:
			if c.Key == "" {
				return fmt.Errorf("locked container %q has no key", c.ID)
			}
		default:
			return fmt.Errorf("container %q has unknown state %q", c.ID, c.State)
		}
		if c.Key != "" && !names[c.Key] {
			return fmt.Errorf("container %q key %q is not an item", c.ID, c.Key)
		}
	}
	for _, it := range m.Items {
		switch {
		case it.Room != "" && it.In != "":
			return fmt.Errorf("item %q has both room and container", it.ID)
		case it.Room != "":
			if _, ok := m.rooms[it.Room]; !ok {
				return fmt.Errorf("item %q is in unknown room %q", it.ID, it.Room)
			}
		case it.In != "":
			if _, ok := m.containers[it.In]; !ok {
				return fmt.Errorf("item %q is in unknown container %q", it.ID, it.In)
			}
		default:
			return fmt.Errorf("item %q has no location", it.ID)
		}
	}
	return nil
}

func (m *Map) reachable(from string) map[string]bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, to := range m.rooms[cur].Exits {
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	return seen
}

// Room returns a room by ID.
func (m *Map) Room(id string) (*Room, bool) {
	r, ok := m.rooms[id]
	return r, ok
}

// RoomByName finds a room by display name or ID, ignoring case.
func (m *Map) RoomByName(name string) (*Room, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range m.Rooms {
		r := &m.Rooms[i]
		if strings.ToLower(r.Name) == name || r.ID == name {
			return r, true
		}
	}
	return nil, false
}

// Container returns a container definition by ID, ignoring case.
func (m *Map) Container(id string) (*ContainerDef, bool) {
	c, ok := m.containers[strings.ToLower(id)]
	return c, ok
}

// AdjacencyTable renders the exits of every room, one line per room.
func (m *Map) AdjacencyTable() string {
	var sb strings.Builder
	for _, r := range m.Rooms {
		dirs := make([]string, 0, len(r.Exits))
		for dir := range r.Exits {
			dirs = append(dirs, dir)
		}
		sort.Strings(dirs)
		parts := make([]string, 0, len(dirs))
		for _, dir := range dirs {
			parts = append(parts, fmt.Sprintf("%s -> %s", dir, m.rooms[r.Exits[dir]].Name))
		}
		fmt.Fprintf(&sb, "%s (row %d, col %d): %s\n", r.Name, r.Row, r.Col, strings.Join(parts, ", "))
	}
	return sb.String()
}

var opposite = map[string]string{
	"north": "south",
	"south": "north",
	"east":  "west",
	"west":  "east",
}
