package world

import (
	"fmt"
	"sort"
	"strings"
)

// Holder for items carried by the player.
const Inventory = "I"

const roomPrefix = "room:"

// State is the mutable part of a running world. It is what gets persisted
// between turns.
type State struct {
	Player     string            `json:"player"`     // Room ID
	Items      map[string]string `json:"items"`      // Item ID → holder ("I", "room:<id>" or container ID)
	Carried    []string          `json:"carried"`    // Item IDs in pick-up order
	Containers map[string]string `json:"containers"` // Container ID → open/closed/locked
	Moves      int               `json:"moves"`
	Done       bool              `json:"done"`
	LastObs    string            `json:"last_obs"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Items = make(map[string]string, len(s.Items))
	for k, v := range s.Items {
		c.Items[k] = v
	}
	c.Carried = append([]string(nil), s.Carried...)
	c.Containers = make(map[string]string, len(s.Containers))
	for k, v := range s.Containers {
		c.Containers[k] = v
	}
	return c
}

// Engine simulates the village turn by turn. It is not safe for concurrent use.
type Engine struct {
	m *Map
	s State
}

var _ Simulator = (*Engine)(nil)

// NewEngine creates an engine in the map's initial state.
func NewEngine(m *Map) *Engine {
	e := &Engine{m: m}
	e.Reset()
	return e
}

// Restore replaces the engine state with a previously saved one.
func (e *Engine) Restore(s State) *Engine {
	e.s = s.Clone()
	return e
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	return e.s.Clone()
}

// Map returns the static layout the engine runs on.
func (e *Engine) Map() *Map {
	return e.m
}

// Reset puts every item back where the map places it.
func (e *Engine) Reset() (string, []Fact) {
	s := State{
		Player:     e.m.Start,
		Items:      make(map[string]string, len(e.m.Items)),
		Containers: make(map[string]string, len(e.m.Containers)),
	}
	for _, it := range e.m.Items {
		if it.Room != "" {
			s.Items[it.ID] = roomPrefix + it.Room
		} else {
			s.Items[it.ID] = it.In
		}
	}
	for _, c := range e.m.Containers {
		s.Containers[c.ID] = c.State
	}
	e.s = s
	e.s.LastObs = e.describeRoom()
	return e.s.LastObs, e.Facts()
}

// Clone returns an independent engine sharing the same map.
func (e *Engine) Clone() Simulator {
	return &Engine{m: e.m, s: e.s.Clone()}
}

// Observation is the text produced by the last step.
func (e *Engine) Observation() string {
	return e.s.LastObs
}

// Step runs one command. Every call counts as a move, including ones the
// world refuses. A refused command leaves the state unchanged and returns an
// error wrapping ErrIllegalCommand or ErrUnknownCommand.
func (e *Engine) Step(command string) (string, int, bool, []Fact, error) {
	e.s.Moves++
	if e.s.Done {
		e.s.LastObs = "The story is over."
		return e.s.LastObs, 0, true, e.Facts(), nil
	}

	cmd, err := ParseCommand(command)
	if err != nil {
		e.s.LastObs = "That's not a verb I recognise."
		return e.s.LastObs, 0, false, e.Facts(), err
	}

	obs, err := e.apply(cmd)
	if err != nil {
		e.s.LastObs = obs
		return obs, 0, false, e.Facts(), err
	}

	reward := 0
	if e.holder("knife") == "sheriff" {
		e.s.Done = true
		reward = 1
		obs += "\nThe sheriff examines the bloody knife. The case is closed."
	}
	e.s.LastObs = obs
	return obs, reward, e.s.Done, e.Facts(), nil
}

func illegal(obs string) (string, error) {
	return obs, fmt.Errorf("%w: %s", ErrIllegalCommand, obs)
}

func (e *Engine) apply(cmd Command) (string, error) {
	switch cmd.Verb {
	case VerbLook:
		return e.describeRoom(), nil
	case VerbInventory:
		return e.describeInventory(), nil
	case VerbGo:
		to, ok := e.m.rooms[e.s.Player].Exits[cmd.Object]
		if !ok {
			return illegal("You can't go that way.")
		}
		e.s.Player = to
		return e.describeRoom(), nil
	case VerbTake:
		id := e.findItem(cmd.Object, roomPrefix+e.s.Player)
		if id == "" {
			return illegal(fmt.Sprintf("You can't see any %s here.", cmd.Object))
		}
		e.carry(id)
		return fmt.Sprintf("You pick up the %s from the ground.", cmd.Object), nil
	case VerbTakeFrom:
		c, obs, ok := e.reachableContainer(cmd.Container)
		if !ok {
			return illegal(obs)
		}
		if e.s.Containers[c.ID] != ContainerOpen {
			return illegal(fmt.Sprintf("The %s is closed.", c.ID))
		}
		id := e.findItem(cmd.Object, c.ID)
		if id == "" {
			return illegal(fmt.Sprintf("There is no %s in the %s.", cmd.Object, c.ID))
		}
		e.carry(id)
		return fmt.Sprintf("You take the %s from the %s.", cmd.Object, c.ID), nil
	case VerbOpen:
		c, obs, ok := e.reachableContainer(cmd.Object)
		if !ok {
			return illegal(obs)
		}
		switch e.s.Containers[c.ID] {
		case ContainerLocked:
			return illegal(fmt.Sprintf("The %s is locked.", c.ID))
		case ContainerOpen:
			return illegal(fmt.Sprintf("The %s is already open.", c.ID))
		}
		e.s.Containers[c.ID] = ContainerOpen
		return fmt.Sprintf("You open the %s.%s", c.ID, e.describeContents(c.ID)), nil
	case VerbClose:
		c, obs, ok := e.reachableContainer(cmd.Object)
		if !ok {
			return illegal(obs)
		}
		if e.s.Containers[c.ID] != ContainerOpen {
			return illegal(fmt.Sprintf("The %s is already closed.", c.ID))
		}
		e.s.Containers[c.ID] = ContainerClosed
		return fmt.Sprintf("You close the %s.", c.ID), nil
	case VerbUnlock:
		c, obs, ok := e.reachableContainer(cmd.Object)
		if !ok {
			return illegal(obs)
		}
		if e.s.Containers[c.ID] != ContainerLocked {
			return illegal(fmt.Sprintf("The %s is not locked.", c.ID))
		}
		if e.findItem(cmd.Container, Inventory) == "" {
			return illegal(fmt.Sprintf("You don't have any %s.", cmd.Container))
		}
		if c.Key != cmd.Container {
			return illegal(fmt.Sprintf("The %s doesn't fit the %s.", cmd.Container, c.ID))
		}
		e.s.Containers[c.ID] = ContainerClosed
		return fmt.Sprintf("You unlock the %s with the %s.", c.ID, cmd.Container), nil
	case VerbInsert:
		c, obs, ok := e.reachableContainer(cmd.Container)
		if !ok {
			return illegal(obs)
		}
		id := e.findItem(cmd.Object, Inventory)
		if id == "" {
			return illegal(fmt.Sprintf("You don't have any %s.", cmd.Object))
		}
		if e.s.Containers[c.ID] != ContainerOpen {
			return illegal(fmt.Sprintf("The %s is closed.", c.ID))
		}
		e.drop(id, c.ID)
		return fmt.Sprintf("You put the %s into the %s.", cmd.Object, c.ID), nil
	}
	return illegal("Nothing happens.")
}

func (e *Engine) reachableContainer(name string) (*ContainerDef, string, bool) {
	c, ok := e.m.Container(name)
	if !ok {
		return nil, fmt.Sprintf("You can't see any %s here.", name), false
	}
	if c.Room != e.s.Player {
		return nil, fmt.Sprintf("You can't see any %s here.", name), false
	}
	return c, "", true
}

// findItem returns the first item ID with the given name at a holder.
func (e *Engine) findItem(name, holder string) string {
	if holder == Inventory {
		for _, id := range e.s.Carried {
			if e.itemName(id) == name {
				return id
			}
		}
		return ""
	}
	for _, it := range e.m.Items {
		if it.Name == name && e.s.Items[it.ID] == holder {
			return it.ID
		}
	}
	return ""
}

func (e *Engine) itemName(id string) string {
	for _, it := range e.m.Items {
		if it.ID == id {
			return it.Name
		}
	}
	return id
}

// holder returns where the first item with this name is.
func (e *Engine) holder(name string) string {
	for _, it := range e.m.Items {
		if it.Name == name {
			if h := e.s.Items[it.ID]; h != "" {
				return h
			}
		}
	}
	return ""
}

func (e *Engine) carry(id string) {
	e.s.Items[id] = Inventory
	e.s.Carried = append(e.s.Carried, id)
}

func (e *Engine) drop(id, holder string) {
	e.s.Items[id] = holder
	for i, c := range e.s.Carried {
		if c == id {
			e.s.Carried = append(e.s.Carried[:i], e.s.Carried[i+1:]...)
			break
		}
	}
}

func (e *Engine) describeRoom() string {
	r := e.m.rooms[e.s.Player]
	var sb strings.Builder
	fmt.Fprintf(&sb, "-= %s =-\n%s", r.Name, r.Description)
	for _, c := range e.m.Containers {
		if c.Room == r.ID {
			fmt.Fprintf(&sb, "\nThere is a %s here (%s).", c.ID, e.s.Containers[c.ID])
		}
	}
	var floor []string
	for _, it := range e.m.Items {
		if e.s.Items[it.ID] == roomPrefix+r.ID {
			floor = append(floor, it.Name)
		}
	}
	if len(floor) > 0 {
		fmt.Fprintf(&sb, "\nOn the floor: %s.", strings.Join(floor, ", "))
	}
	exits := make([]string, 0, len(r.Exits))
	for _, dir := range Directions {
		if _, ok := r.Exits[dir]; ok {
			exits = append(exits, dir)
		}
	}
	fmt.Fprintf(&sb, "\nExits: %s.", strings.Join(exits, ", "))
	return sb.String()
}

func (e *Engine) describeInventory() string {
	if len(e.s.Carried) == 0 {
		return "You are carrying nothing."
	}
	names := make([]string, len(e.s.Carried))
	for i, id := range e.s.Carried {
		names[i] = e.itemName(id)
	}
	return "You are carrying: " + strings.Join(names, ", ") + "."
}

func (e *Engine) describeContents(container string) string {
	var names []string
	for _, it := range e.m.Items {
		if e.s.Items[it.ID] == container {
			names = append(names, it.Name)
		}
	}
	if len(names) == 0 {
		return " It is empty."
	}
	sort.Strings(names)
	return " Inside you see: " + strings.Join(names, ", ") + "."
}
