package world

import (
	"sort"
)

// Simulator is a turn-based text world in the TextWorld mould.
type Simulator interface {
	Reset() (string, []Fact)
	Step(command string) (obs string, reward int, done bool, facts []Fact, err error)
	Facts() []Fact
	Observation() string
	Clone() Simulator
}

// WorldState is the view of the world other components read.
type WorldState struct {
	Location          string              `json:"location"`
	Inventory         []string            `json:"inventory"`
	ContainerContents map[string][]string `json:"container_contents"`
	Done              bool                `json:"done"`
}

// Has reports whether the player carries an item.
func (ws WorldState) Has(item string) bool {
	for _, it := range ws.Inventory {
		if it == item {
			return true
		}
	}
	return false
}

// Contains reports whether a container holds an item.
func (ws WorldState) Contains(container, item string) bool {
	for _, it := range ws.ContainerContents[container] {
		if it == item {
			return true
		}
	}
	return false
}

// Adapter wraps a Simulator and derives WorldState from its facts after
// every step.
type Adapter struct {
	sim   Simulator
	obs   string
	facts []Fact
	done  bool
}

// NewAdapter wraps a simulator in whatever state it is currently in.
func NewAdapter(sim Simulator) *Adapter {
	a := &Adapter{sim: sim, obs: sim.Observation()}
	a.refresh(sim.Facts(), false)
	return a
}

// Reset restarts the underlying simulator.
func (a *Adapter) Reset() string {
	obs, facts := a.sim.Reset()
	a.obs = obs
	a.refresh(facts, false)
	return obs
}

// Step runs one atomic command. A refused command still counts as a turn in
// the simulator; its observation is returned with the error.
func (a *Adapter) Step(command string) (string, bool, error) {
	obs, _, done, facts, err := a.sim.Step(command)
	a.obs = obs
	a.refresh(facts, done)
	return obs, a.done, err
}

// Fork returns an adapter over an independent copy of the simulator, for
// dry runs.
func (a *Adapter) Fork() *Adapter {
	return &Adapter{
		sim:   a.sim.Clone(),
		obs:   a.obs,
		facts: append([]Fact(nil), a.facts...),
		done:  a.done,
	}
}

// Simulator exposes the wrapped simulator.
func (a *Adapter) Simulator() Simulator {
	return a.sim
}

func (a *Adapter) refresh(facts []Fact, done bool) {
	a.facts = facts
	a.done = done
	for _, f := range facts {
		if f.Name == "in" && len(f.Args) == 2 && f.Args[0] == "knife" && f.Args[1] == "sheriff" {
			a.done = true
		}
	}
}

// Observation is the text from the most recent reset or step.
func (a *Adapter) Observation() string {
	return a.obs
}

// Facts returns the most recent fact list.
func (a *Adapter) Facts() []Fact {
	return append([]Fact(nil), a.facts...)
}

// Location is the display name of the player's room.
func (a *Adapter) Location() string {
	for _, f := range a.facts {
		if f.Name == "at" && len(f.Args) == 2 && f.Args[0] == "P" {
			return f.Args[1]
		}
	}
	return ""
}

// Inventory lists carried item names in pick-up order.
func (a *Adapter) Inventory() []string {
	inv := []string{}
	for _, f := range a.facts {
		if f.Name == "in" && len(f.Args) == 2 && f.Args[1] == Inventory {
			inv = append(inv, f.Args[0])
		}
	}
	return inv
}

// ContainerContents maps each container to the sorted, de-duplicated names
// of the items inside it. Containers that exist but are empty are present
// with an empty list.
func (a *Adapter) ContainerContents() map[string][]string {
	sets := make(map[string]map[string]bool)
	for _, f := range a.facts {
		if len(f.Args) != 2 {
			continue
		}
		switch {
		case f.Name == "at" && f.Args[0] != "P":
			if isContainerFact(a.facts, f.Args[0]) {
				if sets[f.Args[0]] == nil {
					sets[f.Args[0]] = make(map[string]bool)
				}
			}
		case f.Name == "in" && f.Args[1] != Inventory:
			if sets[f.Args[1]] == nil {
				sets[f.Args[1]] = make(map[string]bool)
			}
			sets[f.Args[1]][f.Args[0]] = true
		}
	}
	out := make(map[string][]string, len(sets))
	for c, items := range sets {
		list := make([]string, 0, len(items))
		for it := range items {
			list = append(list, it)
		}
		sort.Strings(list)
		out[c] = list
	}
	return out
}

func isContainerFact(facts []Fact, name string) bool {
	for _, f := range facts {
		if len(f.Args) == 1 && f.Args[0] == name {
			switch f.Name {
			case ContainerOpen, ContainerClosed, ContainerLocked:
				return true
			}
		}
	}
	return false
}

// State assembles the current WorldState.
func (a *Adapter) State() WorldState {
	return WorldState{
		Location:          a.Location(),
		Inventory:         a.Inventory(),
		ContainerContents: a.ContainerContents(),
		Done:              a.done,
	}
}
