package world

import (
	"fmt"
	"regexp"
	"strings"
)

// Fact is one predicate about the world, e.g. in(knife, well).
type Fact struct {
	Name string
	Args []string
}

func (f Fact) String() string {
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(f.Args, ", "))
}

var factPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// ParseFact reads a fact in its String form.
func ParseFact(s string) (Fact, error) {
	m := factPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Fact{}, fmt.Errorf("invalid fact %q", s)
	}
	var args []string
	for _, a := range strings.Split(m[2], ",") {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	return Fact{Name: m[1], Args: args}, nil
}

// Facts lists the current world as predicates: at(P, room), at(x, room),
// in(x, I), in(x, container), open/closed/locked(container) and
// match(key, container). Inventory facts keep pick-up order.
func (e *Engine) Facts() []Fact {
	facts := []Fact{{Name: "at", Args: []string{"P", e.m.rooms[e.s.Player].Name}}}
	for _, id := range e.s.Carried {
		facts = append(facts, Fact{Name: "in", Args: []string{e.itemName(id), Inventory}})
	}
	for _, c := range e.m.Containers {
		facts = append(facts,
			Fact{Name: "at", Args: []string{c.ID, e.m.rooms[c.Room].Name}},
			Fact{Name: e.s.Containers[c.ID], Args: []string{c.ID}},
		)
		if c.Key != "" {
			facts = append(facts, Fact{Name: "match", Args: []string{c.Key, c.ID}})
		}
	}
	for _, it := range e.m.Items {
		h := e.s.Items[it.ID]
		switch {
		case h == Inventory:
		case strings.HasPrefix(h, roomPrefix):
			facts = append(facts, Fact{Name: "at", Args: []string{it.Name, e.m.rooms[strings.TrimPrefix(h, roomPrefix)].Name}})
		default:
			facts = append(facts, Fact{Name: "in", Args: []string{it.Name, h}})
		}
	}
	return facts
}
