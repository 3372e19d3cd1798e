package planner

import (
	"fmt"
	"regexp"

	"github.com/jwebster45206/village-mystery/pkg/prompts"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

// Expansion is what a special command turns into: the atomic commands, the
// room they must run in and the item the player must hold first.
type Expansion struct {
	Room     string
	Requires string
	Commands []world.Command
}

// SpecialTemplate is a named macro over atomic commands.
type SpecialTemplate struct {
	Name        string
	Description string
	Requires    string
	Pattern     *regexp.Regexp
	Expand      func(args []string, m *world.Map, facts []world.Fact) (Expansion, error)
}

// View is the prompt description of the template.
func (s SpecialTemplate) View() prompts.SpecialView {
	return prompts.SpecialView{Name: s.Name, Description: s.Description, Requires: s.Requires}
}

// Specials returns the village's special commands.
func Specials() []SpecialTemplate {
	return []SpecialTemplate{
		{
			Name:        "buy <item>",
			Description: "Buy an item from the vendor in the Shop, paying with money.",
			Requires:    "money",
			Pattern:     regexp.MustCompile(`^buy (?:a |an |some )?(.+)$`),
			Expand: func(args []string, m *world.Map, _ []world.Fact) (Expansion, error) {
				vendor, ok := m.Container("vendor")
				if !ok {
					return Expansion{}, fmt.Errorf("%w: no vendor on this map", world.ErrUnknownTarget)
				}
				item := args[0]
				return Expansion{
					Room:     vendor.Room,
					Requires: "money",
					Commands: []world.Command{
						world.Unlock("vendor", "money"),
						world.Open("vendor"),
						world.TakeFrom(item, "vendor"),
						world.Insert("money", "vendor"),
						world.Close("vendor"),
					},
				}, nil
			},
		},
		{
			Name:        "down to well",
			Description: "Climb down the well in Center Park on a rope and bring up what lies at the bottom.",
			Requires:    "rope",
			Pattern:     regexp.MustCompile(`^(?:go |climb )?down (?:to |into )?well$`),
			Expand: func(_ []string, m *world.Map, _ []world.Fact) (Expansion, error) {
				well, ok := m.Container("well")
				if !ok {
					return Expansion{}, fmt.Errorf("%w: no well on this map", world.ErrUnknownTarget)
				}
				return Expansion{
					Room:     well.Room,
					Requires: "rope",
					Commands: []world.Command{
						world.Insert("rope", "well"),
						world.TakeFrom("knife", "well"),
					},
				}, nil
			},
		},
		{
			Name:        "give <item> to <npc>",
			Description: "Hand an item to someone. A locked npc accepts the item that opens them up.",
			Requires:    "the item",
			Pattern:     regexp.MustCompile(`^give (.+?) to (.+)$`),
			Expand: func(args []string, m *world.Map, facts []world.Fact) (Expansion, error) {
				item, target := args[0], args[1]
				c, ok := m.Container(target)
				if !ok {
					return Expansion{}, fmt.Errorf("%w: %s can't take anything", world.ErrUnknownTarget, target)
				}
				var cmds []world.Command
				if containerState(facts, c.ID) == world.ContainerLocked {
					cmds = append(cmds, world.Unlock(c.ID, item), world.Open(c.ID))
				}
				cmds = append(cmds, world.Insert(item, c.ID))
				return Expansion{Room: c.Room, Requires: item, Commands: cmds}, nil
			},
		},
	}
}

func containerState(facts []world.Fact, id string) string {
	for _, f := range facts {
		if len(f.Args) != 1 || f.Args[0] != id {
			continue
		}
		switch f.Name {
		case world.ContainerOpen, world.ContainerClosed, world.ContainerLocked:
			return f.Name
		}
	}
	return ""
}
