package world

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func TestVillage_IsValid(t *testing.T) {
	m := Village()
	if len(m.Rooms) != 9 {
		t.Fatalf("Expected 9 rooms, got %d", len(m.Rooms))
	}
	if m.Start != "home" {
		t.Errorf("Expected start room home, got %s", m.Start)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Expected valid map, got %v", err)
	}
}

func TestParseMap_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown start",
			yaml: "start: nowhere\nrooms:\n  - id: a\n    name: A\n",
			want: "start room",
		},
		{
			name: "one way exit",
			yaml: "start: a\nrooms:\n  - id: a\n    name: A\n    exits: {east: b}\n  - id: b\n    name: B\n",
			want: "no matching west exit",
		},
		{
			name: "locked container without key",
			yaml: "start: a\nrooms:\n  - id: a\n    name: A\ncontainers:\n  - id: box\n    room: a\n    state: locked\n",
			want: "has no key",
		},
		{
			name: "item nowhere",
			yaml: "start: a\nrooms:\n  - id: a\n    name: A\nitems:\n  - id: coin\n    name: coin\n",
			want: "has no location",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMap([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestShortestPath_AllPairsManhattan(t *testing.T) {
	m := Village()
	for _, from := range m.Rooms {
		for _, to := range m.Rooms {
			path, err := m.ShortestPath(from.ID, to.ID)
			if err != nil {
				t.Fatalf("%s -> %s: unexpected error %v", from.ID, to.ID, err)
			}
			want := abs(from.Row-to.Row) + abs(from.Col-to.Col)
			if len(path) != want {
				t.Errorf("%s -> %s: expected %d steps, got %d (%v)", from.ID, to.ID, want, len(path), Strings(path))
			}

			cur := from.ID
			for _, step := range path {
				if step.Verb != VerbGo {
					t.Fatalf("%s -> %s: non-go step %s", from.ID, to.ID, step)
				}
				next, ok := m.rooms[cur].Exits[step.Object]
				if !ok {
					t.Fatalf("%s -> %s: illegal step %s from %s", from.ID, to.ID, step, cur)
				}
				cur = next
			}
			if cur != to.ID {
				t.Errorf("%s -> %s: path ends in %s", from.ID, to.ID, cur)
			}
		}
	}
}

func TestShortestPath_TieBreak(t *testing.T) {
	m := Village()
	tests := []struct {
		from, to string
		want     []string
	}{
		{"home", "shop", []string{"go north", "go north"}},
		{"home", "forest", []string{"go east", "go east"}},
		{"home", "center_park", []string{"go north", "go east"}},
		{"shop", "forest", []string{"go south", "go south", "go east", "go east"}},
		{"forest", "shop", []string{"go north", "go north", "go west", "go west"}},
		{"home", "home", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.from+"_"+tt.to, func(t *testing.T) {
			path, err := m.ShortestPath(tt.from, tt.to)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, Strings(path)); diff != "" {
				t.Errorf("path mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestShortestPath_UnknownRoom(t *testing.T) {
	_, err := Village().ShortestPath("home", "castle")
	if !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Expected ErrUnknownTarget, got %v", err)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    Command
		wantErr bool
	}{
		{input: "go north", want: Go("north")},
		{input: "  Go   NORTH. ", want: Go("north")},
		{input: "take money", want: Take("money")},
		{input: "take the rope from the vendor", want: TakeFrom("rope", "vendor")},
		{input: "open vendor", want: Open("vendor")},
		{input: "close vendor", want: Close("vendor")},
		{input: "unlock vendor with money", want: Unlock("vendor", "money")},
		{input: "insert rope into well", want: Insert("rope", "well")},
		{input: "look", want: Look()},
		{input: "inventory", want: Command{Verb: VerbInventory}},
		{input: "go up", wantErr: true},
		{input: "buy rope", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCommand) {
					t.Errorf("Expected ErrUnknownCommand, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if reparsed, _ := ParseCommand(got.String()); reparsed != got {
				t.Errorf("String() %q does not round trip", got.String())
			}
		})
	}
}

func stepAll(t *testing.T, a *Adapter, cmds ...string) {
	t.Helper()
	for _, c := range cmds {
		if _, _, err := a.Step(c); err != nil {
			t.Fatalf("step %q failed: %v", c, err)
		}
	}
}

func route(t *testing.T, m *Map, from, to string) []string {
	t.Helper()
	p, err := m.ShortestPath(from, to)
	if err != nil {
		t.Fatalf("route %s -> %s: %v", from, to, err)
	}
	return Strings(p)
}

func TestAdapter_InitialState(t *testing.T) {
	a := NewAdapter(NewEngine(Village()))
	ws := a.State()

	if ws.Location != "Home" {
		t.Errorf("Expected location Home, got %s", ws.Location)
	}
	if len(ws.Inventory) != 0 {
		t.Errorf("Expected empty inventory, got %v", ws.Inventory)
	}
	want := map[string][]string{
		"sheriff": {},
		"well":    {"knife"},
		"vendor":  {"rope", "wine"},
		"drunker": {"rope"},
	}
	if diff := cmp.Diff(want, ws.ContainerContents); diff != "" {
		t.Errorf("contents mismatch (-want +got):\n%s", diff)
	}
	if ws.Done {
		t.Error("Expected game not done")
	}
	if !strings.Contains(a.Observation(), "-= Home =-") {
		t.Errorf("Expected home description, got %q", a.Observation())
	}
}

func TestAdapter_BuyRope(t *testing.T) {
	a := NewAdapter(NewEngine(Village()))
	stepAll(t, a,
		"take money", "go north", "go north",
		"unlock vendor with money", "open vendor", "take rope from vendor",
		"insert money into vendor", "close vendor",
	)
	ws := a.State()
	if ws.Location != "Shop" {
		t.Errorf("Expected Shop, got %s", ws.Location)
	}
	if diff := cmp.Diff([]string{"rope"}, ws.Inventory); diff != "" {
		t.Errorf("inventory mismatch (-want +got):\n%s", diff)
	}
	if !ws.Contains("vendor", "money") {
		t.Error("Expected money in vendor")
	}
	if ws.Contains("vendor", "rope") {
		t.Error("Expected rope to have left the vendor")
	}
}

func TestEngine_IllegalCommands(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
		cmd   string
	}{
		{name: "wall", cmd: "go south"},
		{name: "item not here", cmd: "take knife"},
		{name: "container in other room", cmd: "open vendor"},
		{name: "locked container", setup: []string{"go north", "go north"}, cmd: "open vendor"},
		{name: "unlock without key", setup: []string{"go north", "go north"}, cmd: "unlock vendor with money"},
		{name: "wrong key", setup: []string{"take money", "go east", "go east"}, cmd: "unlock drunker with money"},
		{name: "take from locked", setup: []string{"go north", "go north"}, cmd: "take rope from vendor"},
		{name: "insert without item", setup: []string{"go north", "go east"}, cmd: "insert rope into well"},
		{name: "close closed", setup: []string{"take money", "go north", "go north", "unlock vendor with money"}, cmd: "close vendor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(Village())
			a := NewAdapter(e)
			stepAll(t, a, tt.setup...)
			before := e.Snapshot()

			obs, done, err := a.Step(tt.cmd)
			if !errors.Is(err, ErrIllegalCommand) {
				t.Fatalf("Expected ErrIllegalCommand, got %v", err)
			}
			if obs == "" {
				t.Error("Expected an explanatory observation")
			}
			if done {
				t.Error("Expected game not done")
			}
			after := e.Snapshot()
			if after.Moves != before.Moves+1 {
				t.Errorf("Expected refused command to count as a move")
			}
			after.Moves, after.LastObs = before.Moves, before.LastObs
			if diff := cmp.Diff(before, after); diff != "" {
				t.Errorf("refused command changed state (-before +after):\n%s", diff)
			}
		})
	}
}

func TestEngine_UnknownCommand(t *testing.T) {
	a := NewAdapter(NewEngine(Village()))
	_, _, err := a.Step("dance wildly")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestEngine_GoodEndWalkthrough(t *testing.T) {
	m := Village()
	a := NewAdapter(NewEngine(m))

	stepAll(t, a, "take money")
	stepAll(t, a, route(t, m, "home", "shop")...)
	stepAll(t, a, "unlock vendor with money", "open vendor", "take wine from vendor", "insert money into vendor", "close vendor")
	stepAll(t, a, route(t, m, "shop", "forest")...)
	stepAll(t, a, "unlock drunker with wine", "open drunker", "insert wine into drunker", "take rope from drunker")
	stepAll(t, a, route(t, m, "forest", "center_park")...)
	stepAll(t, a, "insert rope into well", "take knife from well")
	stepAll(t, a, route(t, m, "center_park", "sheriff_office")...)

	if a.State().Done {
		t.Fatal("Expected game to still be running")
	}
	obs, done, err := a.Step("insert knife into sheriff")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !done {
		t.Error("Expected done after the knife reaches the sheriff")
	}
	if !strings.Contains(obs, "case is closed") {
		t.Errorf("Expected closing observation, got %q", obs)
	}
	ws := a.State()
	if got := ComputeWin(ws.ContainerContents); got != WinGoodEnd {
		t.Errorf("Expected good_end, got %s", got)
	}

	_, done, err = a.Step("go north")
	if err != nil || !done {
		t.Errorf("Expected steps after the end to report done, got done=%v err=%v", done, err)
	}
}

func TestEngine_RestoreAndClone(t *testing.T) {
	m := Village()
	e := NewEngine(m)
	a := NewAdapter(e)
	stepAll(t, a, "take money", "go north")

	restored := NewAdapter(NewEngine(m).Restore(e.Snapshot()))
	if diff := cmp.Diff(a.State(), restored.State()); diff != "" {
		t.Errorf("restored state mismatch (-orig +restored):\n%s", diff)
	}

	fork := a.Fork()
	stepAll(t, fork, "go north")
	if a.State().Location != "School" {
		t.Errorf("Expected original to stay in School, got %s", a.State().Location)
	}
	if fork.State().Location != "Shop" {
		t.Errorf("Expected fork in Shop, got %s", fork.State().Location)
	}
}

func TestComputeWin_AllPermutations(t *testing.T) {
	containers := []string{"sheriff", "well", "vendor", "drunker", ""}
	for _, knifeAt := range containers {
		for _, ropeAt := range containers {
			for _, extraRope := range []bool{false, true} {
				contents := map[string][]string{
					"sheriff": {}, "well": {}, "vendor": {"wine"}, "drunker": {},
				}
				if knifeAt != "" {
					contents[knifeAt] = append(contents[knifeAt], "knife")
				}
				if ropeAt != "" {
					contents[ropeAt] = append(contents[ropeAt], "rope")
				}
				if extraRope {
					contents["drunker"] = append(contents["drunker"], "rope")
				}

				want := WinIncomplete
				if knifeAt == "sheriff" {
					want = WinBadEnd
					if ropeAt == "vendor" {
						want = WinGoodEnd
					}
				}
				if got := ComputeWin(contents); got != want {
					t.Errorf("knife=%q rope=%q extra=%v: expected %s, got %s", knifeAt, ropeAt, extraRope, want, got)
				}
			}
		}
	}
}

func TestParseFact(t *testing.T) {
	f, err := ParseFact("in(knife, sheriff)")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.Name != "in" || len(f.Args) != 2 || f.Args[0] != "knife" || f.Args[1] != "sheriff" {
		t.Errorf("Unexpected fact %+v", f)
	}
	if f.String() != "in(knife, sheriff)" {
		t.Errorf("Expected round trip, got %s", f.String())
	}
	if _, err := ParseFact("nonsense"); err == nil {
		t.Error("Expected error for malformed fact")
	}
}

func TestAdjacencyTable(t *testing.T) {
	table := Village().AdjacencyTable()
	if !strings.Contains(table, "Home (row 3, col 1): east -> House, north -> School") {
		t.Errorf("Unexpected adjacency table:\n%s", table)
	}
}
