package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/village-mystery/pkg/oracle"
	"github.com/jwebster45206/village-mystery/pkg/oracle/oracletest"
	"github.com/jwebster45206/village-mystery/pkg/prompts"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

func newAdapter() *world.Adapter {
	return world.NewAdapter(world.NewEngine(world.Village()))
}

func approve(cmds ...string) string {
	return oracletest.Reply(map[string]any{"status": "approved", "commands": cmds, "reason": ""}, "Planning.")
}

func newPlanner(replies ...string) (*Planner, *oracletest.MockLLM) {
	llm := oracletest.NewMockLLM().On(prompts.TaskPlan, replies...)
	return New(oracle.New(llm, oracle.WithRetryDelay(0)), world.Village(), nil), llm
}

// walk runs commands for real, failing the test on any refusal.
func walk(t *testing.T, a *world.Adapter, cmds ...string) {
	t.Helper()
	for _, c := range cmds {
		_, _, err := a.Step(c)
		require.NoError(t, err, c)
	}
}

var buyRopeFromHome = []string{
	"take money", "go north", "go north",
	"unlock vendor with money", "open vendor", "take rope from vendor",
	"insert money into vendor", "close vendor",
}

func TestPlan_TakeMoneyAndBuyRope(t *testing.T) {
	tests := []struct {
		name         string
		proposal     []string
		wantWarnings int
	}{
		{name: "oracle routes", proposal: []string{"take money", "go north", "go north", "buy rope"}},
		{name: "planner routes", proposal: []string{"take money", "buy rope"}},
		{name: "illegal step dropped", proposal: []string{"take the money", "go west", "Buy rope."}, wantWarnings: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newPlanner(approve(tt.proposal...))
			a := newAdapter()

			res, err := p.Plan(context.Background(), "take money and buy rope", a)
			require.NoError(t, err)
			require.Equal(t, StatusApproved, res.Status, res.Reason)
			if diff := cmp.Diff(buyRopeFromHome, res.CommandStrings()); diff != "" {
				t.Errorf("plan mismatch (-want +got):\n%s", diff)
			}
			assert.Len(t, res.Warnings, tt.wantWarnings)

			// Planning alone never touches the real world.
			assert.Equal(t, "Home", a.Location())
			assert.Empty(t, a.Inventory())

			out, err := Execute(context.Background(), a, res.Commands)
			require.NoError(t, err)
			assert.False(t, out.Done)
			assert.Len(t, out.Executed, len(buyRopeFromHome))

			ws := a.State()
			assert.Equal(t, []string{"rope"}, ws.Inventory)
			assert.True(t, ws.Contains("vendor", "money"))
			assert.Equal(t, "Shop", ws.Location)
		})
	}
}

func TestPlan_LongerRouteKeptWithWarning(t *testing.T) {
	p, _ := newPlanner(approve("take money", "go east", "go north", "go north", "go west", "buy rope"))
	res, err := p.Plan(context.Background(), "buy rope the scenic way", newAdapter())
	require.NoError(t, err)
	require.Equal(t, StatusApproved, res.Status)
	assert.Equal(t, []string{
		"take money", "go east", "go north", "go north", "go west",
		"unlock vendor with money", "open vendor", "take rope from vendor",
		"insert money into vendor", "close vendor",
	}, res.CommandStrings())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "shortest is 2")
}

func TestPlan_BuyWithoutMoneyRejected(t *testing.T) {
	starts := map[string][]string{
		"home": nil,
		"shop": {"go north", "go north"},
	}
	for name, path := range starts {
		t.Run(name, func(t *testing.T) {
			p, _ := newPlanner(approve("buy rope"))
			a := newAdapter()
			walk(t, a, path...)
			before := a.State()

			res, err := p.Plan(context.Background(), "buy rope", a)
			require.NoError(t, err)
			assert.Equal(t, StatusRejected, res.Status)
			assert.True(t, errors.Is(res.Err, ErrPreconditionFailed))
			assert.Equal(t, "You need money to buy rope.", res.Reason)
			assert.Empty(t, res.Commands)

			after := a.State()
			assert.Equal(t, before, after)
			assert.Contains(t, a.Observation(), "-= "+before.Location+" =-", "a rejected plan costs one look")
		})
	}
}

func TestPlan_DownToWell(t *testing.T) {
	t.Run("with rope", func(t *testing.T) {
		p, _ := newPlanner(approve("down to the well"))
		a := newAdapter()
		walk(t, a, buyRopeFromHome...)

		res, err := p.Plan(context.Background(), "climb down the well", a)
		require.NoError(t, err)
		require.Equal(t, StatusApproved, res.Status, res.Reason)
		assert.Equal(t, []string{"go south", "go east", "insert rope into well", "take knife from well"}, res.CommandStrings())
	})

	t.Run("without rope", func(t *testing.T) {
		p, _ := newPlanner(approve("down to well"))
		res, err := p.Plan(context.Background(), "climb down the well", newAdapter())
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, res.Status)
		assert.ErrorIs(t, res.Err, ErrPreconditionFailed)
	})
}

func TestPlan_GoodEndWalkthrough(t *testing.T) {
	p, _ := newPlanner(approve(
		"take money", "buy wine", "give wine to drunker", "take rope from drunker",
		"down to well", "give knife to sheriff",
	))
	a := newAdapter()

	res, err := p.Plan(context.Background(), "solve it", a)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, res.Status, res.Reason)
	want := []string{
		"take money", "go north", "go north",
		"unlock vendor with money", "open vendor", "take wine from vendor", "insert money into vendor", "close vendor",
		"go south", "go south", "go east", "go east",
		"unlock drunker with wine", "open drunker", "insert wine into drunker",
		"take rope from drunker",
		"go north", "go west", "insert rope into well", "take knife from well",
		"go east", "insert knife into sheriff",
	}
	if diff := cmp.Diff(want, res.CommandStrings()); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}

	out, err := Execute(context.Background(), a, res.Commands)
	require.NoError(t, err)
	assert.True(t, out.Done)
	assert.Equal(t, world.WinGoodEnd, world.ComputeWin(a.ContainerContents()))
	assert.Contains(t, out.Message(), "The case is closed.")
}

func TestPlan_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr error
	}{
		{name: "give to villager", reply: approve("give money to villager"), wantErr: world.ErrUnknownTarget},
		{name: "illegal atomic", reply: approve("open vendor"), wantErr: world.ErrIllegalCommand},
		{name: "unknown verb", reply: approve("dance with sheriff"), wantErr: world.ErrUnknownCommand},
		{name: "oracle rejects", reply: oracletest.Reply(map[string]any{"status": "rejected", "commands": []string{}, "reason": "You have nothing to trade."})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newPlanner(tt.reply)
			a := newAdapter()
			res, err := p.Plan(context.Background(), "do it", a)
			require.NoError(t, err)
			assert.Equal(t, StatusRejected, res.Status)
			assert.NotEmpty(t, res.Reason)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Err, tt.wantErr)
			}
			assert.Equal(t, "Home", a.Location())
			assert.Empty(t, a.Inventory(), "all-or-nothing: nothing from the plan ran")
		})
	}
}

func TestPlan_PartialPlanNeverRuns(t *testing.T) {
	p, _ := newPlanner(approve("take money", "go north", "open well"))
	a := newAdapter()
	res, err := p.Plan(context.Background(), "x", a)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Empty(t, a.Inventory())
	assert.Equal(t, "Home", a.Location())
}

func TestPlan_Confused(t *testing.T) {
	p, _ := newPlanner(oracletest.Reply(map[string]any{"status": "confused", "commands": []string{}, "reason": "Unclear."}))
	a := newAdapter()
	obs := a.Observation()

	res, err := p.Plan(context.Background(), "blorp", a)
	require.NoError(t, err)
	assert.Equal(t, StatusConfused, res.Status)
	assert.Equal(t, "Unclear.", res.Reason)
	assert.Equal(t, obs, a.Observation())
}

func TestPlan_OracleErrors(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		p, llm := newPlanner(oracletest.Reply(map[string]any{"status": "approved", "commands": []string{}, "reason": ""}))
		_, err := p.Plan(context.Background(), "x", newAdapter())
		assert.ErrorIs(t, err, oracle.ErrMalformedResponse)
		assert.Equal(t, oracle.DefaultMaxAttempts, llm.CallsFor(prompts.TaskPlan))
	})

	t.Run("unavailable", func(t *testing.T) {
		llm := oracletest.NewMockLLM().OnError(prompts.TaskPlan, errors.New("timeout"))
		p := New(oracle.New(llm, oracle.WithRetryDelay(0)), world.Village(), nil)
		_, err := p.Plan(context.Background(), "x", newAdapter())
		assert.ErrorIs(t, err, oracle.ErrUnavailable)
	})
}

func TestPlan_PromptContents(t *testing.T) {
	p, llm := newPlanner(approve("look"))
	_, err := p.Plan(context.Background(), "look around", newAdapter())
	require.NoError(t, err)

	system := llm.Calls()[0].Messages[0].Content
	for _, want := range []string{
		"Home (row 3, col 1)",
		"vendor in Shop (locked)",
		"drunker in Forest (locked)",
		"buy <item>:",
		"down to well:",
		"give <item> to <npc>:",
	} {
		assert.Contains(t, system, want)
	}
}

func TestExecute_StopsWhenDone(t *testing.T) {
	a := newAdapter()
	eng := a.Simulator().(*world.Engine)
	// Put the player next to the sheriff with the knife in hand.
	s := eng.Snapshot()
	s.Player = "sheriff_office"
	s.Items["knife"] = world.Inventory
	s.Carried = []string{"knife"}
	a = world.NewAdapter(eng.Restore(s))

	out, err := Execute(context.Background(), a, []world.Command{
		world.Insert("knife", "sheriff"),
		world.Look(),
	})
	require.NoError(t, err)
	assert.True(t, out.Done)
	assert.Len(t, out.Executed, 1)
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Execute(ctx, newAdapter(), []world.Command{world.Look()})
	assert.ErrorIs(t, err, context.Canceled)
}
