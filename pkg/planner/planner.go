// Package planner turns an action request into a validated list of atomic
// world commands.
package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jwebster45206/village-mystery/pkg/oracle"
	"github.com/jwebster45206/village-mystery/pkg/prompts"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

var ErrPreconditionFailed = errors.New("precondition failed")

// Status is the outcome of planning.
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusConfused Status = "confused"
)

// Result is a plan. Commands is only set when approved; Err carries the
// cause of a server-side rejection.
type Result struct {
	Status   Status          `json:"status"`
	Commands []world.Command `json:"-"`
	Reason   string          `json:"reason,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Err      error           `json:"-"`
}

// CommandStrings renders the approved commands.
func (r Result) CommandStrings() []string {
	return world.Strings(r.Commands)
}

// proposal is the oracle's answer for plan_commands.
type proposal struct {
	Status   string   `json:"status"`
	Commands []string `json:"commands"`
	Reason   string   `json:"reason"`
}

func (p *proposal) Validate() error {
	switch Status(p.Status) {
	case StatusApproved:
		if len(p.Commands) == 0 {
			return errors.New("approved plan has no commands")
		}
	case StatusRejected, StatusConfused:
	default:
		return fmt.Errorf("unknown status %q", p.Status)
	}
	return nil
}

// Planner asks the oracle for a plan and enforces it against a copy of the
// world before anything real happens.
type Planner struct {
	oracle   oracle.Asker
	m        *world.Map
	specials []SpecialTemplate
	logger   *slog.Logger
}

// New creates a planner for a map.
func New(asker oracle.Asker, m *world.Map, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Planner{oracle: asker, m: m, specials: Specials(), logger: logger}
}

// Plan asks for commands that achieve goal and compiles them against a fork
// of the adapter's world. A rejected plan costs one real no-op turn; a
// confused one costs nothing.
func (p *Planner) Plan(ctx context.Context, goal string, adapter *world.Adapter) (Result, error) {
	msgs, err := prompts.New().
		WithTask(prompts.TaskPlan, p.promptData(adapter)).
		WithUserMessage(goal).
		Build()
	if err != nil {
		return Result{}, fmt.Errorf("failed to build plan prompt: %w", err)
	}

	var prop proposal
	if err := p.oracle.Ask(ctx, prompts.TaskPlan, msgs, &prop); err != nil {
		return Result{}, fmt.Errorf("failed to plan commands: %w", err)
	}

	var res Result
	switch Status(prop.Status) {
	case StatusConfused:
		return Result{Status: StatusConfused, Reason: prop.Reason}, nil
	case StatusRejected:
		res = Result{Status: StatusRejected, Reason: prop.Reason}
	default:
		res = p.Compile(prop.Commands, adapter)
	}

	if res.Status == StatusRejected {
		p.logger.Info("Plan rejected",
			"goal", goal,
			"reason", res.Reason,
			"error", res.Err)
		if _, _, err := adapter.Step(world.Look().String()); err != nil {
			p.logger.Warn("No-op turn failed", "error", err)
		}
	}
	for _, w := range res.Warnings {
		p.logger.Warn("Plan adjusted", "goal", goal, "warning", w)
	}
	return res, nil
}

// Compile expands special commands, routes to the rooms commands need and
// replays everything on a fork of the world. Any failure rejects the whole
// plan.
func (p *Planner) Compile(raw []string, adapter *world.Adapter) Result {
	c := &compiler{p: p, fork: adapter.Fork()}
	for _, line := range raw {
		if err := c.add(line); err != nil {
			c.flushRun()
			return Result{
				Status:   StatusRejected,
				Reason:   reasonFor(err),
				Warnings: c.warnings,
				Err:      err,
			}
		}
	}
	c.flushRun()
	if len(c.out) == 0 {
		return Result{Status: StatusConfused, Reason: "There was nothing to do.", Warnings: c.warnings}
	}
	return Result{Status: StatusApproved, Commands: c.out, Warnings: c.warnings}
}

func (p *Planner) promptData(adapter *world.Adapter) prompts.PlanData {
	facts := adapter.Facts()
	views := make([]prompts.ContainerView, 0, len(p.m.Containers))
	for _, ct := range p.m.Containers {
		room := ct.Room
		if r, ok := p.m.Room(ct.Room); ok {
			room = r.Name
		}
		views = append(views, prompts.ContainerView{ID: ct.ID, Room: room, State: containerState(facts, ct.ID)})
	}
	specials := make([]prompts.SpecialView, len(p.specials))
	for i, s := range p.specials {
		specials[i] = s.View()
	}
	return prompts.PlanData{
		World:      adapter.State(),
		Adjacency:  p.m.AdjacencyTable(),
		Containers: views,
		Specials:   specials,
	}
}

// reasonFor turns a compile error into something the narrator can say.
func reasonFor(err error) string {
	var pe *preconditionError
	if errors.As(err, &pe) {
		return fmt.Sprintf("You need %s to %s.", pe.item, pe.action)
	}
	return "That can't be done right now: " + err.Error()
}

type preconditionError struct {
	item   string
	action string
}

func (e *preconditionError) Error() string {
	return fmt.Sprintf("%s requires %s", e.action, e.item)
}

func (e *preconditionError) Unwrap() error { return ErrPreconditionFailed }

// compiler replays a proposal on a forked world.
type compiler struct {
	p        *Planner
	fork     *world.Adapter
	out      []world.Command
	warnings []string

	// The run of consecutive oracle go steps being replayed.
	runFrom string
	runLen  int
}

func (c *compiler) add(line string) error {
	norm := world.Normalize(line)
	for _, s := range c.p.specials {
		if m := s.Pattern.FindStringSubmatch(norm); m != nil {
			c.flushRun()
			return c.special(s, m[1:], norm)
		}
	}

	cmd, err := world.ParseCommand(norm)
	if err != nil {
		return err
	}
	if cmd.Verb == world.VerbGo {
		return c.oracleGo(cmd)
	}
	c.flushRun()

	if room := c.requiredRoom(cmd); room != "" {
		if err := c.routeTo(room); err != nil {
			return err
		}
	}
	return c.step(cmd)
}

func (c *compiler) special(s SpecialTemplate, args []string, norm string) error {
	exp, err := s.Expand(args, c.p.m, c.fork.Facts())
	if err != nil {
		return err
	}
	if exp.Requires != "" && !c.fork.State().Has(exp.Requires) {
		return &preconditionError{item: exp.Requires, action: norm}
	}
	if err := c.routeTo(exp.Room); err != nil {
		return err
	}
	for _, cmd := range exp.Commands {
		if err := c.step(cmd); err != nil {
			return err
		}
	}
	return nil
}

// oracleGo keeps a legal oracle step and drops an illegal one.
func (c *compiler) oracleGo(cmd world.Command) error {
	from := c.roomID()
	if _, _, err := c.fork.Step(cmd.String()); err != nil {
		if errors.Is(err, world.ErrIllegalCommand) {
			c.warnings = append(c.warnings, fmt.Sprintf("dropped illegal step %q", cmd))
			return nil
		}
		return err
	}
	if c.runLen == 0 {
		c.runFrom = from
	}
	c.runLen++
	c.out = append(c.out, cmd)
	return nil
}

// flushRun checks the finished run of oracle go steps against the shortest
// route between its ends.
func (c *compiler) flushRun() {
	if c.runLen == 0 {
		return
	}
	to := c.roomID()
	if shortest, err := c.p.m.Distance(c.runFrom, to); err == nil && c.runLen > shortest {
		c.warnings = append(c.warnings,
			fmt.Sprintf("route from %s to %s takes %d steps, shortest is %d", c.runFrom, to, c.runLen, shortest))
	}
	c.runLen = 0
	c.runFrom = ""
}

// requiredRoom is the room a command can only run in: the room of its
// container, or where a floor item lies.
func (c *compiler) requiredRoom(cmd world.Command) string {
	if name := cmd.TargetContainer(); name != "" {
		if ct, ok := c.p.m.Container(name); ok {
			return ct.Room
		}
		return ""
	}
	if cmd.Verb != world.VerbTake {
		return ""
	}
	for _, f := range c.fork.Facts() {
		if f.Name != "at" || len(f.Args) != 2 || f.Args[0] != cmd.Object {
			continue
		}
		if r, ok := c.p.m.RoomByName(f.Args[1]); ok {
			return r.ID
		}
	}
	return ""
}

func (c *compiler) routeTo(room string) error {
	path, err := c.p.m.ShortestPath(c.roomID(), room)
	if err != nil {
		return err
	}
	for _, cmd := range path {
		if err := c.step(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) step(cmd world.Command) error {
	if _, _, err := c.fork.Step(cmd.String()); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	c.out = append(c.out, cmd)
	return nil
}

func (c *compiler) roomID() string {
	if r, ok := c.p.m.RoomByName(c.fork.Location()); ok {
		return r.ID
	}
	return ""
}

// Outcome is what executing a plan did.
type Outcome struct {
	Observations []string
	Executed     []world.Command
	Done         bool
}

// Message joins the observations into the action confirmation.
func (o Outcome) Message() string {
	return strings.Join(o.Observations, "\n")
}

// Execute steps each command in order and stops early when the game ends.
func Execute(ctx context.Context, adapter *world.Adapter, cmds []world.Command) (Outcome, error) {
	var out Outcome
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		obs, done, err := adapter.Step(cmd.String())
		if err != nil {
			return out, fmt.Errorf("failed to execute %q: %w", cmd, err)
		}
		out.Observations = append(out.Observations, obs)
		out.Executed = append(out.Executed, cmd)
		if done {
			out.Done = true
			break
		}
	}
	return out, nil
}
