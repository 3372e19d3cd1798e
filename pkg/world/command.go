package world

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrIllegalCommand = errors.New("illegal command")
	ErrUnknownTarget  = errors.New("unknown target")
)

// Verb is the action part of an atomic command.
type Verb string

const (
	VerbGo        Verb = "go"
	VerbTake      Verb = "take"
	VerbTakeFrom  Verb = "take_from"
	VerbOpen      Verb = "open"
	VerbClose     Verb = "close"
	VerbUnlock    Verb = "unlock"
	VerbInsert    Verb = "insert"
	VerbLook      Verb = "look"
	VerbInventory Verb = "inventory"
)

// Command is one atomic world command.
type Command struct {
	Verb      Verb
	Object    string // item or container acted on, or direction for go
	Container string // container for take-from / insert, key for unlock
}

var commandPatterns = []struct {
	re    *regexp.Regexp
	build func([]string) Command
}{
	{regexp.MustCompile(`^go (north|south|east|west)$`), func(m []string) Command { return Go(m[1]) }},
	{regexp.MustCompile(`^take (.+) from (.+)$`), func(m []string) Command { return TakeFrom(m[1], m[2]) }},
	{regexp.MustCompile(`^take (.+)$`), func(m []string) Command { return Take(m[1]) }},
	{regexp.MustCompile(`^open (.+)$`), func(m []string) Command { return Open(m[1]) }},
	{regexp.MustCompile(`^close (.+)$`), func(m []string) Command { return Close(m[1]) }},
	{regexp.MustCompile(`^unlock (.+) with (.+)$`), func(m []string) Command { return Unlock(m[1], m[2]) }},
	{regexp.MustCompile(`^insert (.+) into (.+)$`), func(m []string) Command { return Insert(m[1], m[2]) }},
	{regexp.MustCompile(`^(?:look|l)$`), func([]string) Command { return Command{Verb: VerbLook} }},
	{regexp.MustCompile(`^(?:inventory|i)$`), func([]string) Command { return Command{Verb: VerbInventory} }},
}

// ParseCommand normalises and parses a command string.
func ParseCommand(s string) (Command, error) {
	norm := Normalize(s)
	for _, p := range commandPatterns {
		if m := p.re.FindStringSubmatch(norm); m != nil {
			return p.build(m), nil
		}
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Normalize lowercases a command, trims trailing punctuation and drops "the".
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!")
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if f == "the" {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

func Go(dir string) Command { return Command{Verb: VerbGo, Object: dir} }

func Take(item string) Command { return Command{Verb: VerbTake, Object: item} }

func TakeFrom(item, container string) Command {
	return Command{Verb: VerbTakeFrom, Object: item, Container: container}
}

func Open(container string) Command { return Command{Verb: VerbOpen, Object: container} }

func Close(container string) Command { return Command{Verb: VerbClose, Object: container} }

func Unlock(container, key string) Command {
	return Command{Verb: VerbUnlock, Object: container, Container: key}
}

func Insert(item, container string) Command {
	return Command{Verb: VerbInsert, Object: item, Container: container}
}

func Look() Command { return Command{Verb: VerbLook} }

func (c Command) String() string {
	switch c.Verb {
	case VerbGo:
		return "go " + c.Object
	case VerbTake:
		return "take " + c.Object
	case VerbTakeFrom:
		return "take " + c.Object + " from " + c.Container
	case VerbOpen:
		return "open " + c.Object
	case VerbClose:
		return "close " + c.Object
	case VerbUnlock:
		return "unlock " + c.Object + " with " + c.Container
	case VerbInsert:
		return "insert " + c.Object + " into " + c.Container
	case VerbLook:
		return "look"
	case VerbInventory:
		return "inventory"
	}
	return string(c.Verb)
}

// TargetContainer is the container a command needs to be next to, if any.
func (c Command) TargetContainer() string {
	switch c.Verb {
	case VerbTakeFrom, VerbInsert:
		return c.Container
	case VerbOpen, VerbClose, VerbUnlock:
		return c.Object
	}
	return ""
}

// Strings renders a command list.
func Strings(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}
