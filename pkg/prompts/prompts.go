package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/jwebster45206/village-mystery/pkg/world"
)

// Tasks. Each names a template and is the first line of its system prompt.
const (
	TaskClassify      = "classify_intent"
	TaskPlan          = "plan_commands"
	TaskMemoryQuery   = "memory_query"
	TaskMemoryExtract = "memory_extract"
	TaskMemoryMerge   = "memory_merge"
	TaskNarrate       = "narrate"
	TaskNPC           = "npc_reply"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{
			"join": strings.Join,
			"orNone": func(s string) string {
				if s == "" {
					return "nothing"
				}
				return s
			},
		}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// Render executes the template for a task.
func Render(task string, data any) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, task+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", task, err)
	}
	return sb.String(), nil
}

// Persona is the prompt view of a narrator or NPC.
type Persona struct {
	DisplayName string
	Description string
	Style       string
	Room        string
	Traits      []string
	Knowledge   []string
	Forbidden   []string
}

// ClassifyData feeds classify_intent.
type ClassifyData struct {
	World world.WorldState
	NPCs  []string
}

// ContainerView describes a container for the planner.
type ContainerView struct {
	ID    string
	Room  string
	State string
}

// SpecialView documents one special command for the planner.
type SpecialView struct {
	Name        string
	Description string
	Requires    string
}

// PlanData feeds plan_commands.
type PlanData struct {
	World      world.WorldState
	Adjacency  string
	Containers []ContainerView
	Specials   []SpecialView
}

// MemoryQueryData feeds memory_query.
type MemoryQueryData struct {
	Characters []string
	Types      []string
	Original   string
	Query      string
}

// MemoryExtractData feeds memory_extract.
type MemoryExtractData struct {
	Characters   []string
	Types        []string
	Conversation string
}

// MemoryMergeData feeds memory_merge.
type MemoryMergeData struct {
	Old string
	New string
}

// NarrateData feeds narrate.
type NarrateData struct {
	Persona     Persona
	World       world.WorldState
	Observation string
	Kind        string
	Memory      string
	Note        string
}

// NPCData feeds npc_reply.
type NPCData struct {
	Persona Persona
	World   world.WorldState
	Memory  string
}
