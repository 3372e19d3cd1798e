package prompts

import (
	"strings"
	"testing"

	"github.com/jwebster45206/village-mystery/pkg/chat"
	"github.com/jwebster45206/village-mystery/pkg/world"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func sampleWorld() world.WorldState {
	return world.WorldState{
		Location:  "Home",
		Inventory: []string{"money"},
		ContainerContents: map[string][]string{
			"vendor": {"rope", "wine"},
			"well":   {"knife"},
		},
	}
}

func history(n int) []chat.ChatMessage {
	var h []chat.ChatMessage
	for i := 0; i < n; i++ {
		h = append(h,
			chat.ChatMessage{Role: chat.ChatRoleUser, Content: "question one two"},
			chat.ChatMessage{Role: chat.ChatRoleAgent, Content: "answer one two"},
		)
	}
	return h
}

func TestNew(t *testing.T) {
	builder := New()
	if builder == nil {
		t.Fatal("Expected builder to be created, got nil")
	}
	if builder.historyLimit != 20 {
		t.Errorf("Expected default history limit of 20, got %d", builder.historyLimit)
	}
	if builder.messages == nil {
		t.Error("Expected messages slice to be initialized")
	}
}

func TestBuilder_RequiresTask(t *testing.T) {
	if _, err := New().WithUserMessage("hi").Build(); err == nil {
		t.Error("Expected error when task is missing")
	}
}

func TestBuilder_BuildOrder(t *testing.T) {
	msgs, err := New().
		WithTask(TaskClassify, ClassifyData{World: sampleWorld(), NPCs: []string{"sheriff", "vendor"}}).
		WithHistory(history(2)).
		WithUserMessage("go to the shop").
		Build()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(msgs) != 6 {
		t.Fatalf("Expected 6 messages, got %d", len(msgs))
	}
	if msgs[0].Role != chat.ChatRoleSystem {
		t.Errorf("Expected system first, got %s", msgs[0].Role)
	}
	if !strings.HasPrefix(msgs[0].Content, "Task: classify_intent\n") {
		t.Errorf("Expected task header, got %q", msgs[0].Content[:40])
	}
	last := msgs[len(msgs)-1]
	if last.Role != chat.ChatRoleUser || last.Content != "go to the shop" {
		t.Errorf("Expected user message last, got %+v", last)
	}
}

func TestBuilder_HistoryWindow(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		budget    int
		wantCount int
	}{
		{name: "no limit", limit: 0, wantCount: 10},
		{name: "even window", limit: 4, wantCount: 4},
		{name: "odd window keeps pairs", limit: 3, wantCount: 2},
		{name: "token budget", limit: 0, budget: 9, wantCount: 2},
		{name: "tiny budget", limit: 0, budget: 2, wantCount: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New().
				WithTask(TaskMemoryMerge, MemoryMergeData{Old: "a", New: "b"}).
				WithHistory(history(5)).
				WithHistoryLimit(tt.limit)
			if tt.budget > 0 {
				b.WithTokenBudget(tt.budget, wordCounter{})
			}
			msgs, err := b.Build()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			got := len(msgs) - 1
			if got != tt.wantCount {
				t.Errorf("Expected %d history messages, got %d", tt.wantCount, got)
			}
			if got > 0 && msgs[1].Role != chat.ChatRoleUser {
				t.Errorf("Expected history to start with a user message, got %s", msgs[1].Role)
			}
		})
	}
}

func TestRender_AllTasks(t *testing.T) {
	persona := Persona{DisplayName: "Alex", Description: "a ghostly guide.", Style: "dry", Room: "Home", Traits: []string{"curious"}}
	tests := []struct {
		task     string
		data     any
		contains []string
	}{
		{TaskClassify, ClassifyData{World: sampleWorld(), NPCs: []string{"sheriff"}}, []string{"Location: Home", "Inventory: money"}},
		{TaskPlan, PlanData{
			World:      sampleWorld(),
			Adjacency:  world.Village().AdjacencyTable(),
			Containers: []ContainerView{{ID: "vendor", Room: "Shop", State: "locked"}},
			Specials:   []SpecialView{{Name: "buy <item>", Description: "Trade money.", Requires: "money"}},
		}, []string{"vendor contains: rope, wine", "vendor in Shop (locked)", "buy <item>: Trade money. Requires money."}},
		{TaskMemoryQuery, MemoryQueryData{Characters: []string{"player"}, Types: []string{"fact"}, Original: "o", Query: "q"}, []string{"Looking for: q"}},
		{TaskMemoryExtract, MemoryExtractData{Characters: []string{"player"}, Types: []string{"fact"}, Conversation: "Player: hi"}, []string{"Player: hi"}},
		{TaskMemoryMerge, MemoryMergeData{Old: "old one", New: "new one"}, []string{"Old memory: old one"}},
		{TaskNarrate, NarrateData{Persona: persona, World: world.WorldState{Location: "Shop"}, Kind: "query", Memory: "the well is deep"}, []string{"You are Alex", "Inventory: nothing", "Retrieved memory: the well is deep"}},
		{TaskNPC, NPCData{Persona: persona, World: sampleWorld()}, []string{"You are in the Home.", "They carry: money"}},
	}
	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			out, err := Render(tt.task, tt.data)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !strings.HasPrefix(out, "Task: "+tt.task) {
				t.Errorf("Expected task header for %s", tt.task)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("Expected %q in rendered %s prompt:\n%s", want, tt.task, out)
				}
			}
		})
	}
}

func TestRender_UnknownTask(t *testing.T) {
	if _, err := Render("nope", nil); err == nil {
		t.Error("Expected error for unknown task")
	}
}
