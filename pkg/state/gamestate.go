package state

import (
	"time"

	"github.com/jwebster45206/village-mystery/pkg/world"
)

// NarratorName is the history key of the narrator.
const NarratorName = "alex"

const DefaultNPCHistoryLimit = 4

// GameState is everything one play session owns: the world and every
// conversation in it.
type GameState struct {
	ID              string              `json:"id"`
	World           world.State         `json:"world"`
	Narrator        *History            `json:"narrator"`
	NPCs            map[string]*History `json:"npcs"`
	NPCHistoryLimit int                 `json:"npc_history_limit"`
	Turn            int                 `json:"turn"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// NewGameState creates a session at the start of the story.
func NewGameState(id string, w world.State, npcHistoryLimit int) *GameState {
	if npcHistoryLimit <= 0 {
		npcHistoryLimit = DefaultNPCHistoryLimit
	}
	now := time.Now()
	return &GameState{
		ID:              id,
		World:           w,
		Narrator:        NewHistory(NarratorName, 0),
		NPCs:            make(map[string]*History),
		NPCHistoryLimit: npcHistoryLimit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NPC returns the history with an NPC, creating it on first contact.
func (gs *GameState) NPC(name string) *History {
	if gs.NPCs == nil {
		gs.NPCs = make(map[string]*History)
	}
	h, ok := gs.NPCs[name]
	if !ok {
		h = NewHistory(name, gs.NPCHistoryLimit)
		gs.NPCs[name] = h
	}
	return h
}

// Clone returns a deep copy, so a failed turn can be thrown away.
func (gs *GameState) Clone() *GameState {
	c := *gs
	c.World = gs.World.Clone()
	if gs.Narrator != nil {
		c.Narrator = gs.Narrator.Clone()
	} else {
		c.Narrator = NewHistory(NarratorName, 0)
	}
	c.NPCs = make(map[string]*History, len(gs.NPCs))
	for k, h := range gs.NPCs {
		c.NPCs[k] = h.Clone()
	}
	return &c
}
