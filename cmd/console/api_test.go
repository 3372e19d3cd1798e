package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/village-mystery/pkg/chat"
)

func newTestAPI(t *testing.T) *APIClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chat.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.UserInput == "busy" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"A turn is already in progress for this session."}`))
			return
		}
		_ = json.NewEncoder(w).Encode(chat.ChatResponse{
			SessionID: req.SessionID,
			Message:   "You said " + req.UserInput,
			Location:  "Home",
			Win:       "incomplete",
		})
	})
	mux.HandleFunc("/check_inventory", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s 1", r.URL.Query().Get("session_id"))
		_, _ = w.Write([]byte(`{"inventory":["money"]}`))
	})
	mux.HandleFunc("/check_location", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"location":"Home"}`))
	})
	mux.HandleFunc("/check_obs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"obs":"You are at Home."}`))
	})
	mux.HandleFunc("/reset", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("oops"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.URL, srv.Client())
}

func TestAPIClient(t *testing.T) {
	api := newTestAPI(t)

	require.NoError(t, api.Health())

	resp, err := api.Chat("s 1", "look")
	require.NoError(t, err)
	assert.Equal(t, "You said look", resp.Message)
	assert.Equal(t, "s 1", resp.SessionID)

	_, err = api.Chat("s 1", "busy")
	assert.EqualError(t, err, "A turn is already in progress for this session.")

	inv, err := api.Inventory("s 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"money"}, inv)

	loc, err := api.Location("s 1")
	require.NoError(t, err)
	assert.Equal(t, "Home", loc)

	obs, err := api.Observation("s 1")
	require.NoError(t, err)
	assert.Equal(t, "You are at Home.", obs)

	_, err = api.Reset("s 1")
	assert.ErrorContains(t, err, "API returned status 500: oops")
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name    string
		line    line
		contain []string
	}{
		{name: "narrator", line: line{speaker: AgentName, text: "The well is dark."}, contain: []string{"Alex:", "The well is dark."}},
		{name: "npc keeps its name", line: line{speaker: AgentName, text: "Villager: Good day."}, contain: []string{"Villager:", "Good day."}},
		{name: "player", line: line{speaker: "You", text: "go north"}, contain: []string{"You:", "go north"}},
		{name: "note", line: line{text: "You are at Home."}, contain: []string{"You are at Home."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatLine(tt.line, 60)
			for _, want := range tt.contain {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestWriteMetadata(t *testing.T) {
	out := writeMetadata("0123456789", sidePanel{location: "Shop", inventory: []string{"rope"}, win: "incomplete"})
	assert.Contains(t, out, "01234567...")
	assert.Contains(t, out, "Shop")
	assert.Contains(t, out, "• rope")
	assert.True(t, strings.Contains(out, "incomplete"))
}
