package chat

import (
	"testing"
)

func TestFormatWithSpeaker(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		speaker  string
		expected string
	}{
		{
			name:     "adds speaker prefix to plain message",
			message:  "I look down the well.",
			speaker:  "Player",
			expected: "Player: I look down the well.",
		},
		{
			name:     "preserves existing speaker prefix",
			message:  "Alex: The well is dark.",
			speaker:  "Player",
			expected: "Alex: The well is dark.",
		},
		{
			name:     "preserves multi word speaker prefix",
			message:  "Helpful villager: I saw the vendor last night.",
			speaker:  "Player",
			expected: "Helpful villager: I saw the vendor last night.",
		},
		{
			name:     "sentence with punctuation before colon gets prefix",
			message:  "Look, there is a note: it is torn.",
			speaker:  "Player",
			expected: "Player: Look, there is a note: it is torn.",
		},
		{
			name:     "long prefix gets speaker",
			message:  "This is a really really really long opening: message",
			speaker:  "Alex",
			expected: "Alex: This is a really really really long opening: message",
		},
		{
			name:     "handles empty message",
			message:  "",
			speaker:  "Alex",
			expected: "Alex: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatWithSpeaker(tt.message, tt.speaker)
			if got != tt.expected {
				t.Errorf("FormatWithSpeaker(%q, %q) = %q, want %q", tt.message, tt.speaker, got, tt.expected)
			}
		})
	}
}

func TestChatRequest_Validate(t *testing.T) {
	tests := []struct {
		name        string
		request     ChatRequest
		expectError bool
		wantSession string
	}{
		{
			name:        "valid request keeps session",
			request:     ChatRequest{SessionID: "abc", UserInput: "go north"},
			wantSession: "abc",
		},
		{
			name:        "missing session uses default",
			request:     ChatRequest{UserInput: "look around"},
			wantSession: DefaultSessionID,
		},
		{
			name:        "empty input",
			request:     ChatRequest{SessionID: "abc"},
			expectError: true,
		},
		{
			name:        "whitespace input",
			request:     ChatRequest{UserInput: "   \t"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.request.SessionID != tt.wantSession {
				t.Errorf("Expected session %q, got %q", tt.wantSession, tt.request.SessionID)
			}
		})
	}
}
