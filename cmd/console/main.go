package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type ConsoleConfig struct {
	APIBaseURL string
	SessionID  string
	Timeout    time.Duration
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    2 * time.Minute,
	}
	flag.StringVar(&cfg.SessionID, "session", os.Getenv("SESSION_ID"), "session to resume (default: a new one)")
	flag.Parse()
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	api := NewAPIClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.Timeout})
	if err := api.Health(); err != nil {
		fmt.Fprintf(os.Stderr, "Could not connect to API: %v\nPlease ensure the API is running.\nTry: docker-compose up -d\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, api),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
