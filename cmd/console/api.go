package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jwebster45206/village-mystery/internal/handlers"
	"github.com/jwebster45206/village-mystery/pkg/chat"
)

// APIClient talks to the village mystery HTTP API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	return &APIClient{baseURL: baseURL, client: client}
}

func (c *APIClient) Health() error {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *APIClient) Chat(sessionID, input string) (*chat.ChatResponse, error) {
	var out chat.ChatResponse
	err := c.do(http.MethodPost, "/chat", chat.ChatRequest{SessionID: sessionID, UserInput: input}, &out)
	return &out, err
}

func (c *APIClient) Reset(sessionID string) (*handlers.ResetResponse, error) {
	var out handlers.ResetResponse
	err := c.do(http.MethodPost, "/reset", handlers.ResetRequest{SessionID: sessionID}, &out)
	return &out, err
}

func (c *APIClient) Inventory(sessionID string) ([]string, error) {
	var out handlers.InventoryResponse
	err := c.do(http.MethodGet, "/check_inventory?session_id="+url.QueryEscape(sessionID), nil, &out)
	return out.Inventory, err
}

func (c *APIClient) Location(sessionID string) (string, error) {
	var out handlers.LocationResponse
	err := c.do(http.MethodGet, "/check_location?session_id="+url.QueryEscape(sessionID), nil, &out)
	return out.Location, err
}

func (c *APIClient) Observation(sessionID string) (string, error) {
	var out handlers.ObservationResponse
	err := c.do(http.MethodGet, "/check_obs?session_id="+url.QueryEscape(sessionID), nil, &out)
	return out.Obs, err
}

func (c *APIClient) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
