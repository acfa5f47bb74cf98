package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// apiClient is a thin REST client against the running daemon's management
// surface (spec §6.1), the CLI-talks-to-the-daemon-over-the-wire texture
// goclaw's agent_chat_client.go establishes for its WebSocket-RPC surface,
// adapted here to plain request/response HTTP since WOPR's surface is REST.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient() (*apiClient, error) {
	base := os.Getenv("WOPR_API_URL")
	if base == "" {
		base = "http://127.0.0.1:8787"
	}
	token := os.Getenv("WOPR_API_TOKEN")
	if token == "" {
		token = os.Getenv("WOPR_BOOTSTRAP_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("WOPR_API_TOKEN (or WOPR_BOOTSTRAP_TOKEN) must be set to talk to the daemon")
	}
	return &apiClient{baseURL: base, token: token, http: &http.Client{Timeout: 30 * time.Second}}, nil
}

func (c *apiClient) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, string(data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
