package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HttpFetchTool is the dangerous-tool-set member requiring the explicit
// inject.network capability (spec §4.5, never implied by "inject" alone).
// Grounded on goclaw's web_fetch.go texture (net/http GET with a size cap)
// stripped of its HTML-to-markdown conversion, which is out of SPEC_FULL
// scope.
type HttpFetchTool struct {
	client *http.Client
}

func NewHttpFetchTool() *HttpFetchTool {
	return &HttpFetchTool{client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *HttpFetchTool) Name() string        { return "http_fetch" }
func (t *HttpFetchTool) Description() string { return "Fetch a URL over HTTP(S) and return its body." }
func (t *HttpFetchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{"type": "string"},
		},
		"required": []string{"url"},
	}
}

const httpFetchMaxBytes = 1 << 20 // 1MiB, matches goclaw's web_fetch size cap texture

func (t *HttpFetchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	url, _ := args["url"].(string)
	if url == "" {
		return ErrTool("invalid_args", "url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ErrTool("invalid_args", err.Error())
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return ErrTool("fetch_failed", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpFetchMaxBytes))
	if err != nil {
		return ErrTool("fetch_failed", err.Error())
	}
	return Ok(fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, body))
}
