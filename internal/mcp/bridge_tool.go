package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/wopr/internal/tools"
)

// bridgeTool adapts one MCP server tool into the tools.Tool interface so
// it can sit in the same Registry as WOPR's static tools.
type bridgeTool struct {
	server     string
	original   mcpgo.Tool
	client     *mcpclient.Client
	prefix     string
	timeoutSec int
	connected  *atomic.Bool
}

func newBridgeTool(server string, tool mcpgo.Tool, client *mcpclient.Client, prefix string, timeoutSec int, connected *atomic.Bool) *bridgeTool {
	return &bridgeTool{
		server:     server,
		original:   tool,
		client:     client,
		prefix:     prefix,
		timeoutSec: timeoutSec,
		connected:  connected,
	}
}

// Name returns the registry-visible tool name: "<prefix><originalName>"
// when a prefix is configured, otherwise "mcp_<server>_<originalName>" to
// keep two servers exposing the same tool name from colliding.
func (b *bridgeTool) Name() string {
	if b.prefix != "" {
		return b.prefix + b.original.Name
	}
	return fmt.Sprintf("mcp_%s_%s", b.server, b.original.Name)
}

// OriginalName returns the tool name as advertised by the MCP server,
// independent of this bridge's registry-visible prefix.
func (b *bridgeTool) OriginalName() string {
	return b.original.Name
}

func (b *bridgeTool) Description() string {
	if b.original.Description == "" {
		return fmt.Sprintf("MCP tool %q from server %q", b.original.Name, b.server)
	}
	return b.original.Description
}

func (b *bridgeTool) Parameters() map[string]interface{} {
	schema := map[string]interface{}{
		"type": "object",
	}
	if b.original.InputSchema.Properties != nil {
		schema["properties"] = b.original.InputSchema.Properties
	}
	if len(b.original.InputSchema.Required) > 0 {
		schema["required"] = b.original.InputSchema.Required
	}
	return schema
}

func (b *bridgeTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	if !b.connected.Load() {
		return tools.ErrTool("mcp_unavailable", fmt.Sprintf("MCP server %q is currently disconnected", b.server))
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = b.original.Name
	req.Params.Arguments = args

	result, err := b.client.CallTool(ctx, req)
	if err != nil {
		return tools.ErrTool("mcp_call_failed", fmt.Sprintf("call %s.%s: %v", b.server, b.original.Name, err))
	}

	text := formatCallResult(result)
	if result.IsError {
		return tools.ErrTool("mcp_tool_error", text)
	}
	return tools.Ok(text)
}

// formatCallResult flattens an MCP CallToolResult's text content items
// into a single string for the provider.
func formatCallResult(result *mcpgo.CallToolResult) string {
	var parts []string
	for _, item := range result.Content {
		if tc, ok := item.(mcpgo.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 {
		return "(empty result)"
	}
	return strings.Join(parts, "\n")
}
