package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/tools"
)

// connectServer dials a single MCP server, runs the initialize handshake,
// discovers its tools, and registers a BridgeTool for each one that
// doesn't collide with an already-registered name.
func (m *Manager) connectServer(ctx context.Context, name string, cfg config.MCPServerConfig) error {
	client, err := createClient(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if cfg.Transport != "stdio" {
		if err := client.Start(ctx); err != nil {
			_ = client.Close()
			return fmt.Errorf("start transport: %w", err)
		}
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{
		Name:    "wopr",
		Version: "1.0.0",
	}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	toolsResult, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 60
	}

	ss := &serverState{
		name:       name,
		transport:  cfg.Transport,
		client:     client,
		timeoutSec: timeoutSec,
	}
	ss.connected.Store(true)

	var registered []string
	for _, mcpTool := range toolsResult.Tools {
		bt := newBridgeTool(name, mcpTool, client, cfg.ToolPrefix, timeoutSec, &ss.connected)
		if _, exists := m.registry.Get(bt.Name()); exists {
			slog.Warn("mcp.tool.name_collision", "server", name, "tool", bt.Name())
			continue
		}
		m.registry.Register(bt)
		registered = append(registered, bt.Name())
	}
	ss.toolNames = registered

	if len(registered) > 0 {
		tools.RegisterToolGroup("mcp:"+name, registered)
		m.updateMCPGroup()
	}

	hctx, hcancel := context.WithCancel(context.Background())
	ss.cancel = hcancel
	go m.healthLoop(hctx, ss)

	m.mu.Lock()
	m.servers[name] = ss
	m.mu.Unlock()

	slog.Info("mcp.server.connected", "server", name, "transport", cfg.Transport, "tools", len(registered))
	return nil
}

func createClient(cfg config.MCPServerConfig) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case "stdio":
		return mcpclient.NewStdioMCPClient(cfg.Command, mapToEnvSlice(cfg.Env), cfg.Args...)
	case "sse":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)
	case "streamable-http":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unsupported transport: %q", cfg.Transport)
	}
}

// healthLoop pings the server on an interval and drives reconnection on
// failure. Servers that don't implement "ping" still count as healthy.
func (m *Manager) healthLoop(ctx context.Context, ss *serverState) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := ss.client.Ping(ctx)
			if err == nil {
				ss.connected.Store(true)
				ss.mu.Lock()
				ss.reconnAttempts = 0
				ss.lastErr = ""
				ss.mu.Unlock()
				continue
			}
			if strings.Contains(strings.ToLower(err.Error()), "method not found") {
				ss.connected.Store(true)
				continue
			}
			ss.connected.Store(false)
			ss.mu.Lock()
			ss.lastErr = err.Error()
			ss.mu.Unlock()
			slog.Warn("mcp.server.health_failed", "server", ss.name, "error", err)
			m.tryReconnect(ctx, ss)
		}
	}
}

func (m *Manager) tryReconnect(ctx context.Context, ss *serverState) {
	ss.mu.Lock()
	if ss.reconnAttempts >= maxReconnectAttempts {
		ss.lastErr = fmt.Sprintf("max reconnect attempts (%d) reached", maxReconnectAttempts)
		ss.mu.Unlock()
		slog.Error("mcp.server.reconnect_exhausted", "server", ss.name)
		return
	}
	ss.reconnAttempts++
	attempt := ss.reconnAttempts
	ss.mu.Unlock()

	backoff := initialBackoff * time.Duration(1<<(attempt-1))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	slog.Info("mcp.server.reconnecting", "server", ss.name, "attempt", attempt, "backoff", backoff)

	select {
	case <-ctx.Done():
		return
	case <-time.After(backoff):
	}

	if err := ss.client.Ping(ctx); err == nil {
		ss.connected.Store(true)
		ss.mu.Lock()
		ss.reconnAttempts = 0
		ss.lastErr = ""
		ss.mu.Unlock()
		slog.Info("mcp.server.reconnected", "server", ss.name)
	}
}

func mapToEnvSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	s := make([]string, 0, len(env))
	for k, v := range env {
		s = append(s, k+"="+v)
	}
	return s
}
