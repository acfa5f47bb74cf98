package mcp

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/wopr/internal/tools"
)

func TestManager_ToolNamesAggregatesAcrossServers(t *testing.T) {
	m := NewManager(tools.NewRegistry(), nil)

	m.servers["a"] = &serverState{name: "a", toolNames: []string{"mcp_a_x", "mcp_a_y"}}
	m.servers["b"] = &serverState{name: "b", toolNames: []string{"mcp_b_z"}}

	names := m.ToolNames()
	if len(names) != 3 {
		t.Fatalf("expected 3 tool names, got %d (%v)", len(names), names)
	}
}

func TestManager_UpdateMCPGroupRegistersAndClearsGroup(t *testing.T) {
	m := NewManager(tools.NewRegistry(), nil)
	m.servers["a"] = &serverState{name: "a", toolNames: []string{"mcp_a_x"}}

	m.updateMCPGroup()
	if _, ok := toolGroups["mcp"]; !ok {
		t.Fatal("expected \"mcp\" group to be registered once a server has tools")
	}

	delete(m.servers, "a")
	m.updateMCPGroup()
	if _, ok := toolGroups["mcp"]; ok {
		t.Fatal("expected \"mcp\" group to be cleared once no servers have tools")
	}
}

func TestManager_StopUnregistersToolsAndGroups(t *testing.T) {
	reg := tools.NewRegistry()

	m := NewManager(reg, nil)
	reg.Register(&stubTool{name: "mcp_a_x"})
	m.servers["a"] = &serverState{name: "a", toolNames: []string{"mcp_a_x"}}
	tools.RegisterToolGroup("mcp:a", []string{"mcp_a_x"})
	tools.RegisterToolGroup("mcp", []string{"mcp_a_x"})

	m.Stop()

	if _, ok := reg.Get("mcp_a_x"); ok {
		t.Fatal("expected mcp_a_x to be unregistered after Stop")
	}
	if len(m.servers) != 0 {
		t.Fatal("expected servers map to be empty after Stop")
	}
}

type stubTool struct{ name string }

func (s *stubTool) Name() string                      { return s.name }
func (s *stubTool) Description() string               { return "stub" }
func (s *stubTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	return tools.Ok("stub")
}
