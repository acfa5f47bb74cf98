package tools

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/security"
)

type fakeTool struct{ name string }

func (f *fakeTool) Name() string                               { return f.name }
func (f *fakeTool) Description() string                        { return "fake: " + f.name }
func (f *fakeTool) Parameters() map[string]interface{}         { return map[string]interface{}{"type": "object"} }
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) *Result { return Ok("ok") }

func testRegistry(names ...string) *Registry {
	r := NewRegistry()
	for _, n := range names {
		r.Register(&fakeTool{name: n})
	}
	return r
}

func ownerCtx() security.SecurityContext {
	return security.SecurityContext{
		TrustLevel:   security.TrustOwner,
		Capabilities: security.ExpandCapabilities([]string{"*"}),
		Explicit:     map[string]bool{"*": true},
	}
}

func untrustedCtx() security.SecurityContext {
	return security.SecurityContext{
		TrustLevel:   security.TrustUntrusted,
		Capabilities: security.ExpandCapabilities(nil),
		Explicit:     map[string]bool{},
	}
}

func TestFilterTools_IntrospectionAlwaysVisible(t *testing.T) {
	cfg := &config.ToolsConfig{}
	kernel := security.NewKernel(config.Default(), nil, nil, nil)
	pe := NewPolicyEngine(cfg, kernel)
	reg := testRegistry("security_whoami", "security_check")

	defs := pe.FilterTools(reg, "anthropic", untrustedCtx())
	if len(defs) != 2 {
		t.Fatalf("expected both introspection tools visible to an untrusted caller, got %d", len(defs))
	}
}

func TestFilterTools_UnmappedToolDeniedByDefault(t *testing.T) {
	cfg := &config.ToolsConfig{}
	kernel := security.NewKernel(config.Default(), nil, nil, nil)
	pe := NewPolicyEngine(cfg, kernel)
	reg := testRegistry("totally_unknown_tool")

	defs := pe.FilterTools(reg, "anthropic", ownerCtx())
	if len(defs) != 0 {
		t.Fatalf("expected unmapped tool to be denied even for an owner, got %d", len(defs))
	}
}

func TestFilterTools_DangerousToolRequiresExplicitCapability(t *testing.T) {
	cfg := &config.ToolsConfig{}
	kernel := security.NewKernel(config.Default(), nil, nil, nil)
	pe := NewPolicyEngine(cfg, kernel)
	reg := testRegistry("http_fetch")

	impliedOnly := security.SecurityContext{
		Capabilities: security.ExpandCapabilities([]string{"inject"}),
		Explicit:     map[string]bool{"inject": true},
	}
	if defs := pe.FilterTools(reg, "anthropic", impliedOnly); len(defs) != 0 {
		t.Fatal("expected 'inject' alone to not unlock http_fetch")
	}

	explicit := security.SecurityContext{
		Capabilities: security.ExpandCapabilities([]string{"inject", "inject.network"}),
		Explicit:     map[string]bool{"inject": true, "inject.network": true},
	}
	if defs := pe.FilterTools(reg, "anthropic", explicit); len(defs) != 1 {
		t.Fatal("expected explicit inject.network to unlock http_fetch")
	}
}

func TestFilterTools_ProfileRestrictsToMinimal(t *testing.T) {
	cfg := &config.ToolsConfig{Profile: "minimal"}
	kernel := security.NewKernel(config.Default(), nil, nil, nil)
	pe := NewPolicyEngine(cfg, kernel)
	reg := testRegistry("security_whoami", "sessions_list", "exec_command")

	defs := pe.FilterTools(reg, "anthropic", ownerCtx())
	if len(defs) != 1 || defs[0].Function.Name != "security_whoami" {
		t.Fatalf("expected minimal profile to only pass security_whoami, got %v", defs)
	}
}

func TestFilterTools_DenyOverridesAllow(t *testing.T) {
	cfg := &config.ToolsConfig{Allow: []string{"group:sessions"}, Deny: []string{"sessions_send"}}
	kernel := security.NewKernel(config.Default(), nil, nil, nil)
	pe := NewPolicyEngine(cfg, kernel)
	reg := testRegistry("sessions_list", "sessions_send")

	ctx := security.SecurityContext{
		Capabilities: security.ExpandCapabilities([]string{"session.history", "cross.inject"}),
		Explicit:     map[string]bool{"session.history": true, "cross.inject": true},
	}
	defs := pe.FilterTools(reg, "anthropic", ctx)
	if len(defs) != 1 || defs[0].Function.Name != "sessions_list" {
		t.Fatalf("expected deny to remove sessions_send after allow, got %v", defs)
	}
}

func TestFilterTools_AlsoAllowAddsBack(t *testing.T) {
	cfg := &config.ToolsConfig{Profile: "minimal", AlsoAllow: []string{"sessions_list"}}
	kernel := security.NewKernel(config.Default(), nil, nil, nil)
	pe := NewPolicyEngine(cfg, kernel)
	reg := testRegistry("security_whoami", "sessions_list")

	ctx := security.SecurityContext{
		Capabilities: security.ExpandCapabilities([]string{"session.history"}),
		Explicit:     map[string]bool{"session.history": true},
	}
	defs := pe.FilterTools(reg, "anthropic", ctx)
	if len(defs) != 2 {
		t.Fatalf("expected alsoAllow to add sessions_list back under minimal profile, got %v", defs)
	}
}
