package tools

import (
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/providers"
	"github.com/nextlevelbuilder/wopr/internal/security"
)

// toolGroups map group names to tool names for "group:xxx" expansion in
// ToolsConfig.Allow/Deny/AlsoAllow (matching goclaw's TOOL_GROUPS idiom,
// regrouped around WOPR's own tool set).
var toolGroups = map[string][]string{
	"sessions": {"sessions_list", "sessions_history", "sessions_send", "sessions_spawn"},
	"config":   {"config_get", "config_set", "config_provider_defaults"},
	"memory":   {"memory_read", "memory_search", "memory_get", "memory_write", "self_reflect"},
	"identity": {"identity_get", "identity_update", "soul_get", "soul_update"},
	"cron":     {"cron_create", "cron_delete", "cron_list", "cron_history"},
	"events":   {"event_emit", "event_list", "notify"},
	"dangerous": {"http_fetch", "exec_command"},
}

// toolProfiles are named presets for ToolsConfig.Profile / ByProvider[...].Profile.
var toolProfiles = map[string][]string{
	"minimal":  {"security_whoami", "security_check"},
	"standard": {"group:sessions", "group:config", "group:memory", "group:identity", "group:events"},
	"full":     {}, // empty = no restriction
}

// RegisterToolGroup adds or replaces a dynamic tool group; the MCP bridge
// uses this to expose a server's tool set as "group:mcp:<server>".
func RegisterToolGroup(name string, members []string) {
	toolGroups[name] = members
}

// UnregisterToolGroup removes a dynamic tool group.
func UnregisterToolGroup(name string) {
	delete(toolGroups, name)
}

// PolicyEngine evaluates the layered ToolsConfig pipeline and, unlike
// goclaw's agent/provider axes, always retargets its result through the
// security kernel's capability check before returning a tool's definition
// (spec §5.5: "visible only if both the policy pipeline and checkCapability
// allow it").
type PolicyEngine struct {
	globalPolicy *config.ToolsConfig
	kernel       *security.Kernel
}

func NewPolicyEngine(cfg *config.ToolsConfig, kernel *security.Kernel) *PolicyEngine {
	return &PolicyEngine{globalPolicy: cfg, kernel: kernel}
}

// FilterTools returns the provider-facing tool definitions visible to ctx
// for providerName, after the profile/allow/deny/alsoAllow pipeline and
// the per-tool capability gate.
func (pe *PolicyEngine) FilterTools(registry *Registry, providerName string, ctx security.SecurityContext) []providers.ToolDefinition {
	allTools := registry.List()
	allowed := pe.evaluate(allTools, providerName)

	var defs []providers.ToolDefinition
	for _, name := range allowed {
		tool, ok := registry.Get(name)
		if !ok {
			continue
		}
		if !pe.capabilityAllows(name, ctx) {
			continue
		}
		defs = append(defs, ToProviderDef(tool))
	}

	slog.Debug("tool policy applied",
		"provider", providerName,
		"total_tools", len(allTools),
		"allowed", len(defs),
		"trust", ctx.TrustLevel,
	)

	return defs
}

// CheckToolCall re-applies the same capability gate FilterTools used to
// decide visibility, at the point a tool call actually re-enters (spec
// §4.1 step 6, §4.5's runtime re-entry check): a tool visible a few turns
// ago may have had its grant revoked since, so dispatch must not trust the
// filtered catalogue alone.
func (pe *PolicyEngine) CheckToolCall(name string, ctx security.SecurityContext) bool {
	return pe.capabilityAllows(name, ctx)
}

// capabilityAllows applies spec §4.5: introspection tools always pass,
// dangerous tools require an explicit (non-inherited) capability, and
// every other mapped tool requires its capability via normal (hierarchy
// expanded) checking. An unmapped tool is denied by default.
func (pe *PolicyEngine) capabilityAllows(name string, ctx security.SecurityContext) bool {
	if IsIntrospection(name) {
		return true
	}
	if cap, ok := IsDangerous(name); ok {
		return pe.kernel.RequireExplicitCapability(ctx, cap) == nil
	}
	cap, ok := CapabilityFor(name)
	if !ok {
		return false
	}
	return pe.kernel.CheckCapability(ctx, cap)
}

// evaluate runs the profile -> allow -> deny -> alsoAllow pipeline.
func (pe *PolicyEngine) evaluate(allTools []string, providerName string) []string {
	g := pe.globalPolicy
	if g == nil {
		return copySlice(allTools)
	}

	allowed := pe.applyProfile(allTools, g.Profile)

	if g.ByProvider != nil {
		if pp, ok := g.ByProvider[providerName]; ok && pp.Profile != "" {
			allowed = pe.applyProfile(allTools, pp.Profile)
		}
	}

	if len(g.Allow) > 0 {
		allowed = intersectWithSpec(allowed, g.Allow)
	}
	if g.ByProvider != nil {
		if pp, ok := g.ByProvider[providerName]; ok && len(pp.Allow) > 0 {
			allowed = intersectWithSpec(allowed, pp.Allow)
		}
	}

	if len(g.Deny) > 0 {
		allowed = subtractSpec(allowed, g.Deny)
	}

	if len(g.AlsoAllow) > 0 {
		allowed = unionWithSpec(allowed, allTools, g.AlsoAllow)
	}

	return allowed
}

func (pe *PolicyEngine) applyProfile(allTools []string, profile string) []string {
	if profile == "" || profile == "full" {
		return copySlice(allTools)
	}
	spec, ok := toolProfiles[profile]
	if !ok {
		slog.Warn("unknown tool profile, using full", "profile", profile)
		return copySlice(allTools)
	}
	return expandSpec(allTools, spec)
}

// --- Set operations with group expansion ---

func expandMembers(spec []string) map[string]bool {
	expanded := make(map[string]bool)
	for _, s := range spec {
		if strings.HasPrefix(s, "group:") {
			groupName := strings.TrimPrefix(s, "group:")
			for _, m := range toolGroups[groupName] {
				expanded[m] = true
			}
		} else {
			expanded[s] = true
		}
	}
	return expanded
}

func expandSpec(available []string, spec []string) []string {
	expanded := expandMembers(spec)
	var result []string
	for _, t := range available {
		if expanded[t] {
			result = append(result, t)
		}
	}
	return result
}

func intersectWithSpec(current []string, spec []string) []string {
	expanded := expandMembers(spec)
	var result []string
	for _, t := range current {
		if expanded[t] {
			result = append(result, t)
		}
	}
	return result
}

func subtractSpec(current []string, spec []string) []string {
	denied := expandMembers(spec)
	var result []string
	for _, t := range current {
		if !denied[t] {
			result = append(result, t)
		}
	}
	return result
}

func unionWithSpec(current []string, allTools []string, spec []string) []string {
	existing := make(map[string]bool, len(current))
	for _, t := range current {
		existing[t] = true
	}
	for _, t := range expandSpec(allTools, spec) {
		if !existing[t] {
			current = append(current, t)
			existing[t] = true
		}
	}
	return current
}

func copySlice(s []string) []string {
	c := make([]string, len(s))
	copy(c, s)
	return c
}
