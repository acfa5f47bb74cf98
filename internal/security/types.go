// Package security implements C2: the layered trust/access/capability
// pipeline every injection and tool call passes through. Grounded on
// goclaw's internal/tools/policy.go (the 7-step allow/deny pipeline,
// group/alias expansion, adapted here to capability strings instead of
// tool-name sets) and spec §4.1.
package security

import (
	"sort"
	"strings"
)

// TrustLevel is the ordered trust enum (spec GLOSSARY).
type TrustLevel string

const (
	TrustOwner        TrustLevel = "owner"
	TrustTrusted      TrustLevel = "trusted"
	TrustSemiTrusted  TrustLevel = "semi-trusted"
	TrustUntrusted    TrustLevel = "untrusted"
)

var trustRank = map[TrustLevel]int{
	TrustOwner:       100,
	TrustTrusted:     75,
	TrustSemiTrusted: 50,
	TrustUntrusted:   0,
}

// Rank returns the trust level's numeric rank, 0 (untrusted) if unknown.
func (t TrustLevel) Rank() int {
	if r, ok := trustRank[t]; ok {
		return r
	}
	return 0
}

// Meets reports whether t meets-or-exceeds the required level.
func (t TrustLevel) Meets(required TrustLevel) bool {
	return t.Rank() >= required.Rank()
}

// SourceType enumerates where an injection originates (spec §4.1 step 4).
type SourceType string

const (
	SourceInternal     SourceType = "internal"
	SourceCLI          SourceType = "cli"
	SourceDaemon       SourceType = "daemon"
	SourceP2P          SourceType = "p2p"
	SourceP2PDiscovery SourceType = "p2p.discovery"
	SourcePlugin       SourceType = "plugin"
	SourceGateway      SourceType = "gateway"
	SourceCron         SourceType = "cron"
	SourceHTTP         SourceType = "http"
)

// privilegedSourceTypes bypass the gateway-routing requirement (step 4).
var privilegedSourceTypes = map[SourceType]bool{
	SourceInternal: true,
	SourceCLI:      true,
	SourceDaemon:   true,
}

// Identity describes the caller carried alongside an injection.
type Identity struct {
	PublicKey      string // set for p2p / p2p.discovery sources
	ApiKeyID       string // set for http sources authenticated by key
	PluginName     string // set for plugin sources
	GatewaySession string // the gateway session that forwarded this, if any
	GrantID        string // explicit access grant reference, if any
}

// InjectionSource is the full provenance of one injection (spec §4.1, §4.6).
type InjectionSource struct {
	Type     SourceType
	Identity Identity
}

// SecurityContext is the resolved, capability-bearing context threaded
// through a dispatch and its tool calls (spec §4.1 "hooks").
type SecurityContext struct {
	Source       InjectionSource
	TrustLevel   TrustLevel
	Capabilities map[string]bool
	// Explicit holds only the capabilities actually named (or "*"), before
	// hierarchy expansion. Dangerous tools (http_fetch, exec_command,
	// notify) check this instead of Capabilities: "inject" alone must not
	// unlock them, even though it expands to their capability for normal
	// hierarchy purposes (spec GLOSSARY, TOOL_CAPABILITY_MAP).
	Explicit      map[string]bool
	TargetSession string
}

// Capability hierarchy: dotted capability strings imply their parents'
// children (spec GLOSSARY: "inject" grants "inject.tools", etc).
var capabilityHierarchy = map[string][]string{
	"inject": {"inject.tools", "inject.network", "inject.exec"},
	"cross":  {"cross.inject", "cross.read"},
}

// allCapabilities is the full enumerated set "*" expands to.
var allCapabilities = []string{
	"inject", "inject.tools", "inject.network", "inject.exec",
	"session.spawn", "session.history",
	"cross.inject", "cross.read",
	"config.read", "config.write",
	"memory.read", "memory.write",
	"cron.manage", "event.emit", "a2a.call",
}

// AllCapabilities returns the full enumerated capability set "*" expands
// to, for management-surface introspection (GET /api/capabilities).
func AllCapabilities() []string {
	out := make([]string, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}

// ExpandCapabilities grows an explicit capability list into its full,
// hierarchy-expanded set. "*" expands to every enumerated capability.
func ExpandCapabilities(explicit []string) map[string]bool {
	expanded := make(map[string]bool)
	for _, c := range explicit {
		if c == "*" {
			for _, all := range allCapabilities {
				expanded[all] = true
			}
			continue
		}
		expanded[c] = true
		if children, ok := capabilityHierarchy[c]; ok {
			for _, child := range children {
				expanded[child] = true
			}
		}
	}
	return expanded
}

// HasCapability reports whether ctx carries cap, honoring wildcard grants
// and hierarchy expansion (e.g. "inject" implies "inject.tools").
func (ctx SecurityContext) HasCapability(cap string) bool {
	if ctx.Capabilities["*"] {
		return true
	}
	return ctx.Capabilities[cap]
}

// HasExplicitCapability reports whether cap was named directly (or "*"
// was), ignoring hierarchy expansion. Dangerous tools require this.
func (ctx SecurityContext) HasExplicitCapability(cap string) bool {
	if ctx.Explicit["*"] {
		return true
	}
	return ctx.Explicit[cap]
}

// explicitSet builds the unexpanded capability set from a raw list.
func explicitSet(explicit []string) map[string]bool {
	set := make(map[string]bool, len(explicit))
	for _, c := range explicit {
		set[c] = true
	}
	return set
}

// SortedCapabilities returns the context's granted capabilities, sorted,
// for stable audit/introspection output (security_whoami).
func (ctx SecurityContext) SortedCapabilities() []string {
	out := make([]string, 0, len(ctx.Capabilities))
	for c, granted := range ctx.Capabilities {
		if granted {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// matchesAccessPattern implements spec §4.1 step 3's disjunctive patterns.
func matchesAccessPattern(pattern string, source InjectionSource, trust TrustLevel) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, "trust:"):
		required := TrustLevel(strings.TrimPrefix(pattern, "trust:"))
		return trust.Meets(required)
	case strings.HasPrefix(pattern, "session:"):
		name := strings.TrimPrefix(pattern, "session:")
		return source.Identity.GatewaySession == name
	case strings.HasPrefix(pattern, "p2p:"):
		key := strings.TrimPrefix(pattern, "p2p:")
		return source.Identity.PublicKey == key
	case strings.HasPrefix(pattern, "type:"):
		typ := strings.TrimPrefix(pattern, "type:")
		return string(source.Type) == typ
	default:
		return false
	}
}
