// Package config holds WOPR's daemon configuration: dot-pathed recognized
// options loaded from WOPR_HOME/config.json, hot-swappable at runtime.
package config

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Config is the root daemon configuration (spec §6.5).
type Config struct {
	Daemon    DaemonConfig    `json:"daemon"`
	Security  SecurityConfig  `json:"security"`
	Providers ProvidersConfig `json:"providers"`
	Tools     ToolsConfig     `json:"tools,omitempty"`
	WebSearch WebSearchConfig `json:"webSearch,omitempty"`
	Cron      CronConfig      `json:"cron,omitempty"`
	Gateway   GatewayConfig   `json:"gateway,omitempty"`
	Dispatch  DispatchConfig  `json:"dispatch,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	MCP       MCPConfig       `json:"mcp,omitempty"`

	mu sync.RWMutex
}

// MCPConfig lists the external MCP servers the tool bridge connects to at
// startup (Design Notes "dynamic capability registration"). WOPR only runs
// in goclaw's standalone shape here: one static, daemon-wide server set,
// not a per-agent managed-mode grant table.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `json:"servers,omitempty"`
}

// MCPServerConfig describes one MCP server connection.
type MCPServerConfig struct {
	Transport  string            `json:"transport"` // stdio | sse | streamable-http
	Command    string            `json:"command,omitempty"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	URL        string            `json:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	ToolPrefix string            `json:"toolPrefix,omitempty"`
	TimeoutSec int               `json:"timeoutSec,omitempty"`
	Disabled   bool              `json:"disabled,omitempty"`
}

// IsEnabled reports whether this server should be connected at startup.
func (c MCPServerConfig) IsEnabled() bool {
	return !c.Disabled
}

// DatabaseConfig selects C1's storage backend (spec §6.4): the default
// JSON filestore plus a local auth.sqlite, or managed mode's single
// shared Postgres database for both.
type DatabaseConfig struct {
	Mode        string `json:"mode,omitempty"` // "file" (default) | "managed"
	PostgresDSN string `json:"-"`               // from env WOPR_POSTGRES_DSN only
}

// IsManagedMode reports whether the Postgres-backed store should be used.
func (c *Config) IsManagedMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Database.Mode == "managed"
}

// DispatchConfig bounds the C5 provider fallback chain (spec §4.4, §6.3).
type DispatchConfig struct {
	MaxAttempts       int `json:"maxAttempts,omitempty"`       // default 3
	PerAttemptTimeout int `json:"perAttemptTimeoutMs,omitempty"` // default 30000
}

// TelemetryConfig gates the OpenTelemetry spans C5 emits around steps 4-7
// of dispatch (spec §5.4).
type TelemetryConfig struct {
	Enabled bool `json:"enabled,omitempty"`
}

// DaemonConfig holds daemon-wide toggles.
type DaemonConfig struct {
	CronScriptsEnabled bool `json:"cronScriptsEnabled"`
}

// SecurityConfig configures the security kernel (spec §4.1, §6.5).
type SecurityConfig struct {
	Enforcement string                        `json:"enforcement"` // off|warn|enforce
	Defaults    SessionSecurityPolicy         `json:"defaults"`
	TrustLevels map[string]TrustLevelPolicy   `json:"trustLevels,omitempty"`
	Sessions    map[string]SessionSecurityPolicy `json:"sessions,omitempty"`
	P2P         P2PSecurityConfig             `json:"p2p,omitempty"`
}

// SessionSecurityPolicy is a per-session (or default) access/capability policy.
type SessionSecurityPolicy struct {
	Access       []string `json:"access,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Prompt       string   `json:"prompt,omitempty"`
	Sandbox      string   `json:"sandbox,omitempty"`
	Gateway      bool     `json:"gateway,omitempty"`
	// GatewayTargets restricts which sessions this session, as a gateway,
	// may forward into: exact session names or "*". Empty means unrestricted
	// (any target the normal access-pattern check already admits).
	GatewayTargets []string `json:"gatewayTargets,omitempty"`
}

// TrustLevelPolicy is per-trust-level default behavior.
type TrustLevelPolicy struct {
	RateLimitPerMinute int `json:"rateLimitPerMinute,omitempty"`
	RateLimitPerHour   int `json:"rateLimitPerHour,omitempty"`
}

// P2PSecurityConfig configures peer-to-peer trust defaults.
type P2PSecurityConfig struct {
	DiscoveryTrust        string `json:"discoveryTrust,omitempty"`
	AutoAccept            bool   `json:"autoAccept,omitempty"`
	KeyRotationGraceHours int    `json:"keyRotationGraceHours,omitempty"`
	MaxPayloadSize        int    `json:"maxPayloadSize,omitempty"`
}

// ProvidersConfig maps provider id to its options.
type ProvidersConfig struct {
	Entries map[string]ProviderOptions `json:"-"`
}

// ProviderOptions is a single provider's overrides.
type ProviderOptions struct {
	Model           string                 `json:"model,omitempty"`
	ReasoningEffort string                 `json:"reasoningEffort,omitempty"`
	Options         map[string]interface{} `json:"options,omitempty"`
}

func (p ProvidersConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Entries)
}

func (p *ProvidersConfig) UnmarshalJSON(data []byte) error {
	var m map[string]ProviderOptions
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	p.Entries = m
	return nil
}

// ToolsConfig drives the C6 policy pipeline (profile -> allow -> deny ->
// alsoAllow), adapted from goclaw's provider/agent axes onto WOPR's single
// capability axis: a tool is visible only when both this pipeline and the
// security kernel's capability check allow it.
type ToolsConfig struct {
	Profile    string                        `json:"profile,omitempty"`
	ByProvider map[string]ProviderToolPolicy `json:"byProvider,omitempty"`
	Allow      []string                      `json:"allow,omitempty"`
	Deny       []string                      `json:"deny,omitempty"`
	AlsoAllow  []string                      `json:"alsoAllow,omitempty"`
}

// ProviderToolPolicy overrides ToolsConfig for a single provider id.
type ProviderToolPolicy struct {
	Profile string   `json:"profile,omitempty"`
	Allow   []string `json:"allow,omitempty"`
}

// WebSearchConfig configures the web search tool provider order.
type WebSearchConfig struct {
	ProviderOrder []string `json:"providerOrder,omitempty"`
}

// CronConfig configures the cron subsystem.
type CronConfig struct {
	HistoryCapacity int `json:"historyCapacity,omitempty"` // default 500, spec §7
}

// GatewayConfig configures the HTTP management surface listener.
type GatewayConfig struct {
	Host           string   `json:"host,omitempty"`
	Port           int      `json:"port,omitempty"`
	BootstrapToken string   `json:"-"` // from env WOPR_BOOTSTRAP_TOKEN only
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// sensitiveKeyFragments are substrings that mark a dot-path value as
// sensitive for redaction on management-surface reads (spec §6.5).
var sensitiveKeyFragments = []string{"apikey", "secret", "token", "credential"}

// IsSensitiveKey reports whether a dotted config key should be redacted.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{CronScriptsEnabled: false},
		Security: SecurityConfig{
			Enforcement: "warn",
			Defaults:    SessionSecurityPolicy{Access: []string{"trust:trusted"}},
		},
		Providers: ProvidersConfig{Entries: map[string]ProviderOptions{}},
		Cron:      CronConfig{HistoryCapacity: 500},
		Gateway:   GatewayConfig{Host: "127.0.0.1", Port: 8787},
		Dispatch:  DispatchConfig{MaxAttempts: 3, PerAttemptTimeout: 30000},
	}
}

// ReplaceFrom atomically swaps in new data, preserving c's mutex (matches
// goclaw's Config.ReplaceFrom hot-reload pattern).
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Daemon = src.Daemon
	c.Security = src.Security
	c.Providers = src.Providers
	c.WebSearch = src.WebSearch
	c.Cron = src.Cron
	c.Gateway = src.Gateway
	c.Dispatch = src.Dispatch
	c.Telemetry = src.Telemetry
	c.Database = src.Database
	c.MCP = src.MCP
}

// Snapshot returns a deep-enough copy safe for concurrent reads.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Daemon:    c.Daemon,
		Security:  c.Security,
		Providers: c.Providers,
		WebSearch: c.WebSearch,
		Cron:      c.Cron,
		Gateway:   c.Gateway,
		Dispatch:  c.Dispatch,
		Telemetry: c.Telemetry,
		Database:  c.Database,
		MCP:       c.MCP,
	}
}

// DispatchAttempts returns the configured max provider-fallback attempts,
// defaulting to 3 when unset.
func (c *Config) DispatchAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Dispatch.MaxAttempts <= 0 {
		return 3
	}
	return c.Dispatch.MaxAttempts
}

// DispatchPerAttemptTimeout returns the configured per-provider-attempt
// timeout, defaulting to 30s when unset.
func (c *Config) DispatchPerAttemptTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Dispatch.PerAttemptTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Dispatch.PerAttemptTimeout) * time.Millisecond
}

// TelemetryEnabled reports whether OpenTelemetry spans should be emitted
// around dispatch.
func (c *Config) TelemetryEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Telemetry.Enabled
}

// CronScriptsEnabled reports whether cron script execution is currently
// permitted. Read fresh on every call so toggling the flag at runtime
// takes effect immediately at job-fire time (spec §9).
func (c *Config) CronScriptsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Daemon.CronScriptsEnabled
}

// Enforcement returns the current security enforcement mode.
func (c *Config) Enforcement() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Security.Enforcement == "" {
		return "warn"
	}
	return c.Security.Enforcement
}

// SessionPolicy returns the effective policy for a session name, falling
// back to the global default.
func (c *Config) SessionPolicy(session string) SessionSecurityPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.Security.Sessions[session]; ok {
		return p
	}
	return c.Security.Defaults
}
