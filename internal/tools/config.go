package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/wopr/internal/config"
)

// ConfigGetTool reads a dot-pathed config value, redacting sensitive keys
// (spec §6.5's IsSensitiveKey) regardless of the caller's trust level.
type ConfigGetTool struct {
	cfg *config.Config
}

func NewConfigGetTool(cfg *config.Config) *ConfigGetTool { return &ConfigGetTool{cfg: cfg} }

func (t *ConfigGetTool) Name() string        { return "config_get" }
func (t *ConfigGetTool) Description() string { return "Read a dot-pathed config value." }
func (t *ConfigGetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{"type": "string", "description": "Dot-pathed key, e.g. security.enforcement"},
		},
		"required": []string{"key"},
	}
}

func (t *ConfigGetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	key, _ := args["key"].(string)
	if key == "" {
		return ErrTool("invalid_args", "key is required")
	}
	if config.IsSensitiveKey(key) {
		return Ok(fmt.Sprintf("%s: <redacted>", key))
	}
	snapshot := t.cfg.Snapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return ErrTool("internal", err.Error())
	}
	var whole map[string]interface{}
	if err := json.Unmarshal(data, &whole); err != nil {
		return ErrTool("internal", err.Error())
	}
	value, ok := lookupDotPath(whole, key)
	if !ok {
		return ErrTool("not_found", fmt.Sprintf("no such key: %s", key))
	}
	out, _ := json.Marshal(value)
	return Ok(fmt.Sprintf("%s: %s", key, out))
}

func lookupDotPath(m map[string]interface{}, key string) (interface{}, bool) {
	cursor := interface{}(m)
	for _, part := range splitDot(key) {
		asMap, ok := cursor.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cursor, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}
	return cursor, true
}

func splitDot(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// ConfigSetTool writes a runtime config toggle. Only the small set of
// hot-swappable daemon flags are writable through the tool surface; the
// bulk of config.json is edited out-of-band and reloaded (spec §6.5).
type ConfigSetTool struct {
	cfg *config.Config
}

func NewConfigSetTool(cfg *config.Config) *ConfigSetTool { return &ConfigSetTool{cfg: cfg} }

func (t *ConfigSetTool) Name() string { return "config_set" }
func (t *ConfigSetTool) Description() string {
	return "Set a hot-swappable daemon config toggle (daemon.cronScriptsEnabled, security.enforcement)."
}
func (t *ConfigSetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key":   map[string]interface{}{"type": "string"},
			"value": map[string]interface{}{"type": "string"},
		},
		"required": []string{"key", "value"},
	}
}

func (t *ConfigSetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	snapshot := t.cfg.Snapshot()
	switch key {
	case "daemon.cronScriptsEnabled":
		snapshot.Daemon.CronScriptsEnabled = value == "true"
	case "security.enforcement":
		if value != "off" && value != "warn" && value != "enforce" {
			return ErrTool("invalid_args", "enforcement must be off|warn|enforce")
		}
		snapshot.Security.Enforcement = value
	default:
		return ErrTool("invalid_args", fmt.Sprintf("key %q is not writable through config_set", key))
	}
	t.cfg.ReplaceFrom(&snapshot)
	return Ok(fmt.Sprintf("%s set to %s", key, value))
}

// ConfigProviderDefaultsTool sets a provider's default model/options
// (config.write capability, same as config_set per TOOL_CAPABILITY_MAP).
type ConfigProviderDefaultsTool struct {
	cfg *config.Config
}

func NewConfigProviderDefaultsTool(cfg *config.Config) *ConfigProviderDefaultsTool {
	return &ConfigProviderDefaultsTool{cfg: cfg}
}

func (t *ConfigProviderDefaultsTool) Name() string { return "config_provider_defaults" }
func (t *ConfigProviderDefaultsTool) Description() string {
	return "Set a provider's default model."
}
func (t *ConfigProviderDefaultsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"provider": map[string]interface{}{"type": "string"},
			"model":    map[string]interface{}{"type": "string"},
		},
		"required": []string{"provider", "model"},
	}
}

func (t *ConfigProviderDefaultsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	provider, _ := args["provider"].(string)
	model, _ := args["model"].(string)
	if provider == "" || model == "" {
		return ErrTool("invalid_args", "provider and model are required")
	}
	snapshot := t.cfg.Snapshot()
	if snapshot.Providers.Entries == nil {
		snapshot.Providers.Entries = map[string]config.ProviderOptions{}
	}
	opts := snapshot.Providers.Entries[provider]
	opts.Model = model
	snapshot.Providers.Entries[provider] = opts
	t.cfg.ReplaceFrom(&snapshot)
	return Ok(fmt.Sprintf("%s default model set to %s", provider, model))
}
