package tools

// capabilityMap is the fixed TOOL_CAPABILITY_MAP from the glossary: tools
// without an entry are denied by default (spec §4.1, §4.5).
var capabilityMap = map[string]string{
	"sessions_list":    "session.history",
	"sessions_history": "session.history",
	"sessions_send":    "cross.inject",
	"sessions_spawn":   "session.spawn",

	"config_get":              "config.read",
	"config_set":              "config.write",
	"config_provider_defaults": "config.write",

	"memory_read":    "memory.read",
	"memory_search":  "memory.read",
	"memory_get":     "memory.read",
	"identity_get":   "memory.read",
	"soul_get":       "memory.read",
	"memory_write":   "memory.write",
	"self_reflect":   "memory.write",
	"identity_update": "memory.write",
	"soul_update":    "memory.write",

	"cron_create": "cron.manage",
	"cron_delete": "cron.manage",
	"cron_list":   "cron.manage",
	"cron_history": "cron.manage",

	"event_emit": "event.emit",
	"event_list": "event.emit",
	"notify":     "event.emit",

	"http_fetch":    "inject.network",
	"exec_command":  "inject.exec",

	"security_whoami": "inject",
	"security_check":  "inject",
}

// introspectionTools bypass TOOL_CAPABILITY_MAP entirely (spec §4.1).
var introspectionTools = map[string]bool{
	"security_whoami": true,
	"security_check":  true,
}

// dangerousTools requires its listed capability explicitly; it is never
// implied by the "inject" parent capability (spec §4.5).
var dangerousTools = map[string]string{
	"http_fetch":   "inject.network",
	"exec_command": "inject.exec",
	"notify":       "event.emit",
}

// CapabilityFor returns the required capability for toolName and whether
// the tool has a mapping at all.
func CapabilityFor(toolName string) (string, bool) {
	cap, ok := capabilityMap[toolName]
	return cap, ok
}

// IsIntrospection reports whether toolName bypasses capability mapping.
func IsIntrospection(toolName string) bool {
	return introspectionTools[toolName]
}

// IsDangerous reports whether toolName is in the explicit-capability set
// that "inject" alone does not satisfy.
func IsDangerous(toolName string) (string, bool) {
	cap, ok := dangerousTools[toolName]
	return cap, ok
}
