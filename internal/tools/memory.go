package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// memoryReadBase is shared by every read-side memory tool (memory_read,
// memory_get, identity_get, soul_get all share this shape, differing only
// in which document name they default to).
type memoryReadBase struct {
	memory      store.MemoryStore
	defaultName string
}

func (t *memoryReadBase) read(args map[string]interface{}) *Result {
	session, _ := args["session"].(string)
	name, _ := args["name"].(string)
	if name == "" {
		name = t.defaultName
	}
	if session == "" || name == "" {
		return ErrTool("invalid_args", "session (and name, unless this tool has a fixed document) is required")
	}
	content, ok, err := t.memory.Read(session, name)
	if err != nil {
		return ErrTool("internal", err.Error())
	}
	if !ok {
		return Ok(fmt.Sprintf("%s/%s: <empty>", session, name))
	}
	return Ok(content)
}

// memoryWriteBase is shared by every write-side memory tool (memory_write,
// self_reflect, identity_update, soul_update).
type memoryWriteBase struct {
	memory      store.MemoryStore
	defaultName string
	append      bool
}

func (t *memoryWriteBase) write(args map[string]interface{}) *Result {
	session, _ := args["session"].(string)
	name, _ := args["name"].(string)
	content, _ := args["content"].(string)
	if name == "" {
		name = t.defaultName
	}
	if session == "" || name == "" || content == "" {
		return ErrTool("invalid_args", "session, content (and name, unless fixed) are required")
	}
	if t.append {
		existing, _, err := t.memory.Read(session, name)
		if err != nil {
			return ErrTool("internal", err.Error())
		}
		if existing != "" {
			content = existing + "\n" + content
		}
	}
	if err := t.memory.Write(session, name, content); err != nil {
		return ErrTool("internal", err.Error())
	}
	return Ok(fmt.Sprintf("wrote %s/%s", session, name))
}

// MemoryReadTool reads an arbitrary named memory document.
type MemoryReadTool struct{ memoryReadBase }

func NewMemoryReadTool(memory store.MemoryStore) *MemoryReadTool {
	return &MemoryReadTool{memoryReadBase{memory: memory}}
}
func (t *MemoryReadTool) Name() string        { return "memory_read" }
func (t *MemoryReadTool) Description() string { return "Read a session's memory document by name." }
func (t *MemoryReadTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session": map[string]interface{}{"type": "string"},
			"name":    map[string]interface{}{"type": "string"},
		},
		"required": []string{"session", "name"},
	}
}
func (t *MemoryReadTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.read(args)
}

// MemoryGetTool is memory_read's single-document alias (TOOL_CAPABILITY_MAP
// lists memory_get alongside memory_read/memory_search under memory.read).
type MemoryGetTool struct{ memoryReadBase }

func NewMemoryGetTool(memory store.MemoryStore) *MemoryGetTool {
	return &MemoryGetTool{memoryReadBase{memory: memory}}
}
func (t *MemoryGetTool) Name() string        { return "memory_get" }
func (t *MemoryGetTool) Description() string { return "Get a single memory document's content." }
func (t *MemoryGetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session": map[string]interface{}{"type": "string"},
			"name":    map[string]interface{}{"type": "string"},
		},
		"required": []string{"session", "name"},
	}
}
func (t *MemoryGetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.read(args)
}

// MemorySearchTool does a substring search across a session's memory docs.
type MemorySearchTool struct {
	memory store.MemoryStore
}

func NewMemorySearchTool(memory store.MemoryStore) *MemorySearchTool {
	return &MemorySearchTool{memory: memory}
}
func (t *MemorySearchTool) Name() string        { return "memory_search" }
func (t *MemorySearchTool) Description() string { return "Search a session's memory documents." }
func (t *MemorySearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session": map[string]interface{}{"type": "string"},
			"query":   map[string]interface{}{"type": "string"},
		},
		"required": []string{"session", "query"},
	}
}
func (t *MemorySearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	session, _ := args["session"].(string)
	query, _ := args["query"].(string)
	if session == "" || query == "" {
		return ErrTool("invalid_args", "session and query are required")
	}
	matches, err := t.memory.Search(session, query)
	if err != nil {
		return ErrTool("internal", err.Error())
	}
	if len(matches) == 0 {
		return Ok("no matches")
	}
	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s: %s\n", m.Name, m.Snippet)
	}
	return Ok(sb.String())
}

// MemoryWriteTool writes an arbitrary named memory document.
type MemoryWriteTool struct{ memoryWriteBase }

func NewMemoryWriteTool(memory store.MemoryStore) *MemoryWriteTool {
	return &MemoryWriteTool{memoryWriteBase{memory: memory}}
}
func (t *MemoryWriteTool) Name() string        { return "memory_write" }
func (t *MemoryWriteTool) Description() string { return "Write a session's memory document by name." }
func (t *MemoryWriteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session": map[string]interface{}{"type": "string"},
			"name":    map[string]interface{}{"type": "string"},
			"content": map[string]interface{}{"type": "string"},
		},
		"required": []string{"session", "name", "content"},
	}
}
func (t *MemoryWriteTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.write(args)
}

// SelfReflectTool appends a note to the session's reflections document.
type SelfReflectTool struct{ memoryWriteBase }

func NewSelfReflectTool(memory store.MemoryStore) *SelfReflectTool {
	return &SelfReflectTool{memoryWriteBase{memory: memory, defaultName: "reflections", append: true}}
}
func (t *SelfReflectTool) Name() string { return "self_reflect" }
func (t *SelfReflectTool) Description() string {
	return "Append a self-reflection note to this session's reflections document."
}
func (t *SelfReflectTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session": map[string]interface{}{"type": "string"},
			"content": map[string]interface{}{"type": "string"},
		},
		"required": []string{"session", "content"},
	}
}
func (t *SelfReflectTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.write(args)
}

// IdentityGetTool reads the session's well-known identity.md document.
type IdentityGetTool struct{ memoryReadBase }

func NewIdentityGetTool(memory store.MemoryStore) *IdentityGetTool {
	return &IdentityGetTool{memoryReadBase{memory: memory, defaultName: "identity"}}
}
func (t *IdentityGetTool) Name() string        { return "identity_get" }
func (t *IdentityGetTool) Description() string { return "Read this session's identity document." }
func (t *IdentityGetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"session": map[string]interface{}{"type": "string"}},
		"required":   []string{"session"},
	}
}
func (t *IdentityGetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.read(args)
}

// IdentityUpdateTool writes the session's identity.md document.
type IdentityUpdateTool struct{ memoryWriteBase }

func NewIdentityUpdateTool(memory store.MemoryStore) *IdentityUpdateTool {
	return &IdentityUpdateTool{memoryWriteBase{memory: memory, defaultName: "identity"}}
}
func (t *IdentityUpdateTool) Name() string        { return "identity_update" }
func (t *IdentityUpdateTool) Description() string { return "Update this session's identity document." }
func (t *IdentityUpdateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session": map[string]interface{}{"type": "string"},
			"content": map[string]interface{}{"type": "string"},
		},
		"required": []string{"session", "content"},
	}
}
func (t *IdentityUpdateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.write(args)
}

// SoulGetTool reads the session's well-known soul.md document (the
// persona/values document, distinct from identity.md's factual self-model).
type SoulGetTool struct{ memoryReadBase }

func NewSoulGetTool(memory store.MemoryStore) *SoulGetTool {
	return &SoulGetTool{memoryReadBase{memory: memory, defaultName: "soul"}}
}
func (t *SoulGetTool) Name() string        { return "soul_get" }
func (t *SoulGetTool) Description() string { return "Read this session's soul document." }
func (t *SoulGetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"session": map[string]interface{}{"type": "string"}},
		"required":   []string{"session"},
	}
}
func (t *SoulGetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.read(args)
}

// SoulUpdateTool writes the session's soul.md document.
type SoulUpdateTool struct{ memoryWriteBase }

func NewSoulUpdateTool(memory store.MemoryStore) *SoulUpdateTool {
	return &SoulUpdateTool{memoryWriteBase{memory: memory, defaultName: "soul"}}
}
func (t *SoulUpdateTool) Name() string        { return "soul_update" }
func (t *SoulUpdateTool) Description() string { return "Update this session's soul document." }
func (t *SoulUpdateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session": map[string]interface{}{"type": "string"},
			"content": map[string]interface{}{"type": "string"},
		},
		"required": []string{"session", "content"},
	}
}
func (t *SoulUpdateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return t.write(args)
}
