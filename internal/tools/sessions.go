package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// SessionsListTool lists known sessions (spec §4.5 TOOL_CAPABILITY_MAP:
// session.history). Grounded on goclaw's SessionsListTool, dropping its
// agent-scoping (WOPR has a single flat session namespace, spec §3).
type SessionsListTool struct {
	sessions store.SessionStore
}

func NewSessionsListTool(sessions store.SessionStore) *SessionsListTool {
	return &SessionsListTool{sessions: sessions}
}

func (t *SessionsListTool) Name() string        { return "sessions_list" }
func (t *SessionsListTool) Description() string { return "List known sessions." }
func (t *SessionsListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{"type": "number", "description": "Max sessions to return (default 20)"},
		},
	}
}

func (t *SessionsListTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	limit := 20
	if v, ok := args["limit"].(float64); ok && int(v) > 0 {
		limit = int(v)
	}
	sessions := t.sessions.List()
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	out := "sessions:\n"
	for _, s := range sessions {
		out += fmt.Sprintf("- %s (created %s)\n", s.Name, s.Created.Format(time.RFC3339))
	}
	return Ok(out)
}

// SessionsHistoryTool reads a session's conversation log.
type SessionsHistoryTool struct {
	sessions store.SessionStore
}

func NewSessionsHistoryTool(sessions store.SessionStore) *SessionsHistoryTool {
	return &SessionsHistoryTool{sessions: sessions}
}

func (t *SessionsHistoryTool) Name() string        { return "sessions_history" }
func (t *SessionsHistoryTool) Description() string { return "Read a session's recent conversation log." }
func (t *SessionsHistoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session": map[string]interface{}{"type": "string", "description": "Session name"},
			"limit":   map[string]interface{}{"type": "number", "description": "Max entries, most recent first (default 20)"},
		},
		"required": []string{"session"},
	}
}

func (t *SessionsHistoryTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	session, _ := args["session"].(string)
	if session == "" {
		return ErrTool("invalid_args", "session is required")
	}
	limit := 20
	if v, ok := args["limit"].(float64); ok && int(v) > 0 {
		limit = int(v)
	}
	entries, err := t.sessions.ReadLog(session, limit)
	if err != nil {
		return ErrTool("not_found", err.Error())
	}
	out := fmt.Sprintf("history for %s:\n", session)
	for _, e := range entries {
		out += fmt.Sprintf("[%s] %s: %s\n", e.Ts.Format(time.RFC3339), e.From, e.Content)
	}
	return Ok(out)
}

// SessionsSendTool injects a message into another session — the
// cross-session primitive spec §4.5 maps to the cross.inject capability.
type SessionsSendTool struct {
	sessions store.SessionStore
	dispatch func(ctx context.Context, session, message string) error
}

// NewSessionsSendTool takes a dispatch callback rather than a direct
// store write, since sending into another session must re-enter the full
// C5 pipeline (security evaluation, queueing), not just append a log line.
func NewSessionsSendTool(sessions store.SessionStore, dispatch func(ctx context.Context, session, message string) error) *SessionsSendTool {
	return &SessionsSendTool{sessions: sessions, dispatch: dispatch}
}

func (t *SessionsSendTool) Name() string        { return "sessions_send" }
func (t *SessionsSendTool) Description() string { return "Send a message into another session." }
func (t *SessionsSendTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session": map[string]interface{}{"type": "string", "description": "Target session name"},
			"message": map[string]interface{}{"type": "string", "description": "Message to send"},
		},
		"required": []string{"session", "message"},
	}
}

func (t *SessionsSendTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	session, _ := args["session"].(string)
	message, _ := args["message"].(string)
	if session == "" || message == "" {
		return ErrTool("invalid_args", "session and message are required")
	}
	if t.dispatch == nil {
		return ErrTool("unavailable", "cross-session dispatch not wired")
	}
	if err := t.dispatch(ctx, session, message); err != nil {
		return ErrTool("dispatch_failed", err.Error())
	}
	return Ok(fmt.Sprintf("sent to %s", session))
}

// SessionsSpawnTool creates a new session (session.spawn capability).
type SessionsSpawnTool struct {
	sessions store.SessionStore
}

func NewSessionsSpawnTool(sessions store.SessionStore) *SessionsSpawnTool {
	return &SessionsSpawnTool{sessions: sessions}
}

func (t *SessionsSpawnTool) Name() string        { return "sessions_spawn" }
func (t *SessionsSpawnTool) Description() string { return "Create a new session." }
func (t *SessionsSpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "description": "New session name"},
		},
		"required": []string{"name"},
	}
}

func (t *SessionsSpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	if name == "" {
		return ErrTool("invalid_args", "name is required")
	}
	sess, err := t.sessions.CreateSession(name)
	if err != nil {
		return ErrTool("create_failed", err.Error())
	}
	return Ok(fmt.Sprintf("spawned session %s (id=%s)", sess.Name, sess.ID))
}
