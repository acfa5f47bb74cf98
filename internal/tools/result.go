package tools

// Result is the unified return type from tool execution: an explicit
// Ok/ErrTool sum type per the redesign guidance in spec §9 ("replace
// exception-based control flow in tool handlers with Ok(T) | ErrTool(kind,
// msg); the dispatch loop pattern-matches to decide whether to surface
// back to the provider or abort"). Constructor shape follows goclaw's
// internal/tools/result.go (NewResult/ErrorResult/SilentResult).
type Result struct {
	IsError bool
	ForLLM  string // content sent back to the provider as the tool result
	ForUser string // optional content surfaced to the user directly
	ErrKind string // non-empty only when IsError
}

// Ok wraps a successful tool result.
func Ok(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

// OkWithUser wraps a successful result that also surfaces forUser to the caller.
func OkWithUser(forLLM, forUser string) *Result {
	return &Result{ForLLM: forLLM, ForUser: forUser}
}

// ErrTool wraps a tool failure with a stable kind the dispatch loop can
// pattern-match on (e.g. "capability_denied", "not_found", "exec_failed").
func ErrTool(kind, msg string) *Result {
	return &Result{IsError: true, ErrKind: kind, ForLLM: msg}
}
