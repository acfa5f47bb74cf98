package tools

import (
	"context"

	"github.com/nextlevelbuilder/wopr/internal/security"
)

// Tool execution context keys. These let handlers stay thread-safe for
// concurrent execution: values are injected by the dispatch engine per
// invocation instead of living as mutable fields on the tool instance
// (matches goclaw's internal/tools/context_keys.go idiom).
type toolContextKey string

const (
	ctxSecurity      toolContextKey = "tool_security_context"
	ctxTargetSession toolContextKey = "tool_target_session"
	ctxRequestID     toolContextKey = "tool_request_id"
)

func WithSecurityContext(ctx context.Context, sc security.SecurityContext) context.Context {
	return context.WithValue(ctx, ctxSecurity, sc)
}

func SecurityContextFromCtx(ctx context.Context) (security.SecurityContext, bool) {
	v, ok := ctx.Value(ctxSecurity).(security.SecurityContext)
	return v, ok
}

func WithTargetSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, ctxTargetSession, session)
}

func TargetSessionFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxTargetSession).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func RequestIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}
