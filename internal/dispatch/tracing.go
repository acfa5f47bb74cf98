package dispatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/providers"
)

// tracer wraps the OpenTelemetry tracer dispatch uses to emit one span per
// injection plus child spans for the provider call and each tool call
// (SPEC_FULL §5.4), mirroring the span-per-step shape goclaw's
// emitLLMSpan/emitToolSpan/emitAgentSpan use against its own bespoke
// collector — translated here onto the real go.opentelemetry.io/otel/trace
// API since the dependency is declared but never exercised in the pack.
// All methods are no-ops when telemetry is disabled, so hot-path dispatch
// never pays for spans nobody reads.
type tracer struct {
	enabled bool
	t       trace.Tracer
}

func newTracer(cfg *config.Config) tracer {
	return tracer{
		enabled: cfg.TelemetryEnabled(),
		t:       otel.Tracer("github.com/nextlevelbuilder/wopr/internal/dispatch"),
	}
}

// startInjection opens the root "wopr.dispatch" span for one Inject call.
func (tr tracer) startInjection(ctx context.Context, session string) (context.Context, trace.Span) {
	if !tr.enabled {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tr.t.Start(ctx, "wopr.dispatch", trace.WithAttributes(
		attribute.String("wopr.session", session),
	))
}

// providerSpan wraps a single provider attempt (one per fallback-chain
// iteration) as a child span.
func (tr tracer) providerSpan(ctx context.Context, providerName, model string, attempt int) (context.Context, trace.Span) {
	if !tr.enabled {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tr.t.Start(ctx, "wopr.dispatch.provider", trace.WithAttributes(
		attribute.String("wopr.provider", providerName),
		attribute.String("wopr.model", model),
		attribute.Int("wopr.attempt", attempt),
	))
}

// endProviderSpan closes a provider span, recording usage and error status.
func (tr tracer) endProviderSpan(span trace.Span, resp *providers.ChatResponse, err error) {
	if !tr.enabled {
		return
	}
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(attribute.String("wopr.finish_reason", resp.FinishReason))
	if resp.Usage != nil {
		span.SetAttributes(
			attribute.Int("wopr.prompt_tokens", resp.Usage.PromptTokens),
			attribute.Int("wopr.completion_tokens", resp.Usage.CompletionTokens),
		)
	}
	span.SetStatus(codes.Ok, "")
}

// toolSpan wraps a single tool-call re-entry as a child span.
func (tr tracer) toolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	if !tr.enabled {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tr.t.Start(ctx, "wopr.dispatch.tool", trace.WithAttributes(
		attribute.String("wopr.tool", toolName),
	))
}

// endToolSpan closes a tool span, recording its error status if any.
func (tr tracer) endToolSpan(span trace.Span, isError bool, errMsg string) {
	if !tr.enabled {
		return
	}
	defer span.End()
	if isError {
		span.SetStatus(codes.Error, errMsg)
		return
	}
	span.SetStatus(codes.Ok, "")
}

// endInjection closes the root dispatch span.
func (tr tracer) endInjection(span trace.Span, err error) {
	if !tr.enabled {
		return
	}
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
