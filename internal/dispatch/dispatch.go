package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/providers"
	"github.com/nextlevelbuilder/wopr/internal/queue"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
	"github.com/nextlevelbuilder/wopr/internal/tools"
)

// ErrInjectionDenied wraps a security-kernel denial reason (spec §4.1).
var ErrInjectionDenied = errors.New("injection_denied")

// ErrProviderUnavailable is raised once the fallback chain is exhausted
// (spec §4.4: "exhausted chain raises provider_unavailable").
var ErrProviderUnavailable = errors.New("provider_unavailable")

// injectionContext bundles what the worker callback needs per item: the
// queue only carries an opaque interface{} as Item.Source, so everything
// runDispatch requires travels through this struct instead of a
// side-table keyed by inject-id.
type injectionContext struct {
	secCtx security.SecurityContext
	opts   Options
}

// partialBuffer accumulates streamed text chunks so a cancellation can
// flush whatever was already yielded (spec §4.4 cancellation semantics
// (b)), since the provider client's ChatStream only returns a complete
// ChatResponse on success.
type partialBuffer struct {
	mu   sync.Mutex
	text strings.Builder
}

func (b *partialBuffer) append(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.WriteString(s)
}

func (b *partialBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text.String()
}

// Inject is dispatch's public entry point (spec §4.4:
// "dispatch(session, message, securityContext, {silent?, onStream?})").
// It runs the security gate, then enqueues onto C4; the actual pipeline
// (steps 1-8) runs in runDispatch once the item reaches the front of its
// session's queue.
func (d *Dispatcher) Inject(ctx context.Context, session, message string, source security.InjectionSource, opts Options) (*queue.Future, error) {
	allowed, reason, secCtx := d.kernel.EvaluateInjection(source, session)
	if !allowed {
		return nil, fmt.Errorf("%w: %s", ErrInjectionDenied, reason)
	}

	_, future := d.queue.Enqueue(ctx, session, message, opts.Priority, injectionContext{secCtx: *secCtx, opts: opts})
	return future, nil
}

// InjectAndWait runs Inject and blocks for its result, satisfying
// cron.DispatchFunc's signature so the scheduler can call straight into
// dispatch without knowing about queues or futures.
func (d *Dispatcher) InjectAndWait(ctx context.Context, session, message string, source security.InjectionSource) error {
	future, err := d.Inject(ctx, session, message, source, Options{})
	if err != nil {
		return err
	}
	result, err := future.Wait(ctx)
	if err != nil {
		return err
	}
	return result.Err
}

// runDispatch is the queue.Worker this Dispatcher's Manager invokes for
// every dequeued item: it implements spec §4.4 steps 1-8.
func (d *Dispatcher) runDispatch(ctx context.Context, item *queue.Item) queue.Result {
	ic, ok := item.Source.(injectionContext)
	if !ok {
		return queue.Result{Err: fmt.Errorf("dispatch: item %s missing injection context", item.InjectID)}
	}
	secCtx := ic.secCtx

	ctx, span := d.tracer.startInjection(ctx, item.Session)
	var dispatchErr error
	defer func() { d.tracer.endInjection(span, dispatchErr) }()

	d.kernel.StoreContext(item.InjectID, secCtx)
	defer d.kernel.ClearContext(item.InjectID)

	// Step 2: incoming middleware may rewrite or prevent the message.
	incoming := d.hooks.RunHook(bus.HookMessageIncoming, map[string]interface{}{
		"session": item.Session,
		"from":    string(secCtx.Source.Type),
		"message": item.Message,
	})
	if incoming.Prevented {
		d.appendLog(item.Session, store.ConversationEntry{
			Ts:      time.Now(),
			From:    "middleware",
			Content: incoming.Reason,
			Type:    store.EntryMiddleware,
		})
		return queue.Result{FinishReason: string(store.FinishStop)}
	}
	message := item.Message
	if payload, ok := incoming.Payload.(map[string]interface{}); ok {
		if m, ok := payload["message"].(string); ok {
			message = m
		}
	}

	// Step 3: log the inbound entry.
	if err := d.sessions.AppendEntry(item.Session, store.ConversationEntry{
		Ts:      time.Now(),
		From:    string(secCtx.Source.Type),
		Content: message,
		Type:    store.EntryMessage,
	}); err != nil {
		dispatchErr = err
		return queue.Result{Err: err}
	}

	// Step 1: assemble context now that the final inbound message is known.
	messages, err := d.buildMessages(ctx, item.Session, message)
	if err != nil {
		dispatchErr = err
		return queue.Result{Err: err}
	}

	sess, _ := d.sessions.Get(item.Session)
	var binding *store.ProviderBinding
	if sess != nil {
		binding = sess.ProviderBinding
	}

	partial := &partialBuffer{}
	resp, respErr := d.queryWithFallback(ctx, item, secCtx, messages, binding, ic.opts.OnStream, partial)
	if respErr != nil {
		if item.Cancelled() {
			d.flushCancelled(item.Session, partial.String())
			dispatchErr = context.Canceled
			return queue.Result{Err: context.Canceled, FinishReason: string(store.FinishCancelled)}
		}
		dispatchErr = respErr
		return queue.Result{Err: respErr}
	}

	// Step 6: outgoing middleware may rewrite or prevent the response.
	outgoing := d.hooks.RunHook(bus.HookMessageOutgoing, map[string]interface{}{
		"session":  item.Session,
		"from":     "assistant",
		"response": resp.Content,
	})
	finalText := resp.Content
	if outgoing.Prevented {
		finalText = ""
	} else if payload, ok := outgoing.Payload.(map[string]interface{}); ok {
		if r, ok := payload["response"].(string); ok {
			finalText = r
		}
	}

	// Step 7: log the response entry.
	entry := store.ConversationEntry{
		Ts:           time.Now(),
		From:         "assistant",
		Content:      finalText,
		Type:         store.EntryResponse,
		FinishReason: store.FinishReason(resp.FinishReason),
	}
	if resp.Usage != nil {
		entry.PromptTokens = resp.Usage.PromptTokens
		entry.CompletionTokens = resp.Usage.CompletionTokens
	}
	if err := d.sessions.AppendEntry(item.Session, entry); err != nil {
		dispatchErr = err
		return queue.Result{Err: err}
	}

	// Step 8: notify.
	if !ic.opts.Silent {
		d.publisher.Publish(bus.Event{Name: bus.EventSessionResponse, Payload: map[string]interface{}{
			"session": item.Session,
			"content": finalText,
		}})
	}
	d.publisher.Publish(bus.Event{Name: bus.EventSessionComplete, Payload: map[string]interface{}{
		"session":  item.Session,
		"injectId": item.InjectID,
	}})

	return queue.Result{Text: finalText, FinishReason: resp.FinishReason}
}

// flushCancelled persists whatever partial text a cancelled stream had
// already yielded, marked with FinishCancelled (spec §4.4 cancellation
// semantics (b)).
func (d *Dispatcher) flushCancelled(session, partialText string) {
	_ = d.sessions.AppendEntry(session, store.ConversationEntry{
		Ts:           time.Now(),
		From:         "assistant",
		Content:      partialText,
		Type:         store.EntryResponse,
		FinishReason: store.FinishCancelled,
	})
}

func (d *Dispatcher) appendLog(session string, entry store.ConversationEntry) {
	_ = d.sessions.AppendEntry(session, entry)
}

// queryWithFallback resolves a provider client via C3 and drives the
// streaming query, retrying against the fallback chain on transient
// errors up to cfg.DispatchAttempts(), each bounded by
// cfg.DispatchPerAttemptTimeout() (spec §4.4 failure semantics).
func (d *Dispatcher) queryWithFallback(
	ctx context.Context,
	item *queue.Item,
	secCtx security.SecurityContext,
	messages []providers.Message,
	binding *store.ProviderBinding,
	onStream func(providers.StreamChunk),
	partial *partialBuffer,
) (*providers.ChatResponse, error) {
	maxAttempts := d.cfg.DispatchAttempts()
	timeout := d.cfg.DispatchPerAttemptTimeout()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, providerName, err := d.registry.Resolve(binding)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		toolDefs := d.policy.FilterTools(d.toolReg, providerName, secCtx)

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		spanCtx, span := d.tracer.providerSpan(attemptCtx, providerName, client.DefaultModel(), attempt)

		req := providers.ChatRequest{Messages: messages, Tools: toolDefs, Model: client.DefaultModel()}
		resp, err := d.runQuery(spanCtx, item, secCtx, client, req, onStream, partial)
		cancel()
		d.tracer.endProviderSpan(span, resp, err)

		if err == nil {
			return resp, nil
		}
		lastErr = err
		if item.Cancelled() {
			return nil, err
		}
		// A transient failure drops this provider from consideration for
		// the remaining attempts, so the chain actually advances instead
		// of retrying the same unhealthy backend (spec §4.4 failure
		// semantics: "triggers the fallback chain from C3").
		d.registry.MarkUnavailable(providerName)
	}
	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}

// runQuery drives one provider attempt's streaming call, re-entering C6
// for every tool_use chunk the provider emits (spec §4.4 step 5, §4.5).
func (d *Dispatcher) runQuery(
	ctx context.Context,
	item *queue.Item,
	secCtx security.SecurityContext,
	client providers.Client,
	req providers.ChatRequest,
	onStream func(providers.StreamChunk),
	partial *partialBuffer,
) (*providers.ChatResponse, error) {
	onChunk := func(chunk providers.StreamChunk) {
		partial.append(chunk.Content)
		d.publisher.Publish(bus.Event{Name: bus.EventSessionStream, Payload: map[string]interface{}{
			"session": item.Session,
			"content": chunk.Content,
		}})
		if onStream != nil {
			onStream(chunk)
		}
	}

	resp, err := client.ChatStream(ctx, req, onChunk)
	if err != nil {
		return nil, err
	}

	for len(resp.ToolCalls) > 0 {
		req.Messages = append(req.Messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := d.invokeTool(ctx, item, secCtx, call)
			req.Messages = append(req.Messages, providers.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
		resp, err = client.ChatStream(ctx, req, onChunk)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// invokeTool implements spec §4.5's runtime tool-call evaluation: lookup,
// a fresh capability re-check (a grant visible at message-build time may
// have been revoked since), execution, and the tool:invoked audit event.
func (d *Dispatcher) invokeTool(ctx context.Context, item *queue.Item, secCtx security.SecurityContext, call providers.ToolCall) string {
	start := time.Now()
	toolCtx, span := d.tracer.toolSpan(ctx, call.Name)

	tool, ok := d.toolReg.Get(call.Name)
	if !ok {
		d.tracer.endToolSpan(span, true, "not_found")
		return fmt.Sprintf(`{"error":"tool_not_found","tool":%q}`, call.Name)
	}

	retrieved, ok := d.kernel.RetrieveContext(item.InjectID)
	if !ok {
		retrieved = secCtx
	}
	if !d.policy.CheckToolCall(call.Name, retrieved) {
		d.tracer.endToolSpan(span, true, "capability_denied")
		return `{"error":"capability_denied"}`
	}

	execCtx := tools.WithSecurityContext(toolCtx, retrieved)
	execCtx = tools.WithTargetSession(execCtx, item.Session)
	execCtx = tools.WithRequestID(execCtx, item.InjectID)

	result := tool.Execute(execCtx, call.Arguments)

	d.publisher.Publish(bus.Event{Name: bus.EventToolInvoked, Payload: map[string]interface{}{
		"tool":       call.Name,
		"session":    item.Session,
		"allowed":    true,
		"durationMs": time.Since(start).Milliseconds(),
	}})
	d.tracer.endToolSpan(span, result.IsError, result.ErrKind)
	return result.ForLLM
}
