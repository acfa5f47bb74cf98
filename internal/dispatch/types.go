// Package dispatch implements WOPR's C5 dispatch engine: the sequence
// that turns a dequeued work item into a context-assembled,
// middleware-filtered, provider-streamed, tool-re-entrant, logged
// interaction (spec §4.4). Grounded on goclaw's internal/agent.Loop.Run /
// runLoop (think→act→observe cycle, buffered message flush, usage
// accumulation, tool-call fan-out) generalized from goclaw's
// channel/agent-id session model onto WOPR's session-name + capability
// model.
package dispatch

import (
	"context"

	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/providers"
	"github.com/nextlevelbuilder/wopr/internal/queue"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
	"github.com/nextlevelbuilder/wopr/internal/tools"
)

// ContextProvider contributes additional context text for a session.
// Providers are registered once and run on every dispatch; their outputs
// are concatenated in descending priority order after the built-in
// system-prompt + history assembly (spec §4.4 step 1, SPEC_FULL §5.4).
type ContextProvider func(ctx context.Context, session string) (text string, priority int)

// HookRunner is the subset of *bus.Bus the dispatch engine needs for
// mutable pre-hooks (message:incoming / message:outgoing). Kept narrow so
// tests can supply a fake without pulling in the whole Bus.
type HookRunner interface {
	RunHook(hookName string, payload interface{}) bus.HookResult
}

// Options customizes a single Inject call (spec §4.4 "dispatch(session,
// message, securityContext, {silent?, onStream?})").
type Options struct {
	Silent   bool
	OnStream func(chunk providers.StreamChunk)
	Priority int
}

// Dispatcher wires together every collaborator a dispatch needs: session
// storage (C1), the security kernel (C2), the provider registry (C3), the
// session queue (C4), and the tool surface (C6).
type Dispatcher struct {
	sessions store.SessionStore
	kernel   *security.Kernel
	registry *providers.Registry
	toolReg  *tools.Registry
	policy   *tools.PolicyEngine
	publisher bus.EventPublisher
	hooks    HookRunner
	cfg      *config.Config
	queue    *queue.Manager

	contextProviders []ContextProvider
	tracer           tracer
}

// New constructs a Dispatcher without its queue.Manager wired in yet: the
// manager needs d.runDispatch as its Worker, which doesn't exist until the
// Dispatcher itself does, so bootstrap must call SetQueue once the
// manager has been constructed around this Dispatcher's runDispatch
// method (mirrors goclaw's build order of provider registry and tool
// registry before the loop that consumes them).
func New(
	sessions store.SessionStore,
	kernel *security.Kernel,
	registry *providers.Registry,
	toolReg *tools.Registry,
	policy *tools.PolicyEngine,
	publisher bus.EventPublisher,
	hooks HookRunner,
	cfg *config.Config,
) *Dispatcher {
	d := &Dispatcher{
		sessions:  sessions,
		kernel:    kernel,
		registry:  registry,
		toolReg:   toolReg,
		policy:    policy,
		publisher: publisher,
		hooks:     hooks,
		cfg:       cfg,
	}
	d.tracer = newTracer(cfg)
	return d
}

// SetQueue wires the queue.Manager that routes Inject calls to
// runDispatch. Must be called once, before the first Inject.
func (d *Dispatcher) SetQueue(qm *queue.Manager) {
	d.queue = qm
}

// Bootstrap builds the queue.Manager around this Dispatcher's runDispatch
// and wires it in via SetQueue, so bootstrap code outside this package
// never needs direct access to the unexported Worker method.
func (d *Dispatcher) Bootstrap(publisher bus.EventPublisher) *queue.Manager {
	qm := queue.NewManager(d.runDispatch, publisher)
	d.SetQueue(qm)
	return qm
}

// RegisterContextProvider adds a lazy context contributor (spec §4.4 step
// 1; SPEC_FULL §5.4). Built-in system-prompt + history assembly always
// runs first; providers then concatenate in descending order of the
// priority each returns on a given call, since that is the "priority
// order" spec.md's context assembly step names.
func (d *Dispatcher) RegisterContextProvider(p ContextProvider) {
	d.contextProviders = append(d.contextProviders, p)
}
