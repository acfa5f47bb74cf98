package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/providers"
	"github.com/nextlevelbuilder/wopr/internal/queue"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
	"github.com/nextlevelbuilder/wopr/internal/tools"
)

// memSessionStore is a minimal in-memory store.SessionStore for dispatch
// tests, mirroring the fake store shape cron/scheduler_test.go uses for
// store.CronStore.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*store.Session
	logs     map[string][]store.ConversationEntry
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions: map[string]*store.Session{},
		logs:     map[string][]store.ConversationEntry{},
	}
}

func (m *memSessionStore) CreateSession(name string) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[name]; ok {
		return s, nil
	}
	s := &store.Session{Name: name, Created: time.Now()}
	m.sessions[name] = s
	return s, nil
}

func (m *memSessionStore) Get(name string) (*store.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[name]
	return s, ok
}

func (m *memSessionStore) SetProviderBinding(name string, binding *store.ProviderBinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[name]
	if !ok {
		s = &store.Session{Name: name}
		m.sessions[name] = s
	}
	s.ProviderBinding = binding
	return nil
}

func (m *memSessionStore) SetContext(name, ctxText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[name]
	if !ok {
		s = &store.Session{Name: name}
		m.sessions[name] = s
	}
	s.Context = ctxText
	return nil
}

func (m *memSessionStore) DeleteSession(name, reason string) ([]store.ConversationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.logs[name]
	delete(m.sessions, name)
	delete(m.logs, name)
	return log, nil
}

func (m *memSessionStore) List() []store.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

func (m *memSessionStore) AppendEntry(session string, entry store.ConversationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session]; !ok {
		m.sessions[session] = &store.Session{Name: session, Created: time.Now()}
	}
	m.logs[session] = append(m.logs[session], entry)
	return nil
}

func (m *memSessionStore) ReadLog(session string, tailLimit int) ([]store.ConversationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.logs[session]
	if tailLimit <= 0 || len(entries) <= tailLimit {
		out := make([]store.ConversationEntry, len(entries))
		copy(out, entries)
		return out, nil
	}
	out := make([]store.ConversationEntry, tailLimit)
	copy(out, entries[len(entries)-tailLimit:])
	return out, nil
}

// fakeClient is a scripted providers.Client: each call to ChatStream pops
// the next canned response/error off its queue, echoing every streamed
// chunk through onChunk first.
type fakeClient struct {
	name      string
	model     string
	responses []*providers.ChatResponse
	errs      []error
	calls     int
}

func (c *fakeClient) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return c.ChatStream(ctx, req, nil)
}

func (c *fakeClient) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	idx := c.calls
	c.calls++
	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	if idx >= len(c.responses) {
		return &providers.ChatResponse{Content: "", FinishReason: "stop"}, nil
	}
	resp := c.responses[idx]
	if onChunk != nil && resp.Content != "" {
		onChunk(providers.StreamChunk{Content: resp.Content})
	}
	return resp, nil
}

func (c *fakeClient) DefaultModel() string { return c.model }
func (c *fakeClient) Name() string         { return c.name }

// echoTool is a trivial tools.Tool used to exercise the re-entry path. It
// is registered under "sessions_list" so it picks up that name's existing
// TOOL_CAPABILITY_MAP entry ("session.history") instead of needing a new,
// test-only capability mapping.
type echoTool struct{ invoked int }

func (t *echoTool) Name() string        { return "sessions_list" }
func (t *echoTool) Description() string { return "echoes its input arg" }
func (t *echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (t *echoTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	t.invoked++
	return tools.Ok("echoed")
}

// testHarness bundles everything a dispatch test needs so individual
// tests only set up what differs.
type testHarness struct {
	sessions *memSessionStore
	kernel   *security.Kernel
	registry *providers.Registry
	toolReg  *tools.Registry
	policy   *tools.PolicyEngine
	bus      *bus.Bus
	cfg      *config.Config
	dispatch *Dispatcher
	qm       *queue.Manager
}

func newHarness(t *testing.T, cfg *config.Config) *testHarness {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	b := bus.New()
	sessions := newMemSessionStore()
	kernel := security.NewKernel(cfg, nil, b, nil)
	registry := providers.NewRegistry()
	toolReg := tools.NewRegistry()
	policy := tools.NewPolicyEngine(&cfg.Tools, kernel)

	d := New(sessions, kernel, registry, toolReg, policy, b, b, cfg)
	qm := queue.NewManager(d.runDispatch, b)
	d.SetQueue(qm)

	return &testHarness{
		sessions: sessions,
		kernel:   kernel,
		registry: registry,
		toolReg:  toolReg,
		policy:   policy,
		bus:      b,
		cfg:      cfg,
		dispatch: d,
		qm:       qm,
	}
}

func ownerSource() security.InjectionSource {
	return security.InjectionSource{Type: security.SourceCLI}
}

func TestInject_DeniedByKernel(t *testing.T) {
	cfg := config.Default()
	cfg.Security.Enforcement = "enforce"
	cfg.Security.Defaults = security.SessionSecurityPolicy{Access: []string{"trust:owner"}}
	h := newHarness(t, cfg)

	source := security.InjectionSource{Type: security.SourceHTTP}
	_, err := h.dispatch.Inject(context.Background(), "alpha", "hello", source, Options{})
	if err == nil {
		t.Fatal("expected injection to be denied")
	}
}

func TestInject_HappyPath(t *testing.T) {
	h := newHarness(t, nil)
	h.registry.Register(&fakeClient{
		name:  "anthropic",
		model: "claude",
		responses: []*providers.ChatResponse{
			{Content: "hi there", FinishReason: "stop"},
		},
	})
	h.registry.CheckHealth(context.Background())

	var events []string
	h.bus.Subscribe("test", func(e bus.Event) { events = append(events, e.Name) })

	future, err := h.dispatch.Inject(context.Background(), "alpha", "hello", ownerSource(), Options{})
	if err != nil {
		t.Fatalf("unexpected Inject error: %v", err)
	}
	result, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected Wait error: %v", err)
	}
	if result.Text != "hi there" {
		t.Fatalf("result.Text = %q, want %q", result.Text, "hi there")
	}

	log, err := h.sessions.ReadLog("alpha", 0)
	if err != nil {
		t.Fatalf("ReadLog error: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("log length = %d, want 2 (message + response): %+v", len(log), log)
	}
	if log[0].Type != store.EntryMessage || log[1].Type != store.EntryResponse {
		t.Fatalf("unexpected log entry types: %+v", log)
	}

	foundComplete := false
	for _, name := range events {
		if name == bus.EventSessionComplete {
			foundComplete = true
		}
	}
	if !foundComplete {
		t.Fatalf("expected %s event, got %v", bus.EventSessionComplete, events)
	}
}

func TestInject_IncomingMiddlewarePrevents(t *testing.T) {
	h := newHarness(t, nil)
	h.registry.Register(&fakeClient{name: "anthropic", model: "claude", responses: []*providers.ChatResponse{
		{Content: "should not be reached", FinishReason: "stop"},
	}})
	h.registry.CheckHealth(context.Background())

	h.bus.SubscribeHook(bus.HookMessageIncoming, "blocker", 0, func(payload interface{}) bus.HookResult {
		return bus.Prevent("blocked by middleware")
	})

	future, err := h.dispatch.Inject(context.Background(), "alpha", "hello", ownerSource(), Options{})
	if err != nil {
		t.Fatalf("unexpected Inject error: %v", err)
	}
	result, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected Wait error: %v", err)
	}
	if result.FinishReason != string(store.FinishStop) {
		t.Fatalf("FinishReason = %q, want %q", result.FinishReason, store.FinishStop)
	}

	log, _ := h.sessions.ReadLog("alpha", 0)
	if len(log) != 1 || log[0].Type != store.EntryMiddleware {
		t.Fatalf("expected a single middleware log entry, got: %+v", log)
	}
}

func TestInject_ToolCallInvokedWithCapability(t *testing.T) {
	cfg := config.Default()
	cfg.Security.Defaults = security.SessionSecurityPolicy{
		Access:       []string{"*"},
		Capabilities: []string{"session.history"},
	}
	h := newHarness(t, cfg)

	tool := &echoTool{}
	h.toolReg.Register(tool)

	client := &fakeClient{
		name:  "anthropic",
		model: "claude",
		responses: []*providers.ChatResponse{
			{
				Content:      "",
				FinishReason: "tool_calls",
				ToolCalls: []providers.ToolCall{
					{ID: "call-1", Name: "sessions_list", Arguments: map[string]interface{}{}},
				},
			},
			{Content: "done", FinishReason: "stop"},
		},
	}
	h.registry.Register(client)
	h.registry.CheckHealth(context.Background())

	future, err := h.dispatch.Inject(context.Background(), "alpha", "hello", ownerSource(), Options{})
	if err != nil {
		t.Fatalf("unexpected Inject error: %v", err)
	}
	result, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected Wait error: %v", err)
	}
	if result.Text != "done" {
		t.Fatalf("result.Text = %q, want %q", result.Text, "done")
	}
	if tool.invoked != 1 {
		t.Fatalf("tool invoked %d times, want 1", tool.invoked)
	}
}

func TestInvokeTool_CapabilityDeniedAtReentry(t *testing.T) {
	cfg := config.Default()
	cfg.Security.Enforcement = "enforce"
	cfg.Security.Defaults = security.SessionSecurityPolicy{Access: []string{"*"}} // no capabilities granted
	h := newHarness(t, cfg)

	tool := &echoTool{}
	h.toolReg.Register(tool)

	secCtx := security.SecurityContext{
		Source:        ownerSource(),
		TrustLevel:    security.TrustUntrusted,
		Capabilities:  map[string]bool{},
		Explicit:      map[string]bool{},
		TargetSession: "alpha",
	}
	item := &queue.Item{InjectID: "inject-test-1", Session: "alpha"}
	h.kernel.StoreContext(item.InjectID, secCtx)

	out := h.dispatch.invokeTool(context.Background(), item, secCtx, providers.ToolCall{
		ID: "call-1", Name: "sessions_list", Arguments: map[string]interface{}{},
	})
	if tool.invoked != 0 {
		t.Fatalf("tool should not have been invoked, got %d calls", tool.invoked)
	}
	if out == "" {
		t.Fatal("expected a non-empty denial payload")
	}
}

func TestQueryWithFallback_AdvancesOnFailure(t *testing.T) {
	h := newHarness(t, nil)

	failing := &fakeClient{name: "primary", model: "m1", errs: []error{context.DeadlineExceeded}}
	working := &fakeClient{name: "secondary", model: "m2", responses: []*providers.ChatResponse{
		{Content: "from secondary", FinishReason: "stop"},
	}}
	h.registry.Register(failing)
	h.registry.Register(working)
	h.registry.CheckHealth(context.Background())

	future, err := h.dispatch.Inject(context.Background(), "alpha", "hello", ownerSource(), Options{})
	if err != nil {
		t.Fatalf("unexpected Inject error: %v", err)
	}
	result, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected Wait error: %v", err)
	}
	if result.Text != "from secondary" {
		t.Fatalf("result.Text = %q, want %q (expected fallback to advance past the failing provider)", result.Text, "from secondary")
	}
	if h.registry.Available("primary") {
		t.Fatal("primary should have been marked unavailable after its failed attempt")
	}
}

func TestPartialBuffer_AccumulatesChunks(t *testing.T) {
	pb := &partialBuffer{}
	pb.append("hello ")
	pb.append("world")
	if got := pb.String(); got != "hello world" {
		t.Fatalf("partialBuffer.String() = %q, want %q", got, "hello world")
	}
}

func TestInjectAndWait_PropagatesResult(t *testing.T) {
	h := newHarness(t, nil)
	h.registry.Register(&fakeClient{name: "anthropic", model: "claude", responses: []*providers.ChatResponse{
		{Content: "cron reply", FinishReason: "stop"},
	}})
	h.registry.CheckHealth(context.Background())

	err := h.dispatch.InjectAndWait(context.Background(), "alpha", "scheduled", security.InjectionSource{Type: security.SourceCron})
	if err != nil {
		t.Fatalf("unexpected InjectAndWait error: %v", err)
	}
	log, _ := h.sessions.ReadLog("alpha", 0)
	if len(log) != 2 || log[1].Content != "cron reply" {
		t.Fatalf("unexpected log after InjectAndWait: %+v", log)
	}
}
