package security

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

type memPeerStore struct {
	peers  map[string]store.Peer
	grants map[string]store.AccessGrant
}

func newMemPeerStore() *memPeerStore {
	return &memPeerStore{peers: map[string]store.Peer{}, grants: map[string]store.AccessGrant{}}
}
func (m *memPeerStore) UpsertPeer(p store.Peer) error  { m.peers[p.PublicKey] = p; return nil }
func (m *memPeerStore) GetPeer(k string) (*store.Peer, bool) {
	p, ok := m.peers[k]
	return &p, ok
}
func (m *memPeerStore) ListPeers() []store.Peer { return nil }
func (m *memPeerStore) CreateGrant(g store.AccessGrant) error {
	m.grants[g.ID] = g
	return nil
}
func (m *memPeerStore) GetGrant(id string) (*store.AccessGrant, bool) {
	g, ok := m.grants[id]
	return &g, ok
}
func (m *memPeerStore) ListGrants() []store.AccessGrant { return nil }
func (m *memPeerStore) DeleteGrant(id string) error     { delete(m.grants, id); return nil }

func testConfig(enforcement string) *config.Config {
	cfg := config.Default()
	cfg.Security.Enforcement = enforcement
	cfg.Security.Defaults = config.SessionSecurityPolicy{
		Access:       []string{"trust:owner"},
		Capabilities: []string{"session.history"},
	}
	return cfg
}

func TestEvaluateInjection_OwnerSourceAllowedByDefault(t *testing.T) {
	cfg := testConfig("enforce")
	k := NewKernel(cfg, newMemPeerStore(), nil, nil)

	allowed, reason, ctx := k.EvaluateInjection(InjectionSource{Type: SourceInternal}, "main")
	if !allowed {
		t.Fatalf("expected internal source to be allowed, reason=%q", reason)
	}
	if ctx.TrustLevel != TrustOwner {
		t.Fatalf("expected owner trust, got %q", ctx.TrustLevel)
	}
}

func TestEvaluateInjection_SemiTrustedDeniedInEnforceMode(t *testing.T) {
	cfg := testConfig("enforce")
	k := NewKernel(cfg, newMemPeerStore(), nil, nil)

	allowed, reason, ctx := k.EvaluateInjection(InjectionSource{Type: SourceHTTP}, "main")
	if allowed {
		t.Fatal("expected semi-trusted http source to be denied")
	}
	if reason != string(FailureAccessDenied) {
		t.Fatalf("expected access_denied, got %q", reason)
	}
	if ctx != nil {
		t.Fatal("expected nil context on denial")
	}
}

func TestEvaluateInjection_WarnModeAllowsButAudits(t *testing.T) {
	cfg := testConfig("warn")
	b := bus.New()
	var audited bool
	b.Subscribe("t", func(e bus.Event) {
		if e.Name == "security.audit" {
			audited = true
		}
	})
	k := NewKernel(cfg, newMemPeerStore(), b, nil)

	allowed, _, ctx := k.EvaluateInjection(InjectionSource{Type: SourceHTTP}, "main")
	if !allowed {
		t.Fatal("expected warn mode to allow despite the violation")
	}
	if ctx == nil {
		t.Fatal("expected a context even in warn mode")
	}
	if !audited {
		t.Fatal("expected audit event regardless of enforcement mode")
	}
}

func TestEvaluateInjection_OffModeAlwaysAllows(t *testing.T) {
	cfg := testConfig("off")
	k := NewKernel(cfg, newMemPeerStore(), nil, nil)
	allowed, _, _ := k.EvaluateInjection(InjectionSource{Type: SourceHTTP}, "main")
	if !allowed {
		t.Fatal("expected off mode to always allow")
	}
}

func TestRequireCapability_DeniesMissingCapabilityInEnforceMode(t *testing.T) {
	cfg := testConfig("enforce")
	k := NewKernel(cfg, newMemPeerStore(), nil, nil)
	ctx := SecurityContext{Capabilities: ExpandCapabilities([]string{"session.history"})}

	if err := k.RequireCapability(ctx, "inject.exec"); err == nil {
		t.Fatal("expected capability_denied error")
	}
	if err := k.RequireCapability(ctx, "session.history"); err != nil {
		t.Fatalf("expected granted capability to pass, got %v", err)
	}
}

func TestCapabilityHierarchy_InjectGrantsChildren(t *testing.T) {
	expanded := ExpandCapabilities([]string{"inject"})
	for _, child := range []string{"inject.tools", "inject.network", "inject.exec"} {
		if !expanded[child] {
			t.Errorf("expected %q to be granted by parent 'inject'", child)
		}
	}
}

func TestCapabilityWildcard_GrantsEverything(t *testing.T) {
	ctx := SecurityContext{Capabilities: ExpandCapabilities([]string{"*"})}
	if !ctx.HasCapability("cron.manage") {
		t.Fatal("expected wildcard to grant every capability")
	}
}

func TestGrantExpiry_TreatedAsUntrusted(t *testing.T) {
	cfg := testConfig("enforce")
	peers := newMemPeerStore()
	past := time.Now().Add(-time.Hour)
	peers.grants["expired"] = store.AccessGrant{ID: "expired", TrustLevel: string(TrustOwner), Capabilities: []string{"*"}, ExpiresAt: &past}
	k := NewKernel(cfg, peers, nil, nil)

	allowed, _, _ := k.EvaluateInjection(InjectionSource{Type: SourceHTTP, Identity: Identity{GrantID: "expired"}}, "main")
	if allowed {
		t.Fatal("expected expired grant to be treated as untrusted and denied")
	}
}

func TestRequireExplicitCapability_InjectDoesNotImplyDangerousTool(t *testing.T) {
	cfg := testConfig("enforce")
	k := NewKernel(cfg, newMemPeerStore(), nil, nil)
	ctx := SecurityContext{
		Capabilities: ExpandCapabilities([]string{"inject"}),
		Explicit:     map[string]bool{"inject": true},
	}

	if err := k.RequireCapability(ctx, "inject.network"); err != nil {
		t.Fatalf("expected 'inject' to imply 'inject.network' for the ordinary check, got %v", err)
	}
	if err := k.RequireExplicitCapability(ctx, "inject.network"); err == nil {
		t.Fatal("expected 'inject' alone to NOT satisfy the explicit check for a dangerous tool")
	}

	ctx.Explicit["inject.network"] = true
	if err := k.RequireExplicitCapability(ctx, "inject.network"); err != nil {
		t.Fatalf("expected explicit grant to satisfy the explicit check, got %v", err)
	}
}

func TestEvaluateInjection_UnverifiedGatewayClaimIsDenied(t *testing.T) {
	cfg := testConfig("enforce")
	cfg.Security.Sessions = map[string]config.SessionSecurityPolicy{
		"target": {Access: []string{"session:relay"}},
	}
	k := NewKernel(cfg, newMemPeerStore(), nil, nil)

	source := InjectionSource{Type: SourceHTTP, Identity: Identity{GatewaySession: "relay"}}
	allowed, reason, _ := k.EvaluateInjection(source, "target")
	if allowed {
		t.Fatal("expected a claimed gateway session that isn't configured as a gateway to be denied")
	}
	if reason != string(FailureGatewayRequired) {
		t.Fatalf("expected gateway_required, got %q", reason)
	}
}

func TestEvaluateInjection_ConfiguredGatewayIsAllowedToForward(t *testing.T) {
	cfg := testConfig("enforce")
	cfg.Security.Sessions = map[string]config.SessionSecurityPolicy{
		"target": {Access: []string{"session:relay"}},
		"relay":  {Gateway: true},
	}
	k := NewKernel(cfg, newMemPeerStore(), nil, nil)

	source := InjectionSource{Type: SourceHTTP, Identity: Identity{GatewaySession: "relay"}}
	allowed, reason, _ := k.EvaluateInjection(source, "target")
	if !allowed {
		t.Fatalf("expected a configured gateway to be allowed to forward, reason=%q", reason)
	}
}

func TestCanGatewayForward_RespectsGatewayTargetsAllowList(t *testing.T) {
	cfg := testConfig("enforce")
	cfg.Security.Sessions = map[string]config.SessionSecurityPolicy{
		"relay": {Gateway: true, GatewayTargets: []string{"allowed"}},
	}
	k := NewKernel(cfg, newMemPeerStore(), nil, nil)

	if allowed, reason := k.CanGatewayForward("relay", "allowed"); !allowed {
		t.Fatalf("expected relay to forward to its allow-listed target, reason=%q", reason)
	}
	if allowed, _ := k.CanGatewayForward("relay", "other"); allowed {
		t.Fatal("expected relay to be denied forwarding to a target outside its allow-list")
	}
	if allowed, reason := k.CanGatewayForward("not-a-relay", "allowed"); allowed {
		t.Fatalf("expected a non-gateway session to be denied, reason=%q", reason)
	}
}

func TestRequestBoundContextTable(t *testing.T) {
	k := NewKernel(testConfig("enforce"), newMemPeerStore(), nil, nil)
	ctx := SecurityContext{TrustLevel: TrustOwner}
	k.StoreContext("req-1", ctx)

	got, ok := k.RetrieveContext("req-1")
	if !ok || got.TrustLevel != TrustOwner {
		t.Fatal("expected stored context to be retrievable")
	}
	k.ClearContext("req-1")
	if _, ok := k.RetrieveContext("req-1"); ok {
		t.Fatal("expected context to be cleared")
	}
}
