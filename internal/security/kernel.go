package security

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

// Sandbox is the opt-in collaborator interface spec §9's open question
// resolves to: the sandbox integration is modeled as a capability behind
// this interface rather than a concrete module, so the kernel can run
// with or without one wired in.
type Sandbox interface {
	ResolveContext(session string) (string, error)
	ExecInContainer(session, command string) (string, error)
}

// NoopSandbox satisfies Sandbox for hosts that run with sandboxing
// disabled (the Docker backend itself is an explicit Non-goal).
type NoopSandbox struct{}

func (NoopSandbox) ResolveContext(session string) (string, error) { return "", nil }

func (NoopSandbox) ExecInContainer(session, command string) (string, error) {
	return "", fmt.Errorf("sandbox disabled: cannot exec %q for session %q", command, session)
}

// Kernel implements the C2 contracts: evaluateInjection, checkCapability,
// requireCapability, gateway helpers, and the request-bound context table.
type Kernel struct {
	cfg     *config.Config
	peers   store.PeerStore
	bus     bus.EventPublisher
	sandbox Sandbox

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	ctxMu sync.RWMutex
	ctxs  map[string]SecurityContext
}

func NewKernel(cfg *config.Config, peers store.PeerStore, publisher bus.EventPublisher, sandbox Sandbox) *Kernel {
	return &Kernel{
		cfg:      cfg,
		peers:    peers,
		bus:      publisher,
		sandbox:  sandbox,
		limiters: make(map[string]*rate.Limiter),
		ctxs:     make(map[string]SecurityContext),
	}
}

// EvaluateInjection runs the full decision pipeline from spec §4.1.
func (k *Kernel) EvaluateInjection(source InjectionSource, targetSession string) (allowed bool, reason string, ctx *SecurityContext) {
	enforcement := k.cfg.Enforcement()

	trust, capabilities, explicit := k.deriveTrustAndCapabilities(source)

	result := SecurityContext{
		Source:        source,
		TrustLevel:    trust,
		Capabilities:  capabilities,
		Explicit:      explicit,
		TargetSession: targetSession,
	}

	if err := k.checkRateLimit(source); err != nil {
		return k.gate(enforcement, false, string(err.Kind), result)
	}

	policy := k.cfg.SessionPolicy(targetSession)
	if !k.matchesAnyPattern(policy.Access, source, trust) {
		return k.gate(enforcement, false, string(FailureAccessDenied), result)
	}

	if !k.gatewayRoutingAllowed(policy, source, trust, targetSession) {
		return k.gate(enforcement, false, string(FailureGatewayRequired), result)
	}

	return k.gate(enforcement, true, "", result)
}

// gate applies spec §4.1 step 1 (enforcement mode only affects the final
// gate; audit always fires) and emits the audit event.
func (k *Kernel) gate(enforcement string, passed bool, reason string, ctx SecurityContext) (bool, string, *SecurityContext) {
	k.audit(passed, reason, ctx)

	switch enforcement {
	case "off":
		return true, "", &ctx
	case "warn":
		if !passed {
			slog.Warn("security.warn_mode_violation", "reason", reason, "target", ctx.TargetSession, "source", ctx.Source.Type)
		}
		return true, "", &ctx
	default: // enforce
		if !passed {
			return false, reason, nil
		}
		return true, "", &ctx
	}
}

func (k *Kernel) audit(allowed bool, reason string, ctx SecurityContext) {
	if k.bus == nil {
		return
	}
	k.bus.Publish(bus.Event{
		Name: "security.audit",
		Payload: map[string]interface{}{
			"allowed": allowed,
			"reason":  reason,
			"target":  ctx.TargetSession,
			"source":  ctx.Source,
			"trust":   ctx.TrustLevel,
		},
	})
}

// deriveTrustAndCapabilities implements spec §4.1 step 2.
func (k *Kernel) deriveTrustAndCapabilities(source InjectionSource) (TrustLevel, map[string]bool, map[string]bool) {
	if source.Identity.GrantID != "" && k.peers != nil {
		if grant, ok := k.peers.GetGrant(source.Identity.GrantID); ok {
			if grant.ExpiresAt != nil && grant.ExpiresAt.Before(time.Now()) {
				return TrustUntrusted, ExpandCapabilities(nil), explicitSet(nil)
			}
			return TrustLevel(grant.TrustLevel), ExpandCapabilities(grant.Capabilities), explicitSet(grant.Capabilities)
		}
	}

	trust := k.trustForSourceType(source)
	policy := k.cfg.Security.Defaults
	return trust, ExpandCapabilities(policy.Capabilities), explicitSet(policy.Capabilities)
}

// trustForSourceType derives the default trust level from an injection's
// source type (spec §3 InjectionSource): cli/daemon/cron/internal→owner,
// plugin→trusted, api/gateway→semi-trusted, p2p/p2p.discovery→untrusted
// absent a known peer or override grant.
func (k *Kernel) trustForSourceType(source InjectionSource) TrustLevel {
	switch source.Type {
	case SourceInternal, SourceCLI, SourceDaemon, SourceCron:
		return TrustOwner
	case SourcePlugin:
		return TrustTrusted
	case SourceHTTP, SourceGateway:
		return TrustSemiTrusted
	case SourceP2P:
		if k.peers != nil {
			if peer, ok := k.peers.GetPeer(source.Identity.PublicKey); ok {
				return TrustLevel(peer.TrustLevel)
			}
		}
		return TrustLevel(k.cfg.Security.P2P.DiscoveryTrust)
	case SourceP2PDiscovery:
		return TrustUntrusted
	default:
		return TrustUntrusted
	}
}

func (k *Kernel) matchesAnyPattern(patterns []string, source InjectionSource, trust TrustLevel) bool {
	if len(patterns) == 0 {
		patterns = k.cfg.Security.Defaults.Access
	}
	for _, p := range patterns {
		if matchesAccessPattern(p, source, trust) {
			return true
		}
	}
	return false
}

// gatewayRoutingAllowed implements spec §4.1 step 4: "if no gateway can
// forward to this target, deny". A source that merely claims a gateway
// session name is not enough — CanGatewayForward verifies that session is
// actually configured as a gateway and permitted to reach target.
func (k *Kernel) gatewayRoutingAllowed(policy config.SessionSecurityPolicy, source InjectionSource, trust TrustLevel, target string) bool {
	if policy.Gateway {
		return true
	}
	if trust == TrustOwner || trust == TrustTrusted {
		return true
	}
	if privilegedSourceTypes[source.Type] {
		return true
	}
	if source.Identity.GatewaySession == "" {
		return false
	}
	allowed, _ := k.CanGatewayForward(source.Identity.GatewaySession, target)
	return allowed
}

// IsGateway reports whether session is configured as a gateway (spec §4.1).
func (k *Kernel) IsGateway(session string) bool {
	return k.cfg.SessionPolicy(session).Gateway
}

// CanGatewayForward checks whether a gateway session may forward to a
// target (spec §4.1 "gateway helpers"): from must itself be configured as
// a gateway, and if it carries an explicit forwarding allow-list, to must
// be on it (an empty list means the gateway may forward anywhere the
// target's own access policy already admits it).
func (k *Kernel) CanGatewayForward(from, to string) (bool, string) {
	fromPolicy := k.cfg.SessionPolicy(from)
	if !fromPolicy.Gateway {
		return false, "not_a_gateway"
	}
	if len(fromPolicy.GatewayTargets) == 0 {
		return true, ""
	}
	for _, pattern := range fromPolicy.GatewayTargets {
		if pattern == "*" || pattern == to {
			return true, ""
		}
	}
	return false, "target_not_permitted"
}

// CheckCapability is the non-throwing variant used for introspection.
func (k *Kernel) CheckCapability(ctx SecurityContext, cap string) bool {
	return ctx.HasCapability(cap)
}

// RequireCapability is the throwing variant tool dispatch uses before
// invoking a handler (spec §4.1, §4.5).
func (k *Kernel) RequireCapability(ctx SecurityContext, cap string) error {
	if ctx.HasCapability(cap) {
		return nil
	}
	if k.cfg.Enforcement() != "enforce" {
		slog.Warn("security.capability_denied_warn_mode", "capability", cap, "target", ctx.TargetSession)
		return nil
	}
	return newError(FailureCapabilityDenied, "missing capability "+cap)
}

// RequireExplicitCapability is RequireCapability's stricter sibling for
// dangerous tools (http_fetch, exec_command, notify): the parent "inject"
// capability must not silently unlock them.
func (k *Kernel) RequireExplicitCapability(ctx SecurityContext, cap string) error {
	if ctx.HasExplicitCapability(cap) {
		return nil
	}
	if k.cfg.Enforcement() != "enforce" {
		slog.Warn("security.dangerous_capability_denied_warn_mode", "capability", cap, "target", ctx.TargetSession)
		return nil
	}
	return newError(FailureCapabilityDenied, "missing explicit capability "+cap)
}

// --- Request-bound context table (spec §4.1 "hooks") ---

func (k *Kernel) StoreContext(requestID string, ctx SecurityContext) {
	k.ctxMu.Lock()
	defer k.ctxMu.Unlock()
	k.ctxs[requestID] = ctx
}

func (k *Kernel) RetrieveContext(requestID string) (SecurityContext, bool) {
	k.ctxMu.RLock()
	defer k.ctxMu.RUnlock()
	ctx, ok := k.ctxs[requestID]
	return ctx, ok
}

func (k *Kernel) ClearContext(requestID string) {
	k.ctxMu.Lock()
	defer k.ctxMu.Unlock()
	delete(k.ctxs, requestID)
}

// --- Rate limiting (spec §9 open question: gateway's per-(gateway,target)
// counter is authoritative for forwarded traffic; the security config's
// counters are authoritative for direct injection) ---

func (k *Kernel) checkRateLimit(source InjectionSource) *SecurityError {
	trust, _, _ := k.deriveTrustAndCapabilities(source)
	policy, ok := k.cfg.Security.TrustLevels[string(trust)]
	if !ok || policy.RateLimitPerMinute <= 0 {
		return nil
	}

	key := rateLimitKey(source)
	limiter := k.limiterFor(key, policy.RateLimitPerMinute)
	if !limiter.Allow() {
		return newError(FailureRateLimited, "rate limit exceeded for "+key)
	}
	return nil
}

func (k *Kernel) limiterFor(key string, perMinute int) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	if l, ok := k.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	k.limiters[key] = l
	return l
}

func rateLimitKey(source InjectionSource) string {
	if source.Identity.GatewaySession != "" {
		return "gateway:" + source.Identity.GatewaySession
	}
	switch source.Type {
	case SourceP2P:
		return "p2p:" + source.Identity.PublicKey
	case SourceHTTP:
		return "http:" + source.Identity.ApiKeyID
	default:
		return "type:" + string(source.Type)
	}
}
