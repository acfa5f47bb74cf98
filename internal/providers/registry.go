package providers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// ErrNoProviders is raised when resolveProvider exhausts binding, fallback
// chain, and the globally-active provider without finding one available.
var ErrNoProviders = errors.New("no_providers")

const healthCheckTimeout = 3 * time.Second

// status tracks one provider's last health check.
type status struct {
	available   bool
	lastChecked time.Time
}

// Registry enumerates registered Client backends, tracks their health, and
// resolves a session's effective provider per spec §4.2: explicit binding,
// then fallback chain, then the globally-active provider in priority
// order. Grounded on goclaw's provider-availability-check texture
// (internal/providers/anthropic.go et al. for the clients themselves; no
// single "registry" file existed in the retrieval pack to imitate
// directly, so Registry's shape follows resolveProvider/checkHealth as
// spec.md §4.2 and SPEC_FULL.md §5.2 describe them).
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client
	priority []string // stable priority order for the globally-active fallback
	health   map[string]status
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
		health:  make(map[string]status),
	}
}

// Register adds a client to the registry, appending it to the priority
// order if it hasn't been registered before.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := c.Name()
	if _, exists := r.clients[id]; !exists {
		r.priority = append(r.priority, id)
	}
	r.clients[id] = c
	r.health[id] = status{available: true, lastChecked: time.Time{}}
}

func (r *Registry) Get(id string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// List returns provider ids in stable priority order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.priority))
	copy(out, r.priority)
	return out
}

// Available reports a provider's last-known health.
func (r *Registry) Available(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.health[id].available
}

// HealthChecker is satisfied by providers.Client implementations that can
// answer a cheap liveness probe. Neither AnthropicClient nor OpenAIClient
// implements it, and CheckHealth sends no probe to a Client that does not:
// such a client is recorded as available.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// CheckHealth probes every registered provider that implements
// HealthChecker concurrently, each bounded by healthCheckTimeout, and
// records availability + lastChecked for every provider; one without
// HealthChecker is recorded as available without a probe (spec §4.2).
func (r *Registry) CheckHealth(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	clients := make(map[string]Client, len(r.clients))
	for id, c := range r.clients {
		ids = append(ids, id)
		clients[id] = c
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	results := make(map[string]bool, len(ids))
	var resultsMu sync.Mutex

	for _, id := range ids {
		wg.Add(1)
		go func(id string, c Client) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			ok := true
			if hc, supports := c.(HealthChecker); supports {
				ok = hc.HealthCheck(checkCtx)
			}
			resultsMu.Lock()
			results[id] = ok
			resultsMu.Unlock()
		}(id, clients[id])
	}
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, ok := range results {
		r.health[id] = status{available: ok, lastChecked: now}
	}
}

// MarkUnavailable flags a provider unhealthy outside the periodic
// CheckHealth sweep, so a dispatch retry loop that just saw id fail can
// advance to the next entry in the fallback chain on its very next
// Resolve call instead of waiting for the next health-check tick.
func (r *Registry) MarkUnavailable(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.health[id]
	st.available = false
	r.health[id] = st
}

// Resolve picks the effective client for a session per spec §4.2: (1) the
// session's explicit binding if that provider is available, (2) the first
// entry of its fallback list whose client is available, (3) the first
// available provider in the registry's stable priority order.
func (r *Registry) Resolve(binding *store.ProviderBinding) (Client, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if binding != nil {
		if c, ok := r.clients[binding.Name]; ok && r.health[binding.Name].available {
			return c, binding.Name, nil
		}
		for _, id := range binding.Fallback {
			if c, ok := r.clients[id]; ok && r.health[id].available {
				return c, id, nil
			}
		}
	}

	for _, id := range r.priority {
		if r.health[id].available {
			return r.clients[id], id, nil
		}
	}
	return nil, "", ErrNoProviders
}
