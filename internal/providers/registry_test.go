package providers

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

type fakeClient struct {
	name string
}

func (f *fakeClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: "ok"}, nil
}
func (f *fakeClient) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	return &ChatResponse{Content: "ok"}, nil
}
func (f *fakeClient) DefaultModel() string { return "fake-model" }
func (f *fakeClient) Name() string         { return f.name }

func TestRegistry_ResolveExplicitBinding(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeClient{name: "anthropic"})
	r.Register(&fakeClient{name: "openai"})

	c, id, err := r.Resolve(&store.ProviderBinding{Name: "openai"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "openai" || c.Name() != "openai" {
		t.Fatalf("expected openai, got %s", id)
	}
}

func TestRegistry_ResolveFallsBackWhenBindingUnavailable(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeClient{name: "anthropic"})
	r.Register(&fakeClient{name: "openai"})
	r.health["anthropic"] = status{available: false}

	c, id, err := r.Resolve(&store.ProviderBinding{Name: "anthropic", Fallback: []string{"openai"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "openai" || c.Name() != "openai" {
		t.Fatalf("expected fallback to openai, got %s", id)
	}
}

func TestRegistry_ResolveGlobalActiveWhenNoBinding(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeClient{name: "anthropic"})
	r.Register(&fakeClient{name: "openai"})

	c, id, err := r.Resolve(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "anthropic" || c.Name() != "anthropic" {
		t.Fatalf("expected first-registered anthropic as global-active, got %s", id)
	}
}

func TestRegistry_ResolveNoProviders(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeClient{name: "anthropic"})
	r.health["anthropic"] = status{available: false}

	if _, _, err := r.Resolve(nil); err != ErrNoProviders {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestRegistry_CheckHealthMarksAvailability(t *testing.T) {
	r := NewRegistry()
	r.Register(&healthAwareClient{fakeClient: fakeClient{name: "down"}, healthy: false})
	r.Register(&healthAwareClient{fakeClient: fakeClient{name: "up"}, healthy: true})

	r.CheckHealth(context.Background())

	if r.Available("down") {
		t.Fatal("expected down provider to be marked unavailable")
	}
	if !r.Available("up") {
		t.Fatal("expected up provider to be marked available")
	}
}

type healthAwareClient struct {
	fakeClient
	healthy bool
}

func (h *healthAwareClient) HealthCheck(ctx context.Context) bool { return h.healthy }
