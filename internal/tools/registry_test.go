package tools

import "testing"

func TestRegistry_RegisterGetList(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "sessions_list"})
	r.Register(&fakeTool{name: "cron_list"})

	if _, ok := r.Get("sessions_list"); !ok {
		t.Fatal("expected sessions_list to be registered")
	}
	if len(r.List()) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(r.List()))
	}

	r.Unregister("cron_list")
	if _, ok := r.Get("cron_list"); ok {
		t.Fatal("expected cron_list to be unregistered")
	}
	if len(r.List()) != 1 {
		t.Fatalf("expected 1 tool after unregister, got %d", len(r.List()))
	}
}

func TestToProviderDef_MapsNameDescriptionParameters(t *testing.T) {
	tool := &fakeTool{name: "sessions_list"}
	def := ToProviderDef(tool)
	if def.Type != "function" {
		t.Fatalf("expected function type, got %q", def.Type)
	}
	if def.Function.Name != "sessions_list" {
		t.Fatalf("expected name sessions_list, got %q", def.Function.Name)
	}
	if def.Function.Description == "" {
		t.Fatal("expected non-empty description")
	}
}
