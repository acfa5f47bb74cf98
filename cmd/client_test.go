package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewAPIClient_RequiresToken(t *testing.T) {
	t.Setenv("WOPR_API_TOKEN", "")
	t.Setenv("WOPR_BOOTSTRAP_TOKEN", "")
	if _, err := newAPIClient(); err == nil {
		t.Fatal("expected an error when no token env var is set")
	}
}

func TestNewAPIClient_FallsBackToBootstrapToken(t *testing.T) {
	t.Setenv("WOPR_API_TOKEN", "")
	t.Setenv("WOPR_BOOTSTRAP_TOKEN", "boot-secret")
	c, err := newAPIClient()
	if err != nil {
		t.Fatal(err)
	}
	if c.token != "boot-secret" {
		t.Errorf("token = %q, want boot-secret", c.token)
	}
}

func TestApiClient_Do_SendsBearerTokenAndDecodesJSON(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, token: "tok123", http: srv.Client()}
	var out map[string]string
	if err := c.do("GET", "/health", nil, &out); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer tok123")
	}
	if out["status"] != "ok" {
		t.Errorf("status = %q, want ok", out["status"])
	}
}

func TestApiClient_Do_ReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("nope"))
	}))
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, token: "tok123", http: srv.Client()}
	err := c.do("DELETE", "/sessions/foo", nil, nil)
	if err == nil {
		t.Fatal("expected an error for a 403 response")
	}
}
