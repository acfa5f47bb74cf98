package httpapi

import (
	"context"
	"net/http"
	"time"
)

// ModelLister is an optional interface a providers.Client may implement to
// report the concrete model ids it serves, mirroring the registry's own
// optional HealthChecker pattern. Clients that don't implement it expose
// only their DefaultModel.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

type providerInfo struct {
	ID           string `json:"id"`
	Available    bool   `json:"available"`
	DefaultModel string `json:"defaultModel"`
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	ids := s.registry.List()
	out := make([]providerInfo, 0, len(ids))
	for _, id := range ids {
		client, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		out = append(out, providerInfo{ID: id, Available: s.registry.Available(id), DefaultModel: client.DefaultModel()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"providers": out})
}

func (s *Server) handleActiveProvider(w http.ResponseWriter, r *http.Request) {
	client, id, err := s.registry.Resolve(nil)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, providerInfo{ID: id, Available: true, DefaultModel: client.DefaultModel()})
}

func (s *Server) handleProviderModels(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	client, ok := s.registry.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "provider not found"})
		return
	}
	models := []string{client.DefaultModel()}
	if lister, supports := client.(ModelLister); supports {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if listed, err := lister.ListModels(ctx); err == nil && len(listed) > 0 {
			models = listed
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models})
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	s.registry.CheckHealth(ctx)

	ids := s.registry.List()
	out := make([]providerInfo, 0, len(ids))
	for _, id := range ids {
		client, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		out = append(out, providerInfo{ID: id, Available: s.registry.Available(id), DefaultModel: client.DefaultModel()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"providers": out})
}
