package httpapi

import (
	"net/http"

	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

// grantIDForKey derives a stable AccessGrant id for an authenticated API
// key, so the capability routes have somewhere durable to persist
// activations across requests without inventing a new store table.
func grantIDForKey(apiKeyID string) string {
	return "apikey:" + apiKeyID
}

func (s *Server) grantForRequest(r *http.Request) (store.AccessGrant, bool) {
	key := apiKeyFromContext(r.Context())
	if key == nil || s.peers == nil {
		return store.AccessGrant{}, false
	}
	grant, ok := s.peers.GetGrant(grantIDForKey(key.ID))
	if !ok || grant == nil {
		return store.AccessGrant{}, false
	}
	return *grant, true
}

// handleListCapabilities reports the full enumerated capability set plus
// whichever of them the caller's key currently holds (spec GLOSSARY's
// Capability enum; empty when authenticated via the bootstrap token,
// which already carries owner trust and needs no grant).
func (s *Server) handleListCapabilities(w http.ResponseWriter, r *http.Request) {
	grant, _ := s.grantForRequest(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"all":    security.AllCapabilities(),
		"active": grant.Capabilities,
	})
}

type updateCapabilitiesRequest struct {
	Capabilities []string `json:"capabilities"`
}

// handleUpdateCapabilities replaces the caller's full capability list.
func (s *Server) handleUpdateCapabilities(w http.ResponseWriter, r *http.Request) {
	key := apiKeyFromContext(r.Context())
	if key == nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "bootstrap token has no capability grant to edit"})
		return
	}
	var req updateCapabilitiesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	grant, exists := s.grantForRequest(r)
	if !exists {
		grant = store.AccessGrant{ID: grantIDForKey(key.ID), ApiKeyID: key.ID, TrustLevel: string(security.TrustSemiTrusted)}
	}
	grant.Capabilities = req.Capabilities
	if err := s.peers.CreateGrant(grant); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": grant.Capabilities})
}

type activateCapabilityRequest struct {
	Capability string `json:"capability"`
}

// handleActivateCapability grants a single additional capability to the
// caller's key without disturbing the rest of its active set.
func (s *Server) handleActivateCapability(w http.ResponseWriter, r *http.Request) {
	key := apiKeyFromContext(r.Context())
	if key == nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "bootstrap token has no capability grant to edit"})
		return
	}
	var req activateCapabilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Capability == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "capability is required"})
		return
	}

	grant, exists := s.grantForRequest(r)
	if !exists {
		grant = store.AccessGrant{ID: grantIDForKey(key.ID), ApiKeyID: key.ID, TrustLevel: string(security.TrustSemiTrusted)}
	}
	grant.Capabilities = appendUnique(grant.Capabilities, req.Capability)
	if err := s.peers.CreateGrant(grant); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"active": grant.Capabilities})
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
