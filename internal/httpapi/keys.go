package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

type createKeyRequest struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

// handleCreateKey returns the raw secret exactly once (spec §3); later
// reads of this key (handleListKeys) see its prefix and metadata, never
// the secret.
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	scope := store.ApiKeyScope(req.Scope)
	if scope != store.ScopeFull && scope != store.ScopeReadOnly {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scope must be 'full' or 'read-only'"})
		return
	}

	raw, prefix, salt, hashed, err := generateApiKeySecret()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	key := store.ApiKey{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Scope:        scope,
		Prefix:       prefix,
		HashedSecret: hashed,
		Salt:         salt,
		CreatedAt:    time.Now(),
	}
	if err := s.apiKeys.Create(r.Context(), key); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     key.ID,
		"name":   key.Name,
		"scope":  key.Scope,
		"prefix": key.Prefix,
		"key":    raw,
	})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.apiKeys.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	masked := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		masked = append(masked, map[string]interface{}{
			"id":         k.ID,
			"name":       k.Name,
			"scope":      k.Scope,
			"prefix":     k.Prefix,
			"createdAt":  k.CreatedAt,
			"lastUsedAt": k.LastUsedAt,
			"revoked":    k.Revoked,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": masked})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.apiKeys.Revoke(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
