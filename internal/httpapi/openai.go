package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/dispatch"
	"github.com/nextlevelbuilder/wopr/internal/providers"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// handleChatCompletions implements spec §6.2: an ephemeral session per
// request, torn down on any exit path (success or error).
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages is required"})
		return
	}

	sessionName := "openai-" + randomID()
	if _, err := s.sessions.CreateSession(sessionName); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	defer func() { _, _ = s.sessions.DeleteSession(sessionName, "openai_request_complete") }()

	var userTurns []chatMessage
	for _, m := range req.Messages {
		if m.Role == "system" {
			_ = s.sessions.SetContext(sessionName, m.Content)
			continue
		}
		userTurns = append(userTurns, m)
	}
	if err := s.bindProvider(sessionName, req.Model); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	message := flattenTurns(userTurns)
	source := security.InjectionSource{Type: security.SourceHTTP}
	if key := apiKeyFromContext(r.Context()); key != nil {
		source.Identity.ApiKeyID = key.ID
	}

	if req.Stream {
		s.streamChatCompletion(w, r, sessionName, message, req.Model, source)
		return
	}

	future, err := s.dispatcher.Inject(r.Context(), sessionName, message, source, dispatch.Options{})
	if err != nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}
	result, err := future.Wait(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if result.Err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": result.Err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      "chatcmpl-" + randomID(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   req.Model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": result.Text},
			"finish_reason": result.FinishReason,
		}},
	})
}

func (s *Server) streamChatCompletion(w http.ResponseWriter, r *http.Request, sessionName, message, model string, source security.InjectionSource) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	chunkID := "chatcmpl-" + randomID()
	writeChunk := func(delta map[string]interface{}, finish interface{}) {
		data, _ := json.Marshal(map[string]interface{}{
			"id":      chunkID,
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"model":   model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			}},
		})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	future, err := s.dispatcher.Inject(r.Context(), sessionName, message, source, dispatch.Options{
		OnStream: func(chunk providers.StreamChunk) {
			writeChunk(map[string]interface{}{"content": chunk.Content}, nil)
		},
	})
	if err != nil {
		writeChunk(map[string]interface{}{}, "error")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
		return
	}
	result, err := future.Wait(r.Context())
	finishReason := "stop"
	if err == nil && result.Err == nil {
		finishReason = result.FinishReason
	}
	writeChunk(map[string]interface{}{}, finishReason)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	var out []modelEntry
	for _, id := range s.registry.List() {
		client, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		out = append(out, modelEntry{ID: client.DefaultModel(), Object: "model", OwnedBy: id, Created: 0})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": out})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, providerID := range s.registry.List() {
		client, ok := s.registry.Get(providerID)
		if ok && client.DefaultModel() == id {
			writeJSON(w, http.StatusOK, modelEntry{ID: id, Object: "model", OwnedBy: providerID, Created: 0})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "model not found"})
}

// bindProvider sets sessionName's provider binding from a requested model
// string: direct provider-id match preferred, otherwise the first
// available provider is bound with the requested model as an override
// (spec §6.2).
func (s *Server) bindProvider(sessionName, model string) error {
	if _, ok := s.registry.Get(model); ok {
		return s.sessions.SetProviderBinding(sessionName, &store.ProviderBinding{Name: model})
	}
	ids := s.registry.List()
	if len(ids) == 0 {
		return fmt.Errorf("no providers registered")
	}
	for _, id := range ids {
		if s.registry.Available(id) {
			return s.sessions.SetProviderBinding(sessionName, &store.ProviderBinding{Name: id, Model: model})
		}
	}
	return fmt.Errorf("no providers available")
}

func flattenTurns(turns []chatMessage) string {
	var out string
	for i, t := range turns {
		if i > 0 {
			out += "\n"
		}
		out += t.Role + ": " + t.Content
	}
	return out
}

func randomID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
