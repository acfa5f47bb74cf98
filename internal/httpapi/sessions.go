package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nextlevelbuilder/wopr/internal/dispatch"
	"github.com/nextlevelbuilder/wopr/internal/providers"
	"github.com/nextlevelbuilder/wopr/internal/security"
)

type createSessionRequest struct {
	Name    string `json:"name"`
	Context string `json:"context,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	sess, err := s.sessions.CreateSession(req.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if req.Context != "" {
		if err := s.sessions.SetContext(req.Name, req.Context); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		sess.Context = req.Context
	}

	s.eventPub.Publish(sessionCreateEvent(sess.Name))
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	reason := r.URL.Query().Get("reason")

	log, err := s.sessions.DeleteSession(name, reason)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.eventPub.Publish(sessionDestroyEvent(name, reason, log))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := s.sessions.ReadLog(name, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

type injectRequest struct {
	Message string `json:"message"`
	From    string `json:"from,omitempty"`
	Silent  bool   `json:"silent,omitempty"`
}

// handleInject implements spec §6.1's inject route, including its SSE
// streaming mode when the caller sends Accept: text/event-stream. Frames
// are `data: {JSON}\n\n` where JSON is {type:"text"|"complete"|"error", ...};
// no "tool_use" frames are emitted. A successful stream ends with a
// "complete" frame; a failed one ends with an "error" frame instead.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req injectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	source := security.InjectionSource{Type: security.SourceHTTP}
	if key := apiKeyFromContext(r.Context()); key != nil {
		source.Identity.ApiKeyID = key.ID
	}

	if r.Header.Get("Accept") == "text/event-stream" {
		s.injectStream(w, r, name, req, source)
		return
	}
	s.injectSync(w, r, name, req, source)
}

func (s *Server) injectSync(w http.ResponseWriter, r *http.Request, name string, req injectRequest, source security.InjectionSource) {
	future, err := s.dispatcher.Inject(r.Context(), name, req.Message, source, dispatch.Options{Silent: req.Silent})
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
		"text":         result.Text,
		"finishReason": result.FinishReason,
	})
}

func (s *Server) injectStream(w http.ResponseWriter, r *http.Request, name string, req injectRequest, source security.InjectionSource) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeFrame := func(frame map[string]interface{}) {
		data, _ := json.Marshal(frame)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	future, err := s.dispatcher.Inject(r.Context(), name, req.Message, source, dispatch.Options{
		Silent: req.Silent,
		OnStream: func(chunk providers.StreamChunk) {
			writeFrame(map[string]interface{}{"type": "text", "content": chunk.Content})
		},
	})
	if err != nil {
		writeFrame(map[string]interface{}{"type": "error", "error": err.Error()})
		return
	}
	result, err := future.Wait(r.Context())
	if err != nil {
		writeFrame(map[string]interface{}{"type": "error", "error": err.Error()})
		return
	}
	if result.Err != nil {
		writeFrame(map[string]interface{}{"type": "error", "error": result.Err.Error()})
		return
	}
	writeFrame(map[string]interface{}{"type": "complete", "text": result.Text, "finishReason": result.FinishReason})
}
