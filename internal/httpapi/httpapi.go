// Package httpapi implements WOPR's §6.1 HTTP management surface and §6.2
// OpenAI-compatible surface: a thin net/http wrapper around the dispatch
// core. Grounded on goclaw's internal/gateway.Server (BuildMux/Start with
// graceful shutdown, bearer-token auth, checkOrigin CORS allow-list,
// handleWebSocket) and internal/http's per-resource handler files
// (RegisterRoutes(mux), auth middleware, writeJSON), generalized from
// goclaw's agent/channel model onto WOPR's session + capability model.
package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/cron"
	"github.com/nextlevelbuilder/wopr/internal/dispatch"
	"github.com/nextlevelbuilder/wopr/internal/mcp"
	"github.com/nextlevelbuilder/wopr/internal/providers"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
	"github.com/nextlevelbuilder/wopr/internal/tools"
)

// Server bundles every collaborator the management surface needs: the
// dispatch engine (C5) for inject/create/delete, the stores for session
// and cron CRUD, the provider registry for /providers, the security
// kernel + policy engine for capability introspection, and the event bus
// for the WebSocket push feed. Mirrors goclaw's gateway.Server field list,
// generalized from its agent-router shape onto a single dispatcher.
type Server struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	sessions   store.SessionStore
	cronStore  store.CronStore
	scheduler  *cron.Scheduler
	registry   *providers.Registry
	kernel     *security.Kernel
	policy     *tools.PolicyEngine
	toolReg    *tools.Registry
	apiKeys    store.ApiKeyStore
	peers      store.PeerStore
	eventPub   *bus.Bus
	mcpMgr     *mcp.Manager

	upgrader websocket.Upgrader
	clients  *clientRegistry

	mux        *http.ServeMux
	httpServer *http.Server
}

// Deps bundles every Server constructor argument; a plain struct keeps
// bootstrap wiring (cmd/serve.go) from having to thread a dozen
// positional arguments through New.
type Deps struct {
	Config     *config.Config
	Dispatcher *dispatch.Dispatcher
	Sessions   store.SessionStore
	CronStore  store.CronStore
	Scheduler  *cron.Scheduler
	Registry   *providers.Registry
	Kernel     *security.Kernel
	Policy     *tools.PolicyEngine
	Tools      *tools.Registry
	ApiKeys    store.ApiKeyStore
	Peers      store.PeerStore
	EventPub   *bus.Bus
	MCP        *mcp.Manager
}

// New constructs a Server from deps. Call BuildMux or Start next.
func New(deps Deps) *Server {
	s := &Server{
		cfg:        deps.Config,
		dispatcher: deps.Dispatcher,
		sessions:   deps.Sessions,
		cronStore:  deps.CronStore,
		scheduler:  deps.Scheduler,
		registry:   deps.Registry,
		kernel:     deps.Kernel,
		policy:     deps.Policy,
		toolReg:    deps.Tools,
		apiKeys:    deps.ApiKeys,
		peers:      deps.Peers,
		eventPub:   deps.EventPub,
		mcpMgr:     deps.MCP,
		clients:    newClientRegistry(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin validates a WebSocket upgrade's Origin header against the
// configured allow-list. No config = allow all (dev mode); non-browser
// clients sending no Origin header are always allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Gateway.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	slog.Warn("httpapi.cors_rejected", "origin", origin)
	return false
}

// BuildMux registers every route and caches the resulting mux.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	mux.HandleFunc("POST /sessions", s.auth(s.handleCreateSession))
	mux.HandleFunc("DELETE /sessions/{name}", s.auth(s.handleDeleteSession))
	mux.HandleFunc("POST /sessions/{name}/inject", s.auth(s.handleInject))
	mux.HandleFunc("GET /sessions/{name}/conversation", s.auth(s.handleConversation))

	mux.HandleFunc("GET /crons", s.auth(s.handleListCrons))
	mux.HandleFunc("POST /crons", s.auth(s.handleCreateCron))
	mux.HandleFunc("DELETE /crons/{name}", s.auth(s.handleDeleteCron))
	mux.HandleFunc("GET /crons/history", s.auth(s.handleCronHistory))

	mux.HandleFunc("GET /providers", s.auth(s.handleListProviders))
	mux.HandleFunc("GET /providers/active", s.auth(s.handleActiveProvider))
	mux.HandleFunc("GET /providers/{id}/models", s.auth(s.handleProviderModels))
	mux.HandleFunc("POST /providers/health", s.auth(s.handleProviderHealth))

	mux.HandleFunc("GET /mcp/servers", s.auth(s.handleMCPServers))

	mux.HandleFunc("POST /api/keys", s.auth(s.handleCreateKey))
	mux.HandleFunc("GET /api/keys", s.auth(s.handleListKeys))
	mux.HandleFunc("DELETE /api/keys/{id}", s.auth(s.handleRevokeKey))

	mux.HandleFunc("GET /api/capabilities", s.auth(s.handleListCapabilities))
	mux.HandleFunc("POST /api/capabilities", s.auth(s.handleUpdateCapabilities))
	mux.HandleFunc("POST /api/capabilities/activate", s.auth(s.handleActivateCapability))

	mux.HandleFunc("GET /api/ws", s.handleWebSocket)

	mux.HandleFunc("POST /v1/chat/completions", s.auth(s.handleChatCompletions))
	mux.HandleFunc("GET /v1/models", s.auth(s.handleListModels))
	mux.HandleFunc("GET /v1/models/{id}", s.auth(s.handleGetModel))

	s.mux = mux
	return mux
}

// Start begins listening, blocking until ctx is cancelled or the listener
// fails. Mirrors goclaw's gateway.Server.Start shutdown-goroutine pattern.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()
	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	slog.Info("httpapi starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("httpapi server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady additionally reports whether at least one provider is
// currently available, since "ready" for WOPR means "can actually dispatch".
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for _, id := range s.registry.List() {
		if s.registry.Available(id) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no_providers_available"})
}

// --- Bearer-token auth (spec §6.1: "bootstrap token or an API key whose
// stored hash matches") ---

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		if s.cfg.Gateway.BootstrapToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Gateway.BootstrapToken)) == 1 {
			next(w, r)
			return
		}
		key, ok := s.authenticateApiKey(r.Context(), token)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		ctx := withApiKey(r.Context(), key)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) authenticateApiKey(ctx context.Context, token string) (*store.ApiKey, bool) {
	if s.apiKeys == nil || len(token) < keyPrefixLen {
		return nil, false
	}
	key, ok, err := s.apiKeys.GetByPrefix(ctx, token[:keyPrefixLen])
	if err != nil || !ok || key.Revoked {
		return nil, false
	}
	if !verifySecret(token, key.Salt, key.HashedSecret) {
		return nil, false
	}
	_ = s.apiKeys.TouchLastUsed(ctx, key.ID)
	return key, true
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// --- API key secret generation/verification (spec §3: "raw secret shown
// once on creation; all subsequent access uses constant-time compare
// against hashedSecret"). Grounded on goclaw's config_load.go sha256
// checksum usage; salt+hash (rather than bcrypt) matches ApiKey's explicit
// Salt field in the data model. ---

const keyPrefixLen = 8

func generateApiKeySecret() (raw, prefix, salt, hashed string, err error) {
	secretBytes := make([]byte, 32)
	if _, err = rand.Read(secretBytes); err != nil {
		return
	}
	raw = "wopr_" + base64.RawURLEncoding.EncodeToString(secretBytes)
	if len(raw) < keyPrefixLen {
		err = fmt.Errorf("httpapi: generated secret shorter than prefix length")
		return
	}
	prefix = raw[:keyPrefixLen]

	saltBytes := make([]byte, 16)
	if _, err = rand.Read(saltBytes); err != nil {
		return
	}
	salt = base64.RawURLEncoding.EncodeToString(saltBytes)
	hashed = hashSecret(raw, salt)
	return
}

func hashSecret(raw, salt string) string {
	sum := sha256.Sum256([]byte(salt + raw))
	return hex.EncodeToString(sum[:])
}

func verifySecret(raw, salt, wantHashed string) bool {
	got := hashSecret(raw, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(wantHashed)) == 1
}

type apiKeyCtxKey struct{}

func withApiKey(ctx context.Context, key *store.ApiKey) context.Context {
	return context.WithValue(ctx, apiKeyCtxKey{}, key)
}

func apiKeyFromContext(ctx context.Context) *store.ApiKey {
	key, _ := ctx.Value(apiKeyCtxKey{}).(*store.ApiKey)
	return key
}
