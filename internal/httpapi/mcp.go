package httpapi

import "net/http"

// handleMCPServers reports the connection status of every configured MCP
// server, mirroring handleListProviders' shape for the static provider
// registry.
func (s *Server) handleMCPServers(w http.ResponseWriter, r *http.Request) {
	if s.mcpMgr == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"servers": []string{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"servers": s.mcpMgr.ServerStatus()})
}
