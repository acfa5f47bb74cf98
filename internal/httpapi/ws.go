package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/pkg/protocol"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// clientRegistry tracks connected WebSocket clients by id, mirroring
// goclaw's gateway.Server clients-map-plus-mutex shape.
type clientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
}

func newClientRegistry() *clientRegistry {
	return &clientRegistry{clients: make(map[string]*wsClient)}
}

func (r *clientRegistry) add(c *wsClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.id] = c
}

func (r *clientRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

// wsClient is one connected /api/ws session: an authenticated caller with
// a topic subscription set, pumping bus events out over conn.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server

	mu     sync.Mutex
	topics map[string]bool
}

func newWSClient(id string, conn *websocket.Conn, s *Server) *wsClient {
	return &wsClient{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, 32),
		server: s,
		topics: make(map[string]bool),
	}
}

func (c *wsClient) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.topics) == 0 {
		return true // no explicit subscription yet = receive everything
	}
	return c.topics[topic]
}

func (c *wsClient) setTopics(topics []string, subscribe bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		if subscribe {
			c.topics[t] = true
		} else {
			delete(c.topics, t)
		}
	}
}

// handleWebSocket upgrades the connection and requires auth either via the
// Authorization header on upgrade or a first {type:"auth"} frame (spec
// §6.1: "tokens MUST NOT be in query params").
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("httpapi.ws_upgrade_failed", "error", err)
		return
	}

	client := newWSClient(randomID(), conn, s)

	if token := extractBearerToken(r); token != "" {
		if !s.wsAuthenticate(r.Context(), token) {
			_ = conn.WriteJSON(map[string]string{"type": protocol.ServerMsgError, "error": "unauthorized"})
			conn.Close()
			return
		}
	} else if !s.wsAuthenticateFirstFrame(conn) {
		conn.Close()
		return
	}

	s.clients.add(client)
	s.eventPub.Subscribe(client.id, func(event bus.Event) {
		if !client.subscribed(event.Name) {
			return
		}
		frame, err := json.Marshal(map[string]interface{}{"type": event.Name, "payload": event.Payload})
		if err != nil {
			return
		}
		select {
		case client.send <- frame:
		default:
			slog.Warn("httpapi.ws_client_slow", "id", client.id)
		}
	})

	defer func() {
		s.eventPub.Unsubscribe(client.id)
		s.clients.remove(client.id)
		conn.Close()
	}()

	go client.writePump()
	client.readPump(s)
}

// wsAuthenticate checks a bearer token the same way the auth middleware
// does: bootstrap token or a live, non-revoked API key.
func (s *Server) wsAuthenticate(ctx context.Context, token string) bool {
	if s.cfg.Gateway.BootstrapToken != "" && token == s.cfg.Gateway.BootstrapToken {
		return true
	}
	_, ok := s.authenticateApiKey(ctx, token)
	return ok
}

func (s *Server) wsAuthenticateFirstFrame(conn *websocket.Conn) bool {
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	var msg protocol.ClientMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != protocol.ClientMsgAuth {
		_ = conn.WriteJSON(map[string]string{"type": protocol.ServerMsgError, "error": "auth required"})
		return false
	}
	if !s.wsAuthenticate(context.Background(), msg.Token) {
		_ = conn.WriteJSON(map[string]string{"type": protocol.ServerMsgError, "error": "unauthorized"})
		return false
	}
	return true
}

// readPump handles subscribe/unsubscribe/ping frames until the connection
// closes. One reader per connection, per gorilla/websocket's contract.
func (c *wsClient) readPump(s *Server) {
	defer close(c.send)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var msg protocol.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case protocol.ClientMsgSubscribe:
			c.setTopics(msg.Topics, true)
		case protocol.ClientMsgUnsubscribe:
			c.setTopics(msg.Topics, false)
		case protocol.ClientMsgPing:
			data, _ := json.Marshal(map[string]string{"type": protocol.ServerMsgPong})
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// writePump owns conn.WriteMessage, serializing writes through the send
// channel and ticking a periodic ping to keep intermediaries from closing
// the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
