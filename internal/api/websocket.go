package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"solflow/internal/eventbus"
	"solflow/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsHub fans out signal events to every connected client without
// blocking the publisher: a client whose send buffer is full is removed
// from the hub and its send channel closed, which ends its write pump and
// closes the connection.
type wsHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	log     *logging.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newWSHub() *wsHub {
	return &wsHub{clients: make(map[*wsClient]struct{}), log: logging.New("API/ws")}
}

func (h *wsHub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *wsHub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// handleWebSocket upgrades the connection and registers it with the
// server's hub, then writes whatever the hub sends it until the
// connection closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("ws upgrade error: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64)}
	s.hub.add(client)

	go s.writePump(client)
	s.readPump(client)
}

func (s *Server) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump just drains and discards incoming frames until the client
// disconnects, which is what unregisters it from the hub. This is a
// push-only feed; clients never send meaningful payloads.
func (s *Server) readPump(c *wsClient) {
	defer s.hub.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// bridgeEventBus subscribes to the eventbus's "signal" events and
// forwards each one, JSON-encoded, to every connected websocket client.
func (s *Server) bridgeEventBus() {
	ch := make(chan eventbus.Event, 256)
	s.bus.Subscribe("signal", ch)
	go func() {
		for evt := range ch {
			payload, err := json.Marshal(evt.Data)
			if err != nil {
				continue
			}
			s.hub.broadcast(payload)
		}
	}()
}
