package server

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StateInterval is how often snapshots are pushed to WebSocket clients.
const StateInterval = 66 * time.Millisecond // ~15 Hz

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StateHandler pushes session snapshots to WebSocket clients. A snapshot is
// sent on connect and then whenever it changes.
type StateHandler struct {
	source   StateSource
	interval time.Duration
	clients  map[*websocket.Conn]bool
	mu       sync.Mutex
	done     chan struct{}
	once     sync.Once
}

// NewStateHandler creates a StateHandler polling source every interval.
func NewStateHandler(source StateSource, interval time.Duration) *StateHandler {
	h := &StateHandler{
		source:   source,
		interval: interval,
		clients:  make(map[*websocket.Conn]bool),
		done:     make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	msg, err := json.Marshal(h.source.Snapshot())
	if err != nil {
		return
	}

	h.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, msg)
	if err == nil {
		h.clients[conn] = true
	}
	h.mu.Unlock()
	if err != nil {
		return
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *StateHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close stops broadcasting and disconnects all clients.
func (h *StateHandler) Close() {
	h.once.Do(func() {
		close(h.done)
		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
		}
		h.mu.Unlock()
	})
}

// broadcast sends changed snapshots to all connected clients.
func (h *StateHandler) broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		msg, err := json.Marshal(h.source.Snapshot())
		if err != nil || bytes.Equal(msg, last) {
			continue
		}
		last = msg

		h.mu.Lock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}
