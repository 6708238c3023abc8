// Package events broadcasts job-run events to websocket subscribers on the
// ops surface.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"repricer/logger"
)

const (
	MaxClients   = 100
	WriteTimeout = 10 * time.Second
)

// RunEvent is one completed job run, as pushed to subscribers
type RunEvent struct {
	Account    string    `json:"account"`
	JobType    string    `json:"job_type"`
	Outcome    string    `json:"outcome"`
	ItemCount  int       `json:"item_count"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Hub fans run events out to connected websocket clients. Slow or dead
// clients are dropped rather than blocking the publisher.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

// NewHub creates an empty event hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger.Component("events"),
	}
}

// ServeWS upgrades an HTTP request to a websocket subscription
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	count := len(h.clients)
	h.mu.Unlock()
	if count >= MaxClients {
		http.Error(w, "too many subscribers", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.log.Infof("Subscriber connected (%d total)", count+1)

	// Reader loop only serves to detect disconnects; the feed is one-way
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish sends an event to every connected subscriber
func (h *Hub) Publish(event RunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		err := conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err == nil {
			err = conn.WriteJSON(event)
		}
		if err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Close disconnects all subscribers
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	conn.Close()
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}
