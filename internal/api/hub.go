package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/ledger"
)

const (
	// clientBuffer is the per-client send queue depth. A client that
	// falls this far behind starts dropping events.
	clientBuffer = 64

	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Hub broadcasts ledger events to websocket subscribers. It satisfies
// ledger.EventSink; delivery is fire-and-forget and never fails the
// emitting operation.
type Hub struct {
	mu       sync.RWMutex
	clients  map[chan []byte]struct{}
	upgrader websocket.Upgrader
	logger   *log.Logger

	onClientChange func(delta int) // optional, feeds the stream-clients gauge
}

// NewHub creates a new broadcast hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Compile-time interface check.
var _ ledger.EventSink = (*Hub)(nil)

// Append implements ledger.EventSink by broadcasting the event as JSON.
func (h *Hub) Append(_ context.Context, e *domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		// Events are plain value types; a marshal failure is a bug,
		// but it must not abort a committed state change.
		h.logger.Printf("marshal event for broadcast: %v", err)
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client <- payload:
		default:
			// Client is slow/blocked, skip
		}
	}
	return nil
}

// ServeStream upgrades the request to a websocket and streams events
// until the client disconnects.
func (h *Hub) ServeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade event stream: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)
	h.register(send)
	defer h.unregister(send)

	// Reader goroutine: drain until the peer closes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) register(client chan []byte) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	if h.onClientChange != nil {
		h.onClientChange(1)
	}
}

func (h *Hub) unregister(client chan []byte) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	if h.onClientChange != nil {
		h.onClientChange(-1)
	}
}
