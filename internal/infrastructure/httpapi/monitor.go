package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mithun50/luma-cli/internal/domain"
)

const (
	clientSendBuffer = 32
	writeWait        = 5 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

// Hub fans change events out to websocket clients and in-process listeners.
// Each client has its own buffered queue and writer goroutine, so a slow
// client only loses its own events.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*hubClient
	upgrader websocket.Upgrader
	log      zerolog.Logger
	onCount  func(n int)

	lmu       sync.RWMutex
	listeners map[chan domain.ChangeEvent]struct{}
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// NewHub creates a hub; onCount, if set, is told the client count on change.
func NewHub(logger zerolog.Logger, onCount func(n int)) *Hub {
	return &Hub{
		clients:   make(map[string]*hubClient),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:       logger,
		onCount:   onCount,
		listeners: make(map[chan domain.ChangeEvent]struct{}),
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &hubClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientSendBuffer), done: make(chan struct{})}
	h.register(c)
	h.log.Info().Str("client", c.id).Str("remote", r.RemoteAddr).Msg("client connected")
	go h.writePump(c)

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		// clients only listen; reads detect close and keep pongs flowing
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
	c.close()
	h.log.Info().Str("client", c.id).Msg("client disconnected")
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) register(c *hubClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.count(n)
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	h.count(n)
}

func (h *Hub) count(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

// Broadcast never blocks: full client queues and listener channels drop
// the event.
func (h *Hub) Broadcast(ev domain.ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Debug().Str("client", c.id).Str("type", ev.Type).Msg("client queue full, dropping event")
		}
	}
	h.mu.RUnlock()

	h.lmu.RLock()
	for ch := range h.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
	h.lmu.RUnlock()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribe returns a channel receiving change events. Caller must Unsubscribe.
func (h *Hub) Subscribe() chan domain.ChangeEvent {
	ch := make(chan domain.ChangeEvent, 64)
	h.lmu.Lock()
	h.listeners[ch] = struct{}{}
	h.lmu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan domain.ChangeEvent) {
	h.lmu.Lock()
	if _, ok := h.listeners[ch]; ok {
		delete(h.listeners, ch)
		close(ch)
	}
	h.lmu.Unlock()
}

// Close disconnects every websocket client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		c.close()
	}
}
