package httpapi

import (
	"net/http"
	"sync"

	socketio "github.com/googollee/go-socket.io"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mithun50/luma-cli/internal/domain"
)

const sioRoom = "events"

// SocketIOHub serves change events to Socket.IO clients on /socket.io/.
// The event name is the change event type.
type SocketIOHub struct {
	srv     *socketio.Server
	log     zerolog.Logger
	onCount func(n int)
	queue   chan domain.ChangeEvent

	mu    sync.Mutex
	conns map[string]string

	done      chan struct{}
	closeOnce sync.Once
}

func NewSocketIOHub(logger zerolog.Logger, onCount func(n int)) *SocketIOHub {
	h := &SocketIOHub{
		srv:     socketio.NewServer(nil),
		log:     logger,
		onCount: onCount,
		queue:   make(chan domain.ChangeEvent, 64),
		conns:   make(map[string]string),
		done:    make(chan struct{}),
	}
	h.srv.OnConnect("/", func(c socketio.Conn) error {
		id := uuid.NewString()
		c.SetContext(id)
		c.Join(sioRoom)
		h.track(c.ID(), id)
		h.log.Info().Str("client", id).Msg("socket.io client connected")
		return nil
	})
	h.srv.OnDisconnect("/", func(c socketio.Conn, reason string) {
		h.untrack(c.ID())
		h.log.Info().Str("reason", reason).Msg("socket.io client disconnected")
	})
	h.srv.OnError("/", func(c socketio.Conn, err error) {
		h.log.Debug().Err(err).Msg("socket.io error")
	})
	return h
}

// Start runs the engine and the delivery pump.
func (h *SocketIOHub) Start() {
	go func() {
		if err := h.srv.Serve(); err != nil {
			h.log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()
	go h.pump()
}

func (h *SocketIOHub) pump() {
	for {
		select {
		case ev := <-h.queue:
			h.srv.BroadcastToRoom("/", sioRoom, ev.Type, ev)
		case <-h.done:
			return
		}
	}
}

// Broadcast queues ev for delivery and drops it when the queue is full.
func (h *SocketIOHub) Broadcast(ev domain.ChangeEvent) {
	select {
	case h.queue <- ev:
	default:
		h.log.Debug().Str("type", ev.Type).Msg("socket.io queue full, dropping event")
	}
}

func (h *SocketIOHub) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.srv.ServeHTTP(w, r) }

func (h *SocketIOHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *SocketIOHub) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return h.srv.Close()
}

func (h *SocketIOHub) track(sid, id string) {
	h.mu.Lock()
	h.conns[sid] = id
	n := len(h.conns)
	h.mu.Unlock()
	if h.onCount != nil {
		h.onCount(n)
	}
}

func (h *SocketIOHub) untrack(sid string) {
	h.mu.Lock()
	delete(h.conns, sid)
	n := len(h.conns)
	h.mu.Unlock()
	if h.onCount != nil {
		h.onCount(n)
	}
}
