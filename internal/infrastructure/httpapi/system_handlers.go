package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mithun50/luma-cli/internal/domain"
)

type healthView struct {
	Status       string           `json:"status"`
	CDPConnected bool             `json:"cdpConnected"`
	LoopState    domain.LoopState `json:"loopState"`
	Uptime       float64          `json:"uptime"`
	Timestamp    time.Time        `json:"timestamp"`
	HTTPS        bool             `json:"https"`
	Subscribers  map[string]int   `json:"subscribers"`
}

func (d *Deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	state := domain.LoopStopped
	if d.Loop != nil {
		state = d.Loop.State()
	}
	subs := map[string]int{}
	if d.Hub != nil {
		subs["ws"] = d.Hub.Count()
	}
	if d.SocketIO != nil {
		subs["socketio"] = d.SocketIO.Count()
	}
	writeJSON(w, http.StatusOK, healthView{
		Status:       "ok",
		CDPConnected: d.Session.IsConnected(),
		LoopState:    state,
		Uptime:       time.Since(d.Started).Seconds(),
		Timestamp:    time.Now().UTC(),
		HTTPS:        d.HTTPS,
		Subscribers:  subs,
	})
}

func (d *Deps) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, d.Cfg.Redacted())
}

func (d *Deps) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if d.Events == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "event log disabled", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	from := r.URL.Query().Get("from")
	items, next, err := d.Events.ListEvents(r.Context(), from, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EVENTS_FAILED", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "next": next})
}

// handleEventStream relays change events as Server-Sent Events. With
// ?replay=N the N newest logged events are sent first.
func (d *Deps) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if d.Hub == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAM_UNSUPPORTED", "stream unsupported", nil)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := d.Hub.Subscribe()
	defer d.Hub.Unsubscribe(sub)
	if n, _ := strconv.Atoi(r.URL.Query().Get("replay")); n > 0 && d.Events != nil {
		if n > 100 {
			n = 100
		}
		for _, rec := range d.Events.Recent(n) {
			if _, err := w.Write([]byte("id: " + rec.ID + "\n")); err != nil {
				return
			}
			if err := writeSSE(w, flusher, rec.Type, rec.ChangeEvent); err != nil {
				return
			}
		}
	}
	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := writeSSE(w, flusher, ev.Type, ev); err != nil {
				return
			}
		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + event + "\ndata: " + string(b) + "\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

type portView struct {
	Port      int  `json:"port"`
	Available bool `json:"available"`
}

// handlePorts checks every configured debugger port, in order.
func (d *Deps) handlePorts(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if d.Ports == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "port probing disabled", nil)
		return
	}
	out := make([]portView, 0, len(d.Cfg.CDPPorts))
	for _, p := range d.Cfg.CDPPorts {
		out = append(out, portView{Port: p, Available: d.Ports.Available(r.Context(), p)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"host": d.Cfg.CDPHost, "ports": out})
}
