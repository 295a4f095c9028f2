package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mithun50/luma-cli/internal/domain"
	"github.com/mithun50/luma-cli/internal/infrastructure/config"
	obs "github.com/mithun50/luma-cli/internal/infrastructure/observability"
	"github.com/mithun50/luma-cli/internal/usecase"
)

// LoopStatus is the read side of the capture loop.
type LoopStatus interface {
	State() domain.LoopState
}

// PortChecker reports whether a debugger port answers with targets.
type PortChecker interface {
	Available(ctx context.Context, port int) bool
}

type Deps struct {
	Cfg      config.Config
	Logger   *zerolog.Logger
	Metrics  *obs.Metrics
	Session  *usecase.Session
	Loop     LoopStatus
	Chat     *usecase.ChatService
	Events   usecase.EventRepository
	Hub      *Hub
	SocketIO *SocketIOHub
	Ports    PortChecker
	// HTTPS is reported by /health when the TLS server is up.
	HTTPS   bool
	Started time.Time
}

func NewRouterWithDeps(d *Deps) http.Handler {
	if d.Started.IsZero() {
		d.Started = time.Now()
	}
	return withCORS(d.Cfg, buildBaseMux(d))
}

func buildBaseMux(d *Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !d.Session.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("cdp not connected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if d.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"name":    "luma-bridge",
			"version": obs.Version,
			"commit":  obs.Commit,
			"date":    obs.Date,
			"time":    time.Now().UTC(),
		})
	})

	mux.HandleFunc("/health", d.handleHealth)
	mux.HandleFunc("/api/config", d.handleConfig)
	mux.HandleFunc("/api/events", d.handleListEvents)
	mux.HandleFunc("/api/events/stream", d.handleEventStream)
	mux.HandleFunc("/api/cdp/ports", d.handlePorts)

	mux.HandleFunc("/snapshot", d.handleSnapshot)
	mux.HandleFunc("/generation", d.handleGeneration)
	mux.HandleFunc("/send", d.handleSend)
	mux.HandleFunc("/stop", d.handleStop)
	mux.HandleFunc("/app-state", d.handleAppState)
	mux.HandleFunc("/set-mode", d.handleSetMode)
	mux.HandleFunc("/set-model", d.handleSetModel)
	mux.HandleFunc("/remote-click", d.handleRemoteClick)
	mux.HandleFunc("/remote-scroll", d.handleRemoteScroll)

	if d.Hub != nil {
		mux.HandleFunc("/ws", d.Hub.HandleWS)
	}
	if d.SocketIO != nil {
		mux.Handle("/socket.io/", d.SocketIO)
	}
	return mux
}

func withCORS(cfg config.Config, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Cookie")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use "+method, nil)
	return false
}
