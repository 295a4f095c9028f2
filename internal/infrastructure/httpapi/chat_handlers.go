package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/mithun50/luma-cli/internal/domain"
)

func (d *Deps) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap, ok := d.Session.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "NO_SNAPSHOT", "No snapshot available yet", nil)
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == `"`+snap.Hash+`"` {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", `"`+snap.Hash+`"`)
	writeJSON(w, http.StatusOK, snap)
}

type generationView struct {
	IsGenerating bool       `json:"isGenerating"`
	StartedAt    *time.Time `json:"startedAt"`
	DurationMs   int64      `json:"durationMs"`
}

func (d *Deps) handleGeneration(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	g := d.Session.GenerationState()
	writeJSON(w, http.StatusOK, generationView{
		IsGenerating: g.IsGenerating,
		StartedAt:    g.StartedAt,
		DurationMs:   g.Duration(time.Now()).Milliseconds(),
	})
}

type sendRequest struct {
	Message string `json:"message"`
}

func (d *Deps) handleSend(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var in sendRequest
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := d.Chat.SendMessage(in.Message)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (d *Deps) handleStop(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	res, err := d.Chat.StopGeneration()
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (d *Deps) handleAppState(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	st, err := d.Chat.AppState()
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type modelRequest struct {
	Model string `json:"model"`
}

func (d *Deps) handleSetMode(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var in modeRequest
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := d.Chat.SetMode(in.Mode)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (d *Deps) handleSetModel(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var in modelRequest
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := d.Chat.SetModel(in.Model)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (d *Deps) handleRemoteClick(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var in domain.ClickTarget
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := d.Chat.Click(in)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (d *Deps) handleRemoteScroll(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var in domain.ScrollTarget
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := d.Chat.Scroll(in)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeBody reads a JSON request body of at most 1MB into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid json", nil)
		return false
	}
	return true
}
