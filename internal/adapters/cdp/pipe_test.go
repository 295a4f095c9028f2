package cdp

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// pipeTransport is an in-memory transport: frames pushed on in are read by
// the Conn, frames written by the Conn appear on out.
type pipeTransport struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newPipe() *pipeTransport {
	return &pipeTransport{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (p *pipeTransport) ReadMessage() (int, []byte, error) {
	select {
	case b := <-p.in:
		return websocket.TextMessage, b, nil
	case <-p.closed:
		return 0, nil, io.EOF
	}
}

func (p *pipeTransport) WriteMessage(_ int, data []byte) error {
	select {
	case <-p.closed:
		return errors.New("pipe closed")
	default:
	}
	select {
	case p.out <- data:
		return nil
	case <-p.closed:
		return errors.New("pipe closed")
	}
}

func (p *pipeTransport) SetWriteDeadline(time.Time) error { return nil }

func (p *pipeTransport) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeTransport) deliver(t *testing.T, v any) {
	t.Helper()
	var b []byte
	switch x := v.(type) {
	case string:
		b = []byte(x)
	case []byte:
		b = x
	default:
		var err error
		b, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal frame: %v", err)
		}
	}
	select {
	case p.in <- b:
	case <-p.closed:
	}
}

// nextRequest waits for the Conn to write one request.
func (p *pipeTransport) nextRequest(t *testing.T) request {
	t.Helper()
	select {
	case b := <-p.out:
		var req request
		if err := json.Unmarshal(b, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		return req
	case <-time.After(2 * time.Second):
		t.Fatalf("no request written")
		return request{}
	}
}

// serve answers every request with handle until the pipe closes.
func (p *pipeTransport) serve(t *testing.T, handle func(req request) message) {
	t.Helper()
	go func() {
		for {
			select {
			case b := <-p.out:
				var req request
				if err := json.Unmarshal(b, &req); err != nil {
					continue
				}
				resp := handle(req)
				id := req.ID
				resp.ID = &id
				out, _ := json.Marshal(resp)
				select {
				case p.in <- out:
				case <-p.closed:
					return
				}
			case <-p.closed:
				return
			}
		}
	}()
}

func contextCreated(id int) map[string]any {
	return map[string]any{
		"method": "Runtime.executionContextCreated",
		"params": map[string]any{
			"context": map[string]any{"id": id, "origin": "vscode-file://vscode-app", "name": "", "uniqueId": "u" + itoa(id)},
		},
	}
}

func contextDestroyed(id int) map[string]any {
	return map[string]any{
		"method": "Runtime.executionContextDestroyed",
		"params": map[string]any{"executionContextId": id},
	}
}

func contextsCleared() map[string]any {
	return map[string]any{"method": "Runtime.executionContextsCleared", "params": map[string]any{}}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func rawResult(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
