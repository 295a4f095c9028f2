package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mithun50/luma-cli/internal/domain"
)

var testScripts = Scripts{
	Capture:    domain.Expression{Name: "capture", Source: "capture()"},
	Generation: domain.Expression{Name: "generation", Source: "generation()"},
	AppState:   domain.Expression{Name: "app_state", Source: "appState()", AwaitPromise: true},
	Stop:       domain.Expression{Name: "stop", Source: "stop()", AwaitPromise: true},
	Inject: func(text string) domain.Expression {
		lit, _ := json.Marshal(text)
		return domain.Expression{Name: "inject", Source: "inject(" + string(lit) + ")", AwaitPromise: true}
	},
	SetMode:  func(mode string) domain.Expression { return argExpr("set_mode", mode) },
	SetModel: func(model string) domain.Expression { return argExpr("set_model", model) },
	Click:    func(t domain.ClickTarget) domain.Expression { return argExpr("click", t) },
	Scroll:   func(t domain.ScrollTarget) domain.Expression { return argExpr("scroll", t) },
}

func argExpr(name string, args any) domain.Expression {
	lit, _ := json.Marshal(args)
	return domain.Expression{Name: name, Source: name + "(" + string(lit) + ")", AwaitPromise: true}
}

// fakeConn answers expressions through handle and can be closed to
// simulate transport loss.
type fakeConn struct {
	handle func(expr domain.Expression) (json.RawMessage, error)

	calls    atomic.Int64
	mu       sync.Mutex
	exprs    []string
	done     chan struct{}
	once     sync.Once
	contexts []domain.ExecutionContext
}

func newFakeConn(handle func(domain.Expression) (json.RawMessage, error)) *fakeConn {
	return &fakeConn{
		handle:   handle,
		done:     make(chan struct{}),
		contexts: []domain.ExecutionContext{{ID: 1}},
	}
}

func (f *fakeConn) EvaluateAcrossContexts(expr domain.Expression) (json.RawMessage, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.exprs = append(f.exprs, expr.Name)
	f.mu.Unlock()
	if f.Err() != nil {
		return nil, f.Err()
	}
	return f.handle(expr)
}

func (f *fakeConn) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exprs...)
}

func (f *fakeConn) Contexts() []domain.ExecutionContext { return f.contexts }
func (f *fakeConn) Done() <-chan struct{}               { return f.done }

func (f *fakeConn) Err() error {
	select {
	case <-f.done:
		return domain.ErrTransportClosed
	default:
		return nil
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

// page is a scripted target: the markup and generating flag it reports.
type page struct {
	mu         sync.Mutex
	html       string
	generating bool
	captureErr error
}

func (p *page) set(html string, generating bool) {
	p.mu.Lock()
	p.html, p.generating = html, generating
	p.mu.Unlock()
}

func (p *page) failCapture(err error) {
	p.mu.Lock()
	p.captureErr = err
	p.mu.Unlock()
}

func (p *page) handle(expr domain.Expression) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch expr.Name {
	case "capture":
		if p.captureErr != nil {
			return nil, p.captureErr
		}
		return json.Marshal(map[string]any{
			"html":  p.html,
			"css":   ".x{}",
			"stats": map[string]any{"nodes": 3, "htmlSize": len(p.html), "cssSize": 4},
		})
	case "generation":
		return json.Marshal(map[string]any{"isGenerating": p.generating, "method": "test"})
	default:
		return nil, errors.New("unexpected expression " + expr.Name)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (r *recorder) Broadcast(ev domain.ChangeEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) all() []domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChangeEvent(nil), r.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedDiscoverer hands out endpoints until fail is set.
type scriptedDiscoverer struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (d *scriptedDiscoverer) Discover(ctx context.Context) (domain.Endpoint, error) {
	d.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return domain.Endpoint{}, err
	}
	if d.fail.Load() {
		return domain.Endpoint{}, domain.ErrDiscoveryFailed
	}
	return domain.Endpoint{Port: 9000, WebSocketURL: "ws://127.0.0.1:9000/devtools/page/1"}, nil
}
