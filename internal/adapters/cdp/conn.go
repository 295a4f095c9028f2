// Package cdp speaks the Chrome DevTools Protocol to a debuggable target:
// one websocket per Conn, correlated calls with deadlines, and the live set
// of Runtime execution contexts.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mithun50/luma-cli/internal/domain"
)

// CallObserver receives per-call outcomes and context-set sizes (metrics).
type CallObserver interface {
	ObserveCall(method, outcome string, elapsed time.Duration)
	ObserveContexts(n int)
}

type Options struct {
	// CallTimeout bounds every call. Default 30s.
	CallTimeout time.Duration
	// SettleDelay is waited after Runtime.enable so the initial
	// executionContextCreated burst arrives before Dial returns. Default 1s.
	SettleDelay time.Duration
	// HandshakeTimeout bounds the websocket dial. Default 10s.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds a single frame write. Default 10s.
	WriteTimeout time.Duration
	Logger       *zerolog.Logger
	Observer     CallObserver
}

func (o *Options) defaults() {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
}

// transport is the subset of *websocket.Conn the multiplexer needs.
type transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// message is any inbound frame: a response carries an id, an event a method.
type message struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
}

type callResult struct {
	result json.RawMessage
	err    error
}

type pendingCall struct {
	method string
	timer  *time.Timer
	// done has capacity 1 and receives exactly one result: whoever removes
	// the call from the registry first is the only sender.
	done chan callResult
}

var errClosedLocally = errors.New("closed by client")

// Conn is one live RPC session. It is never reused once closed.
type Conn struct {
	ws   transport
	opts Options
	log  zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]*pendingCall
	closed  bool
	cause   error

	contexts  ContextSet
	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens the websocket, enables the Runtime domain and waits the
// settle delay before returning a ready Conn.
func Dial(ctx context.Context, wsURL string, opts Options) (*Conn, error) {
	opts.defaults()
	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
		NetDialContext:   (&net.Dialer{Timeout: opts.HandshakeTimeout}).DialContext,
	}
	ws, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("cdp: dial %s: %w", wsURL, err)
	}
	c := newConn(ws, opts)
	opts.Logger.Debug().Str("url", wsURL).Msg("cdp: websocket open")

	enable := proto.RuntimeEnable{}
	if _, err := c.Call(enable.ProtoReq(), enable); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("cdp: enable runtime: %w", err)
	}

	settle := time.NewTimer(opts.SettleDelay)
	defer settle.Stop()
	select {
	case <-settle.C:
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	case <-c.Done():
		return nil, c.Err()
	}
	return c, nil
}

func newConn(ws transport, opts Options) *Conn {
	opts.defaults()
	c := &Conn{
		ws:      ws,
		opts:    opts,
		log:     *opts.Logger,
		pending: make(map[int64]*pendingCall),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call sends one method and blocks until its response, its deadline or the
// transport closing. There is no other way to abandon a call.
func (c *Conn) Call(method string, params any) (json.RawMessage, error) {
	if params == nil {
		params = struct{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("cdp: encode %s params: %w", method, err)
	}

	start := time.Now()
	pc := &pendingCall{method: method, done: make(chan callResult, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, c.closedErr()
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = pc
	pc.timer = time.AfterFunc(c.opts.CallTimeout, func() { c.expire(id, start) })
	c.mu.Unlock()

	frame, err := json.Marshal(request{ID: id, Method: method, Params: raw})
	if err == nil {
		err = c.write(frame)
	}
	if err != nil {
		if p := c.take(id); p != nil {
			p.timer.Stop()
			p.done <- callResult{err: fmt.Errorf("%w: write %s: %v", domain.ErrTransportClosed, method, err)}
		}
		c.shutdown(err)
	}

	res := <-pc.done
	c.observeCall(method, res.err, time.Since(start))
	return res.result, res.err
}

func (c *Conn) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// take removes a pending call. Only the caller that gets a non-nil result
// may complete it.
func (c *Conn) take(id int64) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return p
}

func (c *Conn) expire(id int64, start time.Time) {
	p := c.take(id)
	if p == nil {
		return
	}
	p.done <- callResult{err: &TimeoutError{Method: p.method, After: time.Since(start)}}
}

func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Conn) dispatch(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Debug().Err(err).Int("size", len(data)).Msg("cdp: dropping malformed frame")
		return
	}
	if msg.ID != nil {
		p := c.take(*msg.ID)
		if p == nil {
			c.log.Debug().Int64("id", *msg.ID).Msg("cdp: dropping uncorrelated response")
			return
		}
		p.timer.Stop()
		if msg.Error != nil {
			rerr := *msg.Error
			rerr.Method = p.method
			p.done <- callResult{err: &rerr}
			return
		}
		p.done <- callResult{result: msg.Result}
		return
	}
	c.handleEvent(msg.Method, msg.Params)
}

var (
	evContextCreated   = proto.RuntimeExecutionContextCreated{}.ProtoEvent()
	evContextDestroyed = proto.RuntimeExecutionContextDestroyed{}.ProtoEvent()
	evContextsCleared  = proto.RuntimeExecutionContextsCleared{}.ProtoEvent()
)

func (c *Conn) handleEvent(method string, params json.RawMessage) {
	switch method {
	case evContextCreated:
		var ev proto.RuntimeExecutionContextCreated
		if err := json.Unmarshal(params, &ev); err != nil || ev.Context == nil {
			return
		}
		c.contexts.Add(domain.ExecutionContext{
			ID:       int(ev.Context.ID),
			Origin:   ev.Context.Origin,
			Name:     ev.Context.Name,
			UniqueID: ev.Context.UniqueID,
		})
	case evContextDestroyed:
		var ev proto.RuntimeExecutionContextDestroyed
		if err := json.Unmarshal(params, &ev); err != nil {
			return
		}
		c.contexts.Remove(int(ev.ExecutionContextID))
	case evContextsCleared:
		c.contexts.Clear()
	default:
		return
	}
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveContexts(c.contexts.Len())
	}
}

// shutdown fails every pending call with ErrTransportClosed and closes Done.
func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.cause = cause
		pending := c.pending
		c.pending = make(map[int64]*pendingCall)
		c.mu.Unlock()

		_ = c.ws.Close()
		err := c.closedErr()
		for _, p := range pending {
			p.timer.Stop()
			p.done <- callResult{err: err}
		}
		if !errors.Is(cause, errClosedLocally) {
			c.log.Info().Err(cause).Int("failedCalls", len(pending)).Msg("cdp: transport closed")
		}
		close(c.done)
	})
}

func (c *Conn) closedErr() error {
	c.mu.Lock()
	cause := c.cause
	c.mu.Unlock()
	if cause == nil {
		return domain.ErrTransportClosed
	}
	return fmt.Errorf("%w: %v", domain.ErrTransportClosed, cause)
}

// Close tears the connection down. Pending calls fail with ErrTransportClosed.
func (c *Conn) Close() error {
	c.shutdown(errClosedLocally)
	return nil
}

// Done is closed once the transport is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err is nil while connected and wraps ErrTransportClosed afterwards.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
		return nil
	}
}

func (c *Conn) Connected() bool { return c.Err() == nil }

// Contexts returns a copy of the current execution contexts.
func (c *Conn) Contexts() []domain.ExecutionContext { return c.contexts.List() }

// PendingCount is the number of calls still waiting for a response.
func (c *Conn) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Conn) observeCall(method string, err error, elapsed time.Duration) {
	if c.opts.Observer == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, domain.ErrTransportClosed):
		outcome = "closed"
	default:
		outcome = "remote_error"
	}
	c.opts.Observer.ObserveCall(method, outcome, elapsed)
}
