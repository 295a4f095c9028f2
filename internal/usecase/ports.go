package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mithun50/luma-cli/internal/domain"
)

// Connection is a live debugger session as the loop and the chat actions see it.
type Connection interface {
	EvaluateAcrossContexts(expr domain.Expression) (json.RawMessage, error)
	Contexts() []domain.ExecutionContext
	Done() <-chan struct{}
	Err() error
	Close() error
}

type Discoverer interface {
	Discover(ctx context.Context) (domain.Endpoint, error)
}

// Dialer opens a Connection to a discovered endpoint.
type Dialer func(ctx context.Context, ep domain.Endpoint) (Connection, error)

// Broadcaster receives change events. Implementations must not block.
type Broadcaster interface {
	Broadcast(ev domain.ChangeEvent)
}

// BroadcastFunc adapts a function to Broadcaster.
type BroadcastFunc func(ev domain.ChangeEvent)

func (f BroadcastFunc) Broadcast(ev domain.ChangeEvent) { f(ev) }

// LoopObserver receives loop telemetry (metrics).
type LoopObserver interface {
	SetConnected(connected bool)
	ObserveTick(outcome string)
	ObserveEvent(eventType string)
	ObserveReconnect()
}

type nopObserver struct{}

func (nopObserver) SetConnected(bool)   {}
func (nopObserver) ObserveTick(string)  {}
func (nopObserver) ObserveEvent(string) {}
func (nopObserver) ObserveReconnect()   {}

type Clock func() time.Time

// Scripts is the set of page expressions the bridge evaluates.
type Scripts struct {
	Capture    domain.Expression
	Generation domain.Expression
	AppState   domain.Expression
	Stop       domain.Expression
	Inject     func(text string) domain.Expression
	SetMode    func(mode string) domain.Expression
	SetModel   func(model string) domain.Expression
	Click      func(domain.ClickTarget) domain.Expression
	Scroll     func(domain.ScrollTarget) domain.Expression
}
