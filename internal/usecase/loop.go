package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mithun50/luma-cli/internal/domain"
)

var ErrLoopRunning = errors.New("capture loop already running")

type LoopConfig struct {
	PollInterval      time.Duration
	ReconnectInterval time.Duration
	// ErrorLogWindow limits capture failure logs to one per window.
	ErrorLogWindow time.Duration
	Scripts        Scripts
}

func (c *LoopConfig) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = 2 * time.Second
	}
	if c.ErrorLogWindow <= 0 {
		c.ErrorLogWindow = 10 * time.Second
	}
}

type LoopOption func(*Loop)

func WithClock(c Clock) LoopOption { return func(l *Loop) { l.clock = c } }

func WithObserver(o LoopObserver) LoopOption {
	return func(l *Loop) {
		if o != nil {
			l.obs = o
		}
	}
}

// Loop drives discovery, connection and periodic capture, and is the only
// writer of its Session.
type Loop struct {
	cfg      LoopConfig
	session  *Session
	discover Discoverer
	dial     Dialer
	out      Broadcaster
	obs      LoopObserver
	log      zerolog.Logger
	clock    Clock
	failLog  *rate.Sometimes

	state atomic.Value

	mu     sync.Mutex
	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoop(session *Session, discover Discoverer, dial Dialer, out Broadcaster, cfg LoopConfig, logger zerolog.Logger, opts ...LoopOption) *Loop {
	cfg.defaults()
	l := &Loop{
		cfg:      cfg,
		session:  session,
		discover: discover,
		dial:     dial,
		out:      out,
		obs:      nopObserver{},
		log:      logger,
		clock:    time.Now,
		failLog:  &rate.Sometimes{Interval: cfg.ErrorLogWindow},
	}
	l.state.Store(domain.LoopStopped)
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loop) State() domain.LoopState { return l.state.Load().(domain.LoopState) }

func (l *Loop) setState(s domain.LoopState) { l.state.Store(s) }

// Start launches the loop in the background. It runs until Stop or until
// ctx is cancelled. A run that is still winding down after Stop or a
// parent cancellation is waited for, so two runs never share the Session.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		select {
		case <-l.done:
		default:
			if l.runCtx.Err() == nil {
				return ErrLoopRunning
			}
			<-l.done
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.runCtx, l.cancel, l.done = runCtx, cancel, make(chan struct{})
	l.setState(domain.LoopDisconnected)
	go l.run(runCtx, l.done)
	return nil
}

// Stop ends the loop and waits for it to exit. A capture cycle already in
// flight completes first; no further cycle starts.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the current run exits; nil before Start.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer l.setState(domain.LoopStopped)
	for {
		conn, err := l.connect(ctx)
		if err != nil {
			return
		}
		l.poll(ctx, conn)
		lost := ctx.Err() == nil
		l.drop(conn, lost)
		if !lost {
			return
		}
	}
}

func (l *Loop) connect(ctx context.Context) (Connection, error) {
	l.setState(domain.LoopDisconnected)
	l.log.Info().Msg("looking for CDP endpoint")
	attempt := func() (Connection, error) {
		l.setState(domain.LoopConnecting)
		ep, err := l.discover.Discover(ctx)
		if err != nil {
			return nil, err
		}
		l.log.Info().Int("port", ep.Port).Str("title", ep.Target.Title).Msg("found CDP target")
		return l.dial(ctx, ep)
	}
	notify := func(err error, next time.Duration) {
		l.setState(domain.LoopDisconnected)
		l.log.Debug().Err(err).Dur("retryIn", next).Msg("CDP connect attempt failed")
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(l.cfg.ReconnectInterval), ctx)
	conn, err := backoff.RetryNotifyWithData(attempt, b, notify)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		_ = conn.Close()
		return nil, ctx.Err()
	}
	return conn, nil
}

func (l *Loop) poll(ctx context.Context, conn Connection) {
	l.session.setConnection(conn)
	l.setState(domain.LoopConnected)
	l.obs.SetConnected(true)
	l.log.Info().Int("contexts", len(conn.Contexts())).Msg("CDP connected")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		l.setState(domain.LoopCapturing)
		outcome := l.capture(conn)
		l.obs.ObserveTick(outcome)
		if outcome == TickClosed || conn.Err() != nil {
			return
		}
		l.setState(domain.LoopConnected)
		timer.Reset(l.cfg.PollInterval)
	}
}

func (l *Loop) drop(conn Connection, lost bool) {
	_ = conn.Close()
	l.session.reset()
	l.obs.SetConnected(false)
	l.setState(domain.LoopDisconnected)
	if lost {
		l.obs.ObserveReconnect()
		l.log.Warn().Err(conn.Err()).Msg("CDP connection lost; reconnecting")
	}
}
