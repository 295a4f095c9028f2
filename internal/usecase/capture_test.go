package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mithun50/luma-cli/internal/domain"
)

func newTestLoop(t *testing.T, out Broadcaster, clock *fakeClock) (*Loop, *Session) {
	t.Helper()
	s := NewSession()
	l := NewLoop(s, &scriptedDiscoverer{}, nil, out, LoopConfig{Scripts: testScripts}, zerolog.Nop(), WithClock(clock.Now))
	return l, s
}

func TestGenerationSequenceEmitsOneStartAndOneComplete(t *testing.T) {
	rec := &recorder{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l, s := newTestLoop(t, rec, clock)
	pg := &page{html: "<div id=cascade>hello</div>"}
	conn := newFakeConn(pg.handle)

	for i, gen := range []bool{false, false, true, true, false} {
		pg.set("<div id=cascade>hello</div>", gen)
		outcome := l.capture(conn)
		if i == 0 {
			require.Equal(t, TickChanged, outcome)
		} else {
			require.Equal(t, TickUnchanged, outcome)
		}
		clock.Advance(time.Second)
	}

	require.Equal(t, []string{
		domain.EventSnapshotUpdate,
		domain.EventGenerationStarted,
		domain.EventGenerationComplete,
	}, rec.types())
	complete := rec.all()[2]
	require.NotNil(t, complete.DurationMs)
	require.EqualValues(t, 2000, *complete.DurationMs)
	require.False(t, s.GenerationState().IsGenerating)
	require.Nil(t, s.GenerationState().StartedAt)
}

func TestIdenticalSnapshotEmitsOneUpdate(t *testing.T) {
	rec := &recorder{}
	l, s := newTestLoop(t, rec, &fakeClock{now: time.Unix(100, 0)})
	pg := &page{html: "<p>same</p>"}
	conn := newFakeConn(pg.handle)

	require.Equal(t, TickChanged, l.capture(conn))
	hash := s.SnapshotHash()
	require.Equal(t, TickUnchanged, l.capture(conn))

	require.Equal(t, []string{domain.EventSnapshotUpdate}, rec.types())
	require.Equal(t, HashMarkup("<p>same</p>"), hash)
	require.Equal(t, hash, s.SnapshotHash())

	snap, ok := s.Snapshot()
	require.True(t, ok)
	require.Equal(t, "<p>same</p>", snap.HTML)
	require.Equal(t, ".x{}", snap.CSS)
	require.Equal(t, time.Unix(100, 0).UTC(), snap.CapturedAt)
}

func TestGenerationEventPrecedesSnapshotUpdate(t *testing.T) {
	rec := &recorder{}
	l, _ := newTestLoop(t, rec, &fakeClock{now: time.Unix(0, 0)})
	pg := &page{html: "<p>a</p>"}
	conn := newFakeConn(pg.handle)

	l.capture(conn)
	pg.set("<p>a</p><p>b</p>", true)
	l.capture(conn)

	events := rec.all()
	require.Equal(t, []string{domain.EventSnapshotUpdate, domain.EventGenerationStarted, domain.EventSnapshotUpdate}, rec.types())
	require.NotNil(t, events[2].IsGenerating)
	require.True(t, *events[2].IsGenerating)
	require.Equal(t, []string{"capture", "generation", "capture", "generation"}, conn.names())
}

func TestCaptureFailureLeavesSessionUntouched(t *testing.T) {
	rec := &recorder{}
	l, s := newTestLoop(t, rec, &fakeClock{now: time.Unix(0, 0)})
	pg := &page{html: "<p>a</p>", generating: true}
	conn := newFakeConn(pg.handle)
	l.capture(conn)
	before, _ := s.Snapshot()
	gen := s.GenerationState()

	pg.set("<p>changed</p>", false)
	pg.failCapture(domain.ErrNoViableContext)
	require.Equal(t, TickFailed, l.capture(conn))
	require.Equal(t, TickFailed, l.capture(conn))

	after, ok := s.Snapshot()
	require.True(t, ok)
	require.Equal(t, before, after)
	require.Equal(t, gen, s.GenerationState())
	require.Len(t, rec.all(), 2)
}

func TestCaptureWithoutMarkupIsAFailure(t *testing.T) {
	rec := &recorder{}
	l, s := newTestLoop(t, rec, &fakeClock{now: time.Unix(0, 0)})
	conn := newFakeConn((&page{html: ""}).handle)
	require.Equal(t, TickFailed, l.capture(conn))
	_, ok := s.Snapshot()
	require.False(t, ok)
	require.Empty(t, rec.all())
}

func TestGenerationDetectFailureReadsAsIdle(t *testing.T) {
	rec := &recorder{}
	l, s := newTestLoop(t, rec, &fakeClock{now: time.Unix(0, 0)})
	conn := newFakeConn(func(expr domain.Expression) (json.RawMessage, error) {
		if expr.Name == "generation" {
			return nil, domain.ErrNoViableContext
		}
		return json.RawMessage(`{"html":"<p>x</p>"}`), nil
	})
	require.Equal(t, TickChanged, l.capture(conn))
	require.False(t, s.GenerationState().IsGenerating)
	ev := rec.all()[0]
	require.False(t, *ev.IsGenerating)
}

func TestCaptureOnClosedTransport(t *testing.T) {
	rec := &recorder{}
	l, _ := newTestLoop(t, rec, &fakeClock{now: time.Unix(0, 0)})
	conn := newFakeConn((&page{html: "<p>x</p>"}).handle)
	_ = conn.Close()
	require.Equal(t, TickClosed, l.capture(conn))
	require.Empty(t, rec.all())
}

func TestHashMarkup(t *testing.T) {
	require.Equal(t, HashMarkup("abc"), HashMarkup("abc"))
	require.NotEqual(t, HashMarkup("abc"), HashMarkup("abd"))
	require.Len(t, HashMarkup(""), 32)
}

func TestCaptureFailureLoggedOncePerWindow(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession()
	l := NewLoop(s, &scriptedDiscoverer{}, nil, &recorder{}, LoopConfig{
		Scripts:        testScripts,
		ErrorLogWindow: 50 * time.Millisecond,
	}, zerolog.New(&buf))
	pg := &page{html: "<p>x</p>"}
	pg.failCapture(errors.New("cascade not found"))
	conn := newFakeConn(pg.handle)

	failures := func() int { return strings.Count(buf.String(), "snapshot capture failed") }

	for i := 0; i < 5; i++ {
		require.Equal(t, TickFailed, l.capture(conn))
	}
	require.Equal(t, 1, failures())
	require.Contains(t, buf.String(), "cascade not found")

	time.Sleep(70 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.Equal(t, TickFailed, l.capture(conn))
	}
	require.Equal(t, 2, failures())
}
