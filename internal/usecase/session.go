package usecase

import (
	"sync/atomic"

	"github.com/mithun50/luma-cli/internal/domain"
)

type connHolder struct{ c Connection }

// Session is the bridge's current view of the target: the live connection,
// the last snapshot and the generation state. The Loop is its only writer;
// readers never block it.
type Session struct {
	conn atomic.Pointer[connHolder]
	snap atomic.Pointer[domain.Snapshot]
	gen  atomic.Pointer[domain.GenerationState]
}

func NewSession() *Session {
	s := &Session{}
	s.gen.Store(&domain.GenerationState{})
	return s
}

// Connection returns the current connection or nil.
func (s *Session) Connection() Connection {
	h := s.conn.Load()
	if h == nil {
		return nil
	}
	return h.c
}

func (s *Session) IsConnected() bool {
	c := s.Connection()
	return c != nil && c.Err() == nil
}

// Snapshot returns the last captured snapshot, if any.
func (s *Session) Snapshot() (domain.Snapshot, bool) {
	p := s.snap.Load()
	if p == nil {
		return domain.Snapshot{}, false
	}
	return *p, true
}

func (s *Session) SnapshotHash() string {
	if p := s.snap.Load(); p != nil {
		return p.Hash
	}
	return ""
}

func (s *Session) GenerationState() domain.GenerationState {
	return *s.gen.Load()
}

func (s *Session) setConnection(c Connection) {
	if c == nil {
		s.conn.Store(nil)
		return
	}
	s.conn.Store(&connHolder{c: c})
}

func (s *Session) setSnapshot(snap domain.Snapshot) { s.snap.Store(&snap) }

func (s *Session) setGeneration(g domain.GenerationState) { s.gen.Store(&g) }

// reset forgets everything tied to a lost connection.
func (s *Session) reset() {
	s.conn.Store(nil)
	s.snap.Store(nil)
	s.gen.Store(&domain.GenerationState{})
}
