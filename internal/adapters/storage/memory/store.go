package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mithun50/luma-cli/internal/domain"
)

type entry struct {
	rec      domain.EventRecord
	storedAt time.Time
}

// EventLog is a bounded in-memory ring of change events with TTL eviction.
// It doubles as a Broadcaster sink.
type EventLog struct {
	mu      sync.RWMutex
	entries []entry

	max int
	ttl time.Duration
	now func() time.Time
}

func NewEventLog(max int, ttl time.Duration) *EventLog {
	if max <= 0 {
		max = 500
	}
	return &EventLog{entries: make([]entry, 0, max), max: max, ttl: ttl, now: time.Now}
}

func (l *EventLog) AppendEvent(ctx context.Context, ev domain.ChangeEvent) (domain.EventRecord, error) {
	rec := domain.EventRecord{ID: uuid.NewString(), ChangeEvent: ev}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictExpiredLocked()
	if len(l.entries) >= l.max {
		l.entries = append(l.entries[:0], l.entries[1:]...)
	}
	l.entries = append(l.entries, entry{rec: rec, storedAt: l.now()})
	return rec, nil
}

// Broadcast stores ev; the log never blocks the capture loop.
func (l *EventLog) Broadcast(ev domain.ChangeEvent) {
	_, _ = l.AppendEvent(context.Background(), ev)
}

func (l *EventLog) ListEvents(ctx context.Context, from string, limit int) ([]domain.EventRecord, string, error) {
	l.mu.Lock()
	l.evictExpiredLocked()
	l.mu.Unlock()

	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if from != "" {
		for i := range l.entries {
			if l.entries[i].rec.ID == from {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if limit <= 0 || end > len(l.entries) {
		end = len(l.entries)
	}
	next := ""
	if end < len(l.entries) && end > start {
		next = l.entries[end-1].rec.ID
	}
	out := make([]domain.EventRecord, 0, end-start)
	for _, e := range l.entries[start:end] {
		out = append(out, e.rec)
	}
	return out, next, nil
}

// Recent returns up to n newest events, oldest first.
func (l *EventLog) Recent(n int) []domain.EventRecord {
	l.mu.Lock()
	l.evictExpiredLocked()
	l.mu.Unlock()

	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if n > 0 && len(l.entries) > n {
		start = len(l.entries) - n
	}
	out := make([]domain.EventRecord, 0, len(l.entries)-start)
	for _, e := range l.entries[start:] {
		out = append(out, e.rec)
	}
	return out
}

func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *EventLog) evictExpiredLocked() {
	if l.ttl <= 0 {
		return
	}
	now := l.now()
	keep := 0
	for keep < len(l.entries) && now.Sub(l.entries[keep].storedAt) > l.ttl {
		keep++
	}
	if keep > 0 {
		l.entries = append(l.entries[:0], l.entries[keep:]...)
	}
}
