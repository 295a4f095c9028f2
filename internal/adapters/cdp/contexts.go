package cdp

import (
	"sync"

	"github.com/mithun50/luma-cli/internal/domain"
)

// ContextSet is the live registry of execution contexts, kept in creation
// order. The most recently created context is last.
type ContextSet struct {
	mu    sync.RWMutex
	items []domain.ExecutionContext
}

// Add appends a context. A context re-announced with a known id moves to the end.
func (s *ContextSet) Add(ec domain.ExecutionContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(ec.ID)
	s.items = append(s.items, ec)
}

// Remove drops the context with the given id and reports whether it was present.
func (s *ContextSet) Remove(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *ContextSet) removeLocked(id int) bool {
	for i, ec := range s.items {
		if ec.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *ContextSet) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// List returns a copy; callers may iterate it while events keep arriving.
func (s *ContextSet) List() []domain.ExecutionContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ExecutionContext, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ContextSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
