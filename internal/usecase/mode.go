package usecase

import (
	"sync"

	"ablevoice/internal/domain"
)

// ModeState owns the accessibility mode. SetMode is the only writer;
// readers must call Mode on every event instead of caching the value.
type ModeState struct {
	mu        sync.RWMutex
	mode      domain.AccessibilityMode
	nextID    int
	listeners map[int]func(from, to domain.AccessibilityMode)
}

func NewModeState(initial domain.AccessibilityMode) *ModeState {
	if _, ok := domain.ParseMode(string(initial)); !ok {
		initial = domain.ModeVoice
	}
	return &ModeState{
		mode:      initial,
		listeners: make(map[int]func(from, to domain.AccessibilityMode)),
	}
}

// Mode returns the current mode.
func (s *ModeState) Mode() domain.AccessibilityMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the mode and reports whether it changed.
// Listeners run after the mutation, outside the lock.
func (s *ModeState) SetMode(mode domain.AccessibilityMode) bool {
	if _, ok := domain.ParseMode(string(mode)); !ok {
		return false
	}
	s.mu.Lock()
	if s.mode == mode {
		s.mu.Unlock()
		return false
	}
	from := s.mode
	s.mode = mode
	listeners := make([]func(from, to domain.AccessibilityMode), 0, len(s.listeners))
	for id := 0; id <= s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(from, mode)
	}
	return true
}

// OnChange registers fn for mode transitions.
func (s *ModeState) OnChange(fn func(from, to domain.AccessibilityMode)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
