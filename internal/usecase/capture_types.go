package usecase

import (
	"sort"
	"sync"
	"time"

	"ablevoice/internal/domain"
	"ablevoice/internal/ports"
)

// CaptureConfig controls restart and retry policy of the capture loop.
type CaptureConfig struct {
	Mode            domain.CaptureMode
	Language        string
	RestartDelay    time.Duration
	RetryDelay      time.Duration
	MaxRetries      int
	NoSpeechTimeout time.Duration
}

type captureHandle struct {
	id      string
	native  ports.RecognitionHandle
	mode    domain.CaptureMode
	timeout ports.Timer
}

type listenerSet[T any] struct {
	mu     sync.RWMutex
	nextID int
	fns    map[int]func(T)
}

func (s *listenerSet[T]) add(fn func(T)) func() {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[int]func(T))
	}
	s.nextID++
	id := s.nextID
	s.fns[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

// snapshot returns listeners in registration order.
func (s *listenerSet[T]) snapshot() []func(T) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.fns[id])
	}
	return out
}

func (s *listenerSet[T]) emit(value T) {
	for _, fn := range s.snapshot() {
		fn(value)
	}
}

type stateChange struct {
	session domain.CaptureSession
	reason  domain.CaptureReason
}
