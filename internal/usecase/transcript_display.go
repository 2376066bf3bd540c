package usecase

import (
	"sync"
	"time"

	"github.com/bep/debounce"

	"ablevoice/internal/domain"
	"ablevoice/internal/ports"
)

// transcriptDisplay keeps the latest transcript visible for a fixed window.
// A newer transcript replaces the shown one and restarts the window. It is
// a presentation concern only and never delays command dispatch.
type transcriptDisplay struct {
	events ports.EventSink
	clear  func(f func())

	mu      sync.Mutex
	current string
}

func newTranscriptDisplay(events ports.EventSink, window time.Duration) *transcriptDisplay {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &transcriptDisplay{
		events: events,
		clear:  debounce.New(window),
	}
}

func (d *transcriptDisplay) Show(t domain.Transcript) {
	d.mu.Lock()
	d.current = t.Text
	d.mu.Unlock()

	d.events.TranscriptShown(t)
	d.clear(d.expire)
}

// Current returns the transcript on screen, or "" once it has cleared.
func (d *transcriptDisplay) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *transcriptDisplay) expire() {
	d.mu.Lock()
	if d.current == "" {
		d.mu.Unlock()
		return
	}
	d.current = ""
	d.mu.Unlock()

	d.events.TranscriptCleared()
}
