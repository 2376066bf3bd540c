package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ablevoice/internal/domain"
	"ablevoice/internal/ports"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) ports.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and fires due timers in deadline order,
// including timers armed by the callbacks themselves.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, timer := range c.timers {
			if !timer.fired && !timer.stopped && !timer.at.After(target) {
				due = append(due, timer)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.fn()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, timer := range c.timers {
		if !timer.fired && !timer.stopped {
			count++
		}
	}
	return count
}

type fakeRecognizer struct {
	mu          sync.Mutex
	unsupported bool
	newErr      error
	startErr    error
	handles     []*fakeHandle
}

func (r *fakeRecognizer) Supported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.unsupported
}

func (r *fakeRecognizer) NewHandle(cfg ports.RecognizerConfig) (ports.RecognitionHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.newErr != nil {
		return nil, r.newErr
	}
	h := &fakeHandle{id: fmt.Sprintf("handle-%d", len(r.handles)+1), cfg: cfg, startErr: r.startErr}
	r.handles = append(r.handles, h)
	return h, nil
}

func (r *fakeRecognizer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *fakeRecognizer) handle(i int) *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[i]
}

func (r *fakeRecognizer) last() *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[len(r.handles)-1]
}

// live counts handles that were started and not stopped.
func (r *fakeRecognizer) live() int {
	r.mu.Lock()
	handles := append([]*fakeHandle(nil), r.handles...)
	r.mu.Unlock()

	count := 0
	for _, h := range handles {
		if h.isLive() {
			count++
		}
	}
	return count
}

type fakeHandle struct {
	mu       sync.Mutex
	id       string
	cfg      ports.RecognizerConfig
	startErr error
	started  bool
	stopped  bool
	onResult func(string)
	onError  func(domain.RecognitionErrorKind, string)
	onEnd    func()
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startErr != nil {
		return h.startErr
	}
	if h.stopped {
		return errors.New("recognition handle already stopped")
	}
	h.started = true
	return nil
}

// Stop fires the end callback like a browser recognizer does after abort.
func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	wasLive := h.started && !h.stopped
	h.stopped = true
	onEnd := h.onEnd
	h.mu.Unlock()

	if wasLive && onEnd != nil {
		onEnd()
	}
	return nil
}

func (h *fakeHandle) OnResult(fn func(string)) {
	h.mu.Lock()
	h.onResult = fn
	h.mu.Unlock()
}

func (h *fakeHandle) OnError(fn func(domain.RecognitionErrorKind, string)) {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
}

func (h *fakeHandle) OnEnd(fn func()) {
	h.mu.Lock()
	h.onEnd = fn
	h.mu.Unlock()
}

func (h *fakeHandle) isLive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started && !h.stopped
}

func (h *fakeHandle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func (h *fakeHandle) result(text string) {
	h.mu.Lock()
	fn := h.onResult
	h.mu.Unlock()
	fn(text)
}

func (h *fakeHandle) fail(kind domain.RecognitionErrorKind) {
	h.mu.Lock()
	fn := h.onError
	h.mu.Unlock()
	fn(kind, "")
}

func (h *fakeHandle) end() {
	h.mu.Lock()
	fn := h.onEnd
	h.mu.Unlock()
	fn()
}

type fakePermission struct {
	mu    sync.Mutex
	perm  domain.Permission
	err   error
	calls int
}

func (p *fakePermission) RequestMicrophone(context.Context) (domain.Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.perm, p.err
}

func (p *fakePermission) set(perm domain.Permission, err error) {
	p.mu.Lock()
	p.perm = perm
	p.err = err
	p.mu.Unlock()
}

type fakeSynth struct {
	mu          sync.Mutex
	unsupported bool
	voices      []string
	speakErr    error
	spoken      []domain.SpeechUtterance
	cancels     int
	onEnd       func(string, error)
}

func (s *fakeSynth) Supported() bool { return !s.unsupported }

func (s *fakeSynth) Voices() []string { return s.voices }

func (s *fakeSynth) Speak(u domain.SpeechUtterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.speakErr != nil {
		return s.speakErr
	}
	s.spoken = append(s.spoken, u)
	return nil
}

func (s *fakeSynth) Cancel() {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
}

func (s *fakeSynth) OnEnd(fn func(string, error)) {
	s.mu.Lock()
	s.onEnd = fn
	s.mu.Unlock()
}

func (s *fakeSynth) finish(id string, err error) {
	s.mu.Lock()
	fn := s.onEnd
	s.mu.Unlock()
	fn(id, err)
}

func (s *fakeSynth) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.spoken))
	for _, u := range s.spoken {
		out = append(out, u.Text)
	}
	return out
}

func (s *fakeSynth) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// fakeUI records everything the core reports to the user.
type fakeUI struct {
	mu       sync.Mutex
	states   []stateChange
	shown    []string
	cleared  int
	speaking []bool
	errors   []errEvent
	notes    []domain.Notification
	paths    []string
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeUI) CaptureStateChanged(session domain.CaptureSession, reason domain.CaptureReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateChange{session: session, reason: reason})
}

func (f *fakeUI) TranscriptShown(t domain.Transcript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, t.Text)
}

func (f *fakeUI) TranscriptCleared() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeUI) SpeakingChanged(speaking bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = append(f.speaking, speaking)
}

func (f *fakeUI) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeUI) Notify(n domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
}

func (f *fakeUI) GoTo(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
}

func (f *fakeUI) snapshotStates() []stateChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateChange(nil), f.states...)
}

func (f *fakeUI) snapshotNotes() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification(nil), f.notes...)
}

func (f *fakeUI) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeUI) snapshotSpeaking() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.speaking...)
}

func (f *fakeUI) clearedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

func (f *fakeUI) hasNote(message string) bool {
	for _, note := range f.snapshotNotes() {
		if note.Message == message {
			return true
		}
	}
	return false
}

func (f *fakeUI) lastState() stateChange {
	states := f.snapshotStates()
	if len(states) == 0 {
		return stateChange{}
	}
	return states[len(states)-1]
}

type transcriptRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *transcriptRecorder) record(t domain.Transcript) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, t.Text)
}

func (r *transcriptRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}
