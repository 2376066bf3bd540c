package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ablevoice/internal/domain"
	"ablevoice/internal/logging"
	"ablevoice/internal/ports"
)

var (
	ErrCapabilityUnsupported = errors.New("speech recognition is not supported")
	ErrPermissionRequired    = errors.New("microphone permission is required")
)

// CaptureLoop turns a recognizer into a restart-resilient transcript stream.
// It owns at most one native handle at a time; every callback is checked
// against the active handle so events from torn-down handles are dropped.
type CaptureLoop struct {
	recognizer ports.Recognizer
	permission ports.PermissionRequester
	events     ports.EventSink
	notifier   ports.Notifier
	clock      ports.Clock
	cfg        CaptureConfig
	logger     *slog.Logger

	permMu sync.Mutex

	mu                  sync.Mutex
	status              domain.CaptureStatus
	mode                domain.CaptureMode
	perm                domain.Permission
	retryCount          int
	lastError           domain.RecognitionErrorKind
	active              *captureHandle
	pending             ports.Timer
	generation          uint64
	unsupportedReported bool

	transcripts listenerSet[domain.Transcript]
	states      listenerSet[stateChange]
}

func NewCaptureLoop(
	recognizer ports.Recognizer,
	permission ports.PermissionRequester,
	events ports.EventSink,
	notifier ports.Notifier,
	clock ports.Clock,
	cfg CaptureConfig,
	logger *slog.Logger,
) *CaptureLoop {
	if cfg.Mode == "" {
		cfg.Mode = domain.CaptureContinuous
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.RestartDelay < 0 {
		cfg.RestartDelay = 100 * time.Millisecond
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 2
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &CaptureLoop{
		recognizer: recognizer,
		permission: permission,
		events:     events,
		notifier:   notifier,
		clock:      clock,
		cfg:        cfg,
		logger:     logging.Component(logger, "capture"),
		status:     domain.CaptureIdle,
		mode:       cfg.Mode,
		perm:       domain.PermissionUnknown,
	}
}

// Subscribe registers fn for every recognized transcript.
func (l *CaptureLoop) Subscribe(fn func(domain.Transcript)) func() {
	return l.transcripts.add(fn)
}

// OnStateChange registers fn for capture transitions.
func (l *CaptureLoop) OnStateChange(fn func(domain.CaptureSession, domain.CaptureReason)) func() {
	return l.states.add(func(change stateChange) { fn(change.session, change.reason) })
}

// Session returns a snapshot of the loop.
func (l *CaptureLoop) Session() domain.CaptureSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Listening reports whether a handle is capturing right now.
func (l *CaptureLoop) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status == domain.CaptureListening
}

// Supported reports whether the platform can recognize speech at all.
func (l *CaptureLoop) Supported() bool {
	return l.recognizer != nil && l.recognizer.Supported()
}

// CheckPermission requests microphone access once and caches the answer.
func (l *CaptureLoop) CheckPermission(ctx context.Context) domain.Permission {
	l.permMu.Lock()
	defer l.permMu.Unlock()

	l.mu.Lock()
	cached := l.perm
	l.mu.Unlock()
	if cached != domain.PermissionUnknown {
		return cached
	}
	return l.requestPermission(ctx)
}

// RetryPermission forgets a cached answer and asks again.
func (l *CaptureLoop) RetryPermission(ctx context.Context) domain.Permission {
	l.permMu.Lock()
	defer l.permMu.Unlock()

	l.mu.Lock()
	l.perm = domain.PermissionUnknown
	l.mu.Unlock()
	return l.requestPermission(ctx)
}

func (l *CaptureLoop) requestPermission(ctx context.Context) domain.Permission {
	l.mu.Lock()
	previous := l.status
	l.status = domain.CaptureRequesting
	requesting := l.snapshotLocked()
	l.mu.Unlock()
	l.emit(requesting, domain.CaptureReasonPermissionRequested)

	perm, err := l.permission.RequestMicrophone(ctx)
	if ctx.Err() != nil {
		l.mu.Lock()
		l.status = previous
		restored := l.snapshotLocked()
		l.mu.Unlock()
		l.emit(restored, domain.CaptureReasonStopped)
		return domain.PermissionUnknown
	}
	if err != nil || perm != domain.PermissionGranted {
		perm = domain.PermissionDenied
	}

	l.mu.Lock()
	l.perm = perm
	reason := domain.CaptureReasonPermissionGranted
	if perm == domain.PermissionGranted {
		l.status = domain.CaptureIdle
	} else {
		l.status = domain.CaptureDenied
		reason = domain.CaptureReasonPermissionDenied
	}
	resolved := l.snapshotLocked()
	l.mu.Unlock()
	l.emit(resolved, reason)

	if perm == domain.PermissionDenied {
		message := "Microphone not available. Please check your device settings"
		if err == nil || errors.Is(err, ports.ErrPermissionDenied) {
			message = "Please allow microphone access in your browser settings"
		}
		detail := message
		if err != nil {
			detail = err.Error()
		}
		l.logger.Warn("microphone permission denied", "error", err)
		l.notifier.Notify(domain.Notification{Kind: domain.NotifyError, Message: message})
		l.events.SessionError(domain.ErrorCodePermission, detail)
	}
	return perm
}

// Start begins capture in the configured mode.
func (l *CaptureLoop) Start() error {
	return l.StartMode(l.cfg.Mode)
}

// StartMode tears down any existing handle and begins a new capture session.
// Calling it while listening restarts cleanly.
func (l *CaptureLoop) StartMode(mode domain.CaptureMode) error {
	if !l.Supported() {
		l.mu.Lock()
		report := !l.unsupportedReported
		l.unsupportedReported = true
		l.status = domain.CaptureUnsupported
		session := l.snapshotLocked()
		l.mu.Unlock()

		l.emit(session, domain.CaptureReasonUnsupported)
		if report {
			l.notifier.Notify(domain.Notification{Kind: domain.NotifyError, Message: "Speech recognition is not supported in your browser"})
			l.events.SessionError(domain.ErrorCodeUnsupported, ErrCapabilityUnsupported.Error())
		}
		return ErrCapabilityUnsupported
	}

	l.mu.Lock()
	if l.perm != domain.PermissionGranted {
		l.mu.Unlock()
		l.notifier.Notify(domain.Notification{Kind: domain.NotifyError, Message: "Microphone access is required for voice commands"})
		return ErrPermissionRequired
	}
	wasRunning := l.status == domain.CaptureListening || l.status == domain.CaptureRestarting
	previous := l.detachLocked()
	l.mode = mode
	l.retryCount = 0
	l.lastError = ""
	gen := l.generation
	l.mu.Unlock()

	l.teardown(previous)

	reason := domain.CaptureReasonStarted
	if previous != nil || wasRunning {
		reason = domain.CaptureReasonRestarted
	}
	return l.open(gen, mode, reason)
}

// Stop tears down the handle and cancels any pending restart.
// It is safe to call from any state.
func (l *CaptureLoop) Stop() {
	l.mu.Lock()
	wasRunning := l.status == domain.CaptureListening || l.status == domain.CaptureRestarting
	previous := l.detachLocked()
	if l.status != domain.CaptureUnsupported {
		l.status = domain.CaptureIdle
	}
	session := l.snapshotLocked()
	l.mu.Unlock()

	l.teardown(previous)
	if previous != nil || wasRunning {
		l.logger.Debug("capture stopped")
		l.emit(session, domain.CaptureReasonStopped)
	}
}

func (l *CaptureLoop) open(gen uint64, mode domain.CaptureMode, reason domain.CaptureReason) error {
	native, err := l.recognizer.NewHandle(ports.RecognizerConfig{
		Continuous:     mode == domain.CaptureContinuous,
		InterimResults: false,
		Language:       l.cfg.Language,
	})
	if err != nil {
		return l.failStart(nil, err)
	}

	id := native.ID()
	if id == "" {
		id = uuid.NewString()
	}
	h := &captureHandle{id: id, native: native, mode: mode}
	native.OnResult(func(text string) { l.handleResult(h, text) })
	native.OnError(func(kind domain.RecognitionErrorKind, detail string) { l.handleError(h, kind, detail) })
	native.OnEnd(func() { l.handleEnd(h) })

	l.mu.Lock()
	if l.generation != gen {
		// stopped or restarted while the handle was being allocated
		l.mu.Unlock()
		_ = native.Stop()
		return nil
	}
	l.active = h
	l.status = domain.CaptureListening
	if mode == domain.CaptureSingleShot && l.cfg.NoSpeechTimeout > 0 {
		h.timeout = l.clock.AfterFunc(l.cfg.NoSpeechTimeout, func() { l.handleTimeout(h) })
	}
	session := l.snapshotLocked()
	l.mu.Unlock()

	l.logger.Debug("capture handle starting", "handle", h.id, "mode", mode, "reason", reason)
	l.emit(session, reason)

	if err := native.Start(); err != nil {
		return l.failStart(h, err)
	}
	return nil
}

func (l *CaptureLoop) failStart(h *captureHandle, cause error) error {
	l.mu.Lock()
	if h != nil && l.active != h {
		// stopped or replaced before the engine started
		l.mu.Unlock()
		l.logger.Debug("abandoned capture handle start", "handle", h.id, "error", cause)
		return nil
	}
	l.detachLocked()
	l.status = domain.CaptureIdle
	session := l.snapshotLocked()
	l.mu.Unlock()

	l.logger.Warn("speech recognition failed to start", "error", cause)
	l.emit(session, domain.CaptureReasonStartFailed)
	l.notifier.Notify(domain.Notification{Kind: domain.NotifyError, Message: "Failed to start speech recognition"})
	l.events.SessionError(domain.ErrorCodeRecognition, cause.Error())
	return fmt.Errorf("start speech recognition: %w", cause)
}

func (l *CaptureLoop) handleResult(h *captureHandle, text string) {
	text = strings.TrimSpace(text)

	l.mu.Lock()
	if l.active != h || text == "" {
		l.mu.Unlock()
		return
	}
	transcript := domain.Transcript{Text: text, CapturedAt: l.clock.Now(), Mode: h.mode}
	l.retryCount = 0
	l.lastError = ""

	var ended *domain.CaptureSession
	if h.mode == domain.CaptureSingleShot {
		l.detachLocked()
		l.status = domain.CaptureIdle
		session := l.snapshotLocked()
		ended = &session
	}
	l.mu.Unlock()

	l.logger.Debug("transcript captured", "handle", h.id, "chars", len(text))
	if ended != nil {
		l.teardown(h)
	}
	l.transcripts.emit(transcript)
	if ended != nil {
		l.emit(*ended, domain.CaptureReasonTranscript)
	}
}

func (l *CaptureLoop) handleError(h *captureHandle, kind domain.RecognitionErrorKind, detail string) {
	l.mu.Lock()
	if l.active != h {
		l.mu.Unlock()
		return
	}
	l.lastError = kind

	switch {
	case kind.Fatal():
		l.detachLocked()
		l.status = domain.CaptureDenied
		if kind == domain.RecognitionNotAllowed {
			l.perm = domain.PermissionDenied
		}
		session := l.snapshotLocked()
		l.mu.Unlock()

		l.teardown(h)
		l.logger.Warn("fatal recognition error", "handle", h.id, "kind", kind, "detail", detail)
		l.emit(session, domain.CaptureReasonFatalError)
		l.notifier.Notify(domain.Notification{Kind: domain.NotifyError, Message: fatalMessage(kind)})
		l.events.SessionError(domain.ErrorCodeRecognition, recognitionDetail(kind, detail))

	case h.mode == domain.CaptureContinuous:
		reason := domain.CaptureReasonNoSpeech
		if kind != domain.RecognitionNoSpeech {
			reason = domain.CaptureReasonTransientError
		}
		l.scheduleRestartLocked(l.cfg.RestartDelay)
		session := l.snapshotLocked()
		l.mu.Unlock()

		l.teardown(h)
		if reason == domain.CaptureReasonTransientError {
			l.logger.Warn("transient recognition error, restarting", "handle", h.id, "kind", kind, "detail", detail)
		}
		l.emit(session, reason)

	case kind == domain.RecognitionNoSpeech && l.retryCount < l.cfg.MaxRetries:
		l.retryCount++
		attempt := l.retryCount + 1
		total := l.cfg.MaxRetries + 1
		l.scheduleRestartLocked(l.cfg.RetryDelay)
		session := l.snapshotLocked()
		l.mu.Unlock()

		l.teardown(h)
		l.emit(session, domain.CaptureReasonNoSpeech)
		l.notifier.Notify(domain.Notification{
			Kind:    domain.NotifyInfo,
			Message: fmt.Sprintf("Listening... (Attempt %d/%d)", attempt, total),
		})

	default:
		l.detachLocked()
		l.status = domain.CaptureIdle
		session := l.snapshotLocked()
		l.mu.Unlock()

		l.teardown(h)
		if kind == domain.RecognitionNoSpeech {
			l.emit(session, domain.CaptureReasonRetriesExhausted)
			l.notifier.Notify(domain.Notification{Kind: domain.NotifyError, Message: "No speech detected. Please try speaking again"})
			l.events.SessionError(domain.ErrorCodeNoSpeech, "no speech detected")
			return
		}
		l.emit(session, domain.CaptureReasonTransientError)
		l.notifier.Notify(domain.Notification{Kind: domain.NotifyError, Message: fmt.Sprintf("Speech recognition error: %s", kind)})
		l.events.SessionError(domain.ErrorCodeRecognition, recognitionDetail(kind, detail))
	}
}

func (l *CaptureLoop) handleEnd(h *captureHandle) {
	l.mu.Lock()
	if l.active != h {
		l.mu.Unlock()
		return
	}

	if h.mode == domain.CaptureContinuous {
		l.scheduleRestartLocked(l.cfg.RestartDelay)
		session := l.snapshotLocked()
		l.mu.Unlock()
		l.emit(session, domain.CaptureReasonNaturalEnd)
		return
	}

	l.detachLocked()
	l.status = domain.CaptureIdle
	session := l.snapshotLocked()
	l.mu.Unlock()
	l.emit(session, domain.CaptureReasonNaturalEnd)
}

func (l *CaptureLoop) handleTimeout(h *captureHandle) {
	l.mu.Lock()
	if l.active != h {
		l.mu.Unlock()
		return
	}
	l.detachLocked()
	l.status = domain.CaptureIdle
	l.lastError = domain.RecognitionNoSpeech
	session := l.snapshotLocked()
	l.mu.Unlock()

	l.teardown(h)
	l.emit(session, domain.CaptureReasonTimeout)
	l.notifier.Notify(domain.Notification{Kind: domain.NotifyInfo, Message: "No speech detected. Please try speaking again"})
	l.events.SessionError(domain.ErrorCodeNoSpeech, "no speech detected before timeout")
}

// scheduleRestartLocked detaches the active handle and arms a restart that
// is abandoned if Stop or Start runs first.
func (l *CaptureLoop) scheduleRestartLocked(delay time.Duration) {
	l.detachLocked()
	l.status = domain.CaptureRestarting
	gen := l.generation
	mode := l.mode
	l.pending = l.clock.AfterFunc(delay, func() { l.restart(gen, mode) })
}

func (l *CaptureLoop) restart(gen uint64, mode domain.CaptureMode) {
	l.mu.Lock()
	if l.generation != gen || l.status != domain.CaptureRestarting {
		l.mu.Unlock()
		return
	}
	l.pending = nil
	l.mu.Unlock()

	if err := l.open(gen, mode, domain.CaptureReasonRestarted); err != nil {
		l.logger.Warn("capture restart failed", "error", err)
	}
}

// detachLocked invalidates pending restarts and releases the active handle.
// The caller tears the returned handle down after unlocking.
func (l *CaptureLoop) detachLocked() *captureHandle {
	l.generation++
	if l.pending != nil {
		l.pending.Stop()
		l.pending = nil
	}
	h := l.active
	l.active = nil
	if h != nil && h.timeout != nil {
		h.timeout.Stop()
		h.timeout = nil
	}
	return h
}

func (l *CaptureLoop) teardown(h *captureHandle) {
	if h == nil {
		return
	}
	if err := h.native.Stop(); err != nil {
		l.logger.Debug("recognition handle stop failed", "handle", h.id, "error", err)
	}
}

func (l *CaptureLoop) snapshotLocked() domain.CaptureSession {
	session := domain.CaptureSession{
		Status:     l.status,
		Mode:       l.mode,
		Permission: l.perm,
		RetryCount: l.retryCount,
		LastError:  l.lastError,
	}
	if l.active != nil {
		session.HandleID = l.active.id
	}
	return session
}

func (l *CaptureLoop) emit(session domain.CaptureSession, reason domain.CaptureReason) {
	l.events.CaptureStateChanged(session, reason)
	l.states.emit(stateChange{session: session, reason: reason})
}

func fatalMessage(kind domain.RecognitionErrorKind) string {
	switch kind {
	case domain.RecognitionAudioCapture:
		return "No microphone detected. Please check your device"
	case domain.RecognitionNotAllowed:
		return "Microphone access denied. Please allow access in settings"
	default:
		return fmt.Sprintf("Speech recognition error: %s", kind)
	}
}

func recognitionDetail(kind domain.RecognitionErrorKind, detail string) string {
	if strings.TrimSpace(detail) == "" {
		return string(kind)
	}
	return fmt.Sprintf("%s: %s", kind, detail)
}
