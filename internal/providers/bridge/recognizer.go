package bridge

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"ablevoice/internal/domain"
	"ablevoice/internal/ports"
)

// Recognizer event types.
const (
	RecognizerResult = "result"
	RecognizerError  = "error"
	RecognizerEnd    = "end"
)

type recognizer struct {
	b *Bridge
}

func (r recognizer) Supported() bool {
	return r.b.Capabilities().Recognition
}

func (r recognizer) NewHandle(cfg ports.RecognizerConfig) (ports.RecognitionHandle, error) {
	if !r.Supported() {
		return nil, ErrUnsupported
	}
	h := &handle{id: uuid.NewString(), b: r.b, cfg: cfg}
	r.b.mu.Lock()
	r.b.handles[h.id] = h
	r.b.mu.Unlock()
	return h, nil
}

// HandleRecognizerEvent routes a frontend event to its handle. Events for
// stopped or unknown handles are dropped and reported as false.
func (b *Bridge) HandleRecognizerEvent(ev RecognizerEvent) bool {
	b.mu.Lock()
	h, ok := b.handles[ev.HandleID]
	if ok && ev.Type == RecognizerEnd {
		delete(b.handles, ev.HandleID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}

	switch ev.Type {
	case RecognizerResult:
		h.mu.Lock()
		fn := h.onResult
		h.mu.Unlock()
		if fn != nil {
			fn(ev.Text)
		}
	case RecognizerError:
		h.mu.Lock()
		fn := h.onError
		h.mu.Unlock()
		if fn != nil {
			fn(domain.RecognitionErrorKind(ev.Error), ev.Detail)
		}
	case RecognizerEnd:
		h.mu.Lock()
		fn := h.onEnd
		h.mu.Unlock()
		if fn != nil {
			fn()
		}
	default:
		b.logger.Warn("unknown recognizer event", "handle", ev.HandleID, "type", ev.Type)
		return false
	}
	return true
}

type handle struct {
	id  string
	b   *Bridge
	cfg ports.RecognizerConfig

	// signal orders the start and stop requests sent for this handle.
	signal sync.Mutex

	mu       sync.Mutex
	started  bool
	onResult func(text string)
	onError  func(kind domain.RecognitionErrorKind, detail string)
	onEnd    func()
}

func (h *handle) ID() string { return h.id }

// Start asks the frontend to begin recognition. A handle that was
// stopped before it started is never announced.
func (h *handle) Start() error {
	h.signal.Lock()
	defer h.signal.Unlock()

	h.b.mu.Lock()
	_, live := h.b.handles[h.id]
	h.b.mu.Unlock()

	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return errors.New("bridge: recognition handle already started")
	}
	if !live {
		h.mu.Unlock()
		return ErrHandleStopped
	}
	h.started = true
	h.mu.Unlock()

	h.b.emitter.Emit(EventRecognizerStart, RecognizerStart{
		HandleID:       h.id,
		Continuous:     h.cfg.Continuous,
		InterimResults: h.cfg.InterimResults,
		Language:       h.cfg.Language,
	})
	return nil
}

// Stop forgets the handle before asking the frontend to abort it, so
// nothing it reports afterwards reaches the callbacks.
func (h *handle) Stop() error {
	h.signal.Lock()
	defer h.signal.Unlock()

	h.b.mu.Lock()
	_, live := h.b.handles[h.id]
	delete(h.b.handles, h.id)
	h.b.mu.Unlock()

	h.mu.Lock()
	started := h.started
	h.mu.Unlock()

	if live && started {
		h.b.emitter.Emit(EventRecognizerStop, HandleRef{HandleID: h.id})
	}
	return nil
}

func (h *handle) OnResult(fn func(text string)) {
	h.mu.Lock()
	h.onResult = fn
	h.mu.Unlock()
}

func (h *handle) OnError(fn func(kind domain.RecognitionErrorKind, detail string)) {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
}

func (h *handle) OnEnd(fn func()) {
	h.mu.Lock()
	h.onEnd = fn
	h.mu.Unlock()
}
