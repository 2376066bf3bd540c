// Package bridge drives speech capabilities that live in a browser
// frontend. Requests go out as named events through an Emitter and the
// frontend answers through the Handle*/Resolve* methods.
package bridge

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

// Events sent to the frontend.
const (
	EventRecognizerStart   = "ablevoice:recognizer:start"
	EventRecognizerStop    = "ablevoice:recognizer:stop"
	EventSpeak             = "ablevoice:speech:speak"
	EventSpeechCancel      = "ablevoice:speech:cancel"
	EventPermissionRequest = "ablevoice:permission:request"
)

// Events received from the frontend.
const (
	EventRecognizer       = "ablevoice:recognizer:event"
	EventSpeechEnd        = "ablevoice:speech:end"
	EventPermissionResult = "ablevoice:permission:result"
	EventCapabilities     = "ablevoice:capabilities"
)

const defaultPermissionTimeout = 30 * time.Second

var (
	ErrPermissionDenied      = fmt.Errorf("bridge: %w", ports.ErrPermissionDenied)
	ErrMicrophoneUnavailable = fmt.Errorf("bridge: %w", ports.ErrMicrophoneUnavailable)
	ErrUnsupported           = errors.New("bridge: capability not available in frontend")
	ErrHandleStopped         = errors.New("bridge: recognition handle already stopped")
)

// Emitter delivers an event to the frontend.
type Emitter interface {
	Emit(event string, payload any)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event string, payload any)

func (f EmitterFunc) Emit(event string, payload any) { f(event, payload) }

// Capabilities is what the frontend reports once it has loaded.
type Capabilities struct {
	Recognition bool     `json:"recognition"`
	Synthesis   bool     `json:"synthesis"`
	Voices      []string `json:"voices"`
}

// RecognizerStart asks the frontend to open a recognition handle.
type RecognizerStart struct {
	HandleID       string `json:"handleId"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interimResults"`
	Language       string `json:"language"`
}

// HandleRef names a recognition handle.
type HandleRef struct {
	HandleID string `json:"handleId"`
}

// RecognizerEvent is a result, error or end reported for one handle.
type RecognizerEvent struct {
	HandleID string `json:"handleId"`
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// SynthesisEnd reports that an utterance finished or failed.
type SynthesisEnd struct {
	UtteranceID string `json:"utteranceId"`
	Error       string `json:"error,omitempty"`
}

// PermissionRequest asks the frontend to prompt for the microphone.
type PermissionRequest struct {
	RequestID string `json:"requestId"`
}

// PermissionResult answers a PermissionRequest. Reason is "denied" or
// "unavailable" when State is not granted.
type PermissionResult struct {
	RequestID string `json:"requestId"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type Option func(*Bridge)

// WithPermissionTimeout bounds how long RequestMicrophone waits for the
// frontend to answer.
func WithPermissionTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.permissionTimeout = d
		}
	}
}

// Bridge implements ports.PermissionRequester and hands out the
// recognizer and synthesizer halves.
type Bridge struct {
	emitter           Emitter
	logger            *slog.Logger
	permissionTimeout time.Duration

	mu      sync.Mutex
	caps    Capabilities
	handles map[string]*handle
	pending map[string]chan PermissionResult
	onEnd   func(utteranceID string, err error)
}

func New(emitter Emitter, logger *slog.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		emitter:           emitter,
		logger:            logging.Component(logger, "bridge"),
		permissionTimeout: defaultPermissionTimeout,
		handles:           make(map[string]*handle),
		pending:           make(map[string]chan PermissionResult),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Recognizer() ports.Recognizer {
	return recognizer{b: b}
}

func (b *Bridge) Synthesizer() ports.Synthesizer {
	return synthesizer{b: b}
}

func (b *Bridge) SetCapabilities(caps Capabilities) {
	caps.Voices = cleanVoices(caps.Voices)
	b.mu.Lock()
	b.caps = caps
	b.mu.Unlock()
	b.logger.Info("frontend capabilities", "recognition", caps.Recognition, "synthesis", caps.Synthesis, "voices", len(caps.Voices))
}

func (b *Bridge) Capabilities() Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	caps := b.caps
	caps.Voices = append([]string(nil), b.caps.Voices...)
	return caps
}

func (b *Bridge) RequestMicrophone(ctx context.Context) (domain.Permission, error) {
	id := uuid.NewString()
	result := make(chan PermissionResult, 1)

	b.mu.Lock()
	b.pending[id] = result
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	b.emitter.Emit(EventPermissionRequest, PermissionRequest{RequestID: id})

	timer := time.NewTimer(b.permissionTimeout)
	defer timer.Stop()

	select {
	case res := <-result:
		return permissionOutcome(res)
	case <-ctx.Done():
		return domain.PermissionUnknown, ctx.Err()
	case <-timer.C:
		return domain.PermissionUnknown, fmt.Errorf("bridge: no permission answer within %s", b.permissionTimeout)
	}
}

// ResolvePermission delivers the frontend's answer. It reports false for
// requests that are unknown or no longer waiting.
func (b *Bridge) ResolvePermission(res PermissionResult) bool {
	b.mu.Lock()
	ch, ok := b.pending[res.RequestID]
	delete(b.pending, res.RequestID)
	b.mu.Unlock()
	if !ok {
		return false
	}
	ch <- res
	return true
}

func permissionOutcome(res PermissionResult) (domain.Permission, error) {
	switch strings.ToLower(res.State) {
	case string(domain.PermissionGranted):
		return domain.PermissionGranted, nil
	case string(domain.PermissionDenied):
		cause := ErrPermissionDenied
		if strings.EqualFold(res.Reason, "unavailable") {
			cause = ErrMicrophoneUnavailable
		}
		if res.Detail != "" {
			return domain.PermissionDenied, fmt.Errorf("%w: %s", cause, res.Detail)
		}
		return domain.PermissionDenied, cause
	default:
		return domain.PermissionUnknown, fmt.Errorf("bridge: unknown permission state %q", res.State)
	}
}

func cleanVoices(voices []string) []string {
	out := make([]string, 0, len(voices))
	for _, v := range voices {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
