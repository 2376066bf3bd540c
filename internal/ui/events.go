// Package ui turns session callbacks into named events for a frontend.
// The webview app and the web bridge both deliver these events; only the
// transport differs.
package ui

import (
	"sync"

	"ablevoice/internal/bus"
	"ablevoice/internal/domain"
)

// Events emitted to the frontend.
const (
	EventCaptureState      = "ablevoice:capture"
	EventTranscript        = "ablevoice:transcript"
	EventTranscriptCleared = "ablevoice:transcript:cleared"
	EventSpeaking          = "ablevoice:speaking"
	EventError             = "ablevoice:error"
	EventNotify            = "ablevoice:notify"
	EventNavigate          = "ablevoice:navigate"
	EventCommand           = "ablevoice:command"
)

// EventPage is sent by the frontend when a page starts or stops handling
// voice commands.
const EventPage = "ablevoice:page"

// Emitter delivers an event to the frontend.
type Emitter interface {
	Emit(event string, payload any)
}

// Fanout emits every event to each emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(event string, payload any) {
	for _, e := range f {
		if e != nil {
			e.Emit(event, payload)
		}
	}
}

type CaptureState struct {
	Session domain.CaptureSession `json:"session"`
	Reason  domain.CaptureReason  `json:"reason"`
}

type SessionError struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Detail  string           `json:"detail"`
}

type Speaking struct {
	Speaking bool `json:"speaking"`
}

type Navigate struct {
	Path string `json:"path"`
}

// PageState reports whether a page is mounted that reacts to commands.
type PageState struct {
	Listening bool `json:"listening"`
}

// Sink implements ports.UI by emitting events.
type Sink struct {
	emitter Emitter
}

func NewSink(emitter Emitter) *Sink {
	return &Sink{emitter: emitter}
}

func (s *Sink) CaptureStateChanged(session domain.CaptureSession, reason domain.CaptureReason) {
	s.emitter.Emit(EventCaptureState, CaptureState{Session: session, Reason: reason})
}

func (s *Sink) TranscriptShown(t domain.Transcript) {
	s.emitter.Emit(EventTranscript, t)
}

func (s *Sink) TranscriptCleared() {
	s.emitter.Emit(EventTranscriptCleared, nil)
}

func (s *Sink) SpeakingChanged(speaking bool) {
	s.emitter.Emit(EventSpeaking, Speaking{Speaking: speaking})
}

func (s *Sink) SessionError(code domain.ErrorCode, detail string) {
	s.emitter.Emit(EventError, SessionError{Code: code, Message: ErrorMessage(code, detail), Detail: detail})
}

// ErrorMessage is the headline shown for a session error.
func ErrorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone permission required"
	case domain.ErrorCodeUnsupported:
		return "Voice commands are not supported here"
	case domain.ErrorCodeRecognition:
		return "Speech recognition error"
	case domain.ErrorCodeNoSpeech:
		return "No speech detected"
	case domain.ErrorCodeInterpretation:
		return "Command failed"
	case domain.ErrorCodeOutput:
		return "Speech output error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

func (s *Sink) Notify(n domain.Notification) {
	s.emitter.Emit(EventNotify, n)
}

func (s *Sink) GoTo(path string) {
	s.emitter.Emit(EventNavigate, Navigate{Path: path})
}

// Subscriber is the part of the command bus the relay needs.
type Subscriber interface {
	Subscribe(topic string, handler bus.Handler) func()
}

// CommandRelay forwards bus events to the frontend while at least one
// page is listening. With no page mounted the bus sees no subscriber,
// which is how the interpreter knows to answer help on its own.
type CommandRelay struct {
	topic   string
	emitter Emitter
	bus     Subscriber

	mu     sync.Mutex
	pages  int
	cancel func()
}

func NewCommandRelay(b Subscriber, emitter Emitter) *CommandRelay {
	return &CommandRelay{topic: bus.TopicVoiceCommand, emitter: emitter, bus: b}
}

// PageChanged counts mounted pages and subscribes on the first one.
func (r *CommandRelay) PageChanged(state PageState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state.Listening {
		r.pages++
		if r.pages == 1 {
			r.cancel = r.bus.Subscribe(r.topic, func(ev domain.CommandEvent) {
				r.emitter.Emit(EventCommand, ev)
			})
		}
		return
	}

	if r.pages == 0 {
		return
	}
	r.pages--
	if r.pages == 0 && r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Listening reports whether any page is mounted.
func (r *CommandRelay) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages > 0
}
