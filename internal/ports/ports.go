package ports

import (
	"context"
	"io"
	"time"

	"ablevoice/internal/domain"
)

// RecognizerConfig describes how a recognition handle should listen.
type RecognizerConfig struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// RecognitionHandle is one native speech-to-text session.
type RecognitionHandle interface {
	ID() string
	Start() error
	Stop() error
	OnResult(fn func(text string))
	OnError(fn func(kind domain.RecognitionErrorKind, detail string))
	OnEnd(fn func())
}

// Recognizer allocates recognition handles.
type Recognizer interface {
	Supported() bool
	NewHandle(cfg RecognizerConfig) (RecognitionHandle, error)
}

// PermissionRequester asks the platform for microphone access.
type PermissionRequester interface {
	RequestMicrophone(ctx context.Context) (domain.Permission, error)
}

// Synthesizer speaks utterances through the platform voice.
type Synthesizer interface {
	Supported() bool
	Voices() []string
	Speak(utterance domain.SpeechUtterance) error
	Cancel()
	OnEnd(fn func(utteranceID string, err error))
}

// Navigator abstracts the application router.
type Navigator interface {
	GoTo(path string)
}

// Notifier shows visual notifications.
type Notifier interface {
	Notify(n domain.Notification)
}

// EventSink emits voice session state to the UI.
type EventSink interface {
	CaptureStateChanged(session domain.CaptureSession, reason domain.CaptureReason)
	TranscriptShown(t domain.Transcript)
	TranscriptCleared()
	SpeakingChanged(speaking bool)
	SessionError(code domain.ErrorCode, detail string)
}

// UI bundles every capability the host application provides.
type UI interface {
	EventSink
	Notifier
	Navigator
}

// RulesEngine rewrites commands using deterministic alias rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Timer is a pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}
