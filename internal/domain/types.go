package domain

import "time"

// AccessibilityMode selects how the user interacts with the application.
type AccessibilityMode string

const (
	ModeVoice AccessibilityMode = "voice"
	ModeDeaf  AccessibilityMode = "deaf"
	ModeMute  AccessibilityMode = "mute"
)

// ParseMode maps free text onto a known mode.
func ParseMode(value string) (AccessibilityMode, bool) {
	switch AccessibilityMode(value) {
	case ModeVoice, ModeDeaf, ModeMute:
		return AccessibilityMode(value), true
	default:
		return "", false
	}
}

// CaptureStatus models the listening lifecycle.
type CaptureStatus string

const (
	CaptureIdle        CaptureStatus = "idle"
	CaptureRequesting  CaptureStatus = "requesting"
	CaptureListening   CaptureStatus = "listening"
	CaptureRestarting  CaptureStatus = "restarting"
	CaptureDenied      CaptureStatus = "denied"
	CaptureUnsupported CaptureStatus = "unsupported"
)

// CaptureReason provides a structured reason for capture transitions.
type CaptureReason string

const (
	CaptureReasonPermissionRequested CaptureReason = "permission_requested"
	CaptureReasonPermissionGranted   CaptureReason = "permission_granted"
	CaptureReasonPermissionDenied    CaptureReason = "permission_denied"
	CaptureReasonUnsupported         CaptureReason = "unsupported"
	CaptureReasonStarted             CaptureReason = "started"
	CaptureReasonRestarted           CaptureReason = "restarted"
	CaptureReasonNaturalEnd          CaptureReason = "natural_end"
	CaptureReasonNoSpeech            CaptureReason = "no_speech"
	CaptureReasonTransientError      CaptureReason = "transient_error"
	CaptureReasonRetriesExhausted    CaptureReason = "retries_exhausted"
	CaptureReasonTimeout             CaptureReason = "timeout"
	CaptureReasonTranscript          CaptureReason = "transcript_captured"
	CaptureReasonFatalError          CaptureReason = "fatal_error"
	CaptureReasonStartFailed         CaptureReason = "start_failed"
	CaptureReasonStopped             CaptureReason = "stopped"
)

// CaptureMode selects the restart policy of a capture session.
type CaptureMode string

const (
	CaptureContinuous CaptureMode = "continuous"
	CaptureSingleShot CaptureMode = "single_shot"
)

// Permission is the cached microphone permission state.
type Permission string

const (
	PermissionUnknown Permission = "unknown"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// RecognitionErrorKind mirrors the error names reported by speech engines.
type RecognitionErrorKind string

const (
	RecognitionNoSpeech     RecognitionErrorKind = "no-speech"
	RecognitionAudioCapture RecognitionErrorKind = "audio-capture"
	RecognitionNotAllowed   RecognitionErrorKind = "not-allowed"
	RecognitionAborted      RecognitionErrorKind = "aborted"
	RecognitionNetwork      RecognitionErrorKind = "network"
)

// Fatal reports whether the error must stop the capture loop.
func (k RecognitionErrorKind) Fatal() bool {
	return k == RecognitionAudioCapture || k == RecognitionNotAllowed
}

// CaptureSession is a snapshot of the capture loop.
type CaptureSession struct {
	Status     CaptureStatus        `json:"status"`
	Mode       CaptureMode          `json:"mode"`
	Permission Permission           `json:"permission"`
	RetryCount int                  `json:"retryCount"`
	LastError  RecognitionErrorKind `json:"lastError,omitempty"`
	HandleID   string               `json:"handleId,omitempty"`
}

// Transcript is one recognized block of user speech.
type Transcript struct {
	Text       string      `json:"text"`
	CapturedAt time.Time   `json:"capturedAt"`
	Mode       CaptureMode `json:"mode"`
}

// SpeechUtterance is one synthesized speech request.
type SpeechUtterance struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Voice  string  `json:"voice,omitempty"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
}

// CommandEvent is delivered over the command bus.
type CommandEvent struct {
	Kind    string `json:"kind"`
	Command string `json:"command"`
	Payload any    `json:"payload,omitempty"`
}

// Command event kinds published by the interpreter.
const (
	EventHelp           = "help"
	EventAddToCart      = "add-to-cart"
	EventSearch         = "search"
	EventUpdateQuantity = "update-quantity"
	EventClearCart      = "clear-cart"
	EventSetCategory    = "set-category-filter"
	EventSetTab         = "set-tab"
	EventSetVegOnly     = "set-veg-only"
	EventShowDetails    = "show-details"
)

// MenuItem is a catalog entry that voice commands can refer to.
type MenuItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Veg      bool   `json:"veg"`
}

// AddToCart is the payload of EventAddToCart.
type AddToCart struct {
	Item     MenuItem `json:"item"`
	Quantity int      `json:"quantity"`
}

// UpdateQuantity is the payload of EventUpdateQuantity.
type UpdateQuantity struct {
	Item     MenuItem `json:"item"`
	Quantity int      `json:"quantity"`
}

// Search is the payload of EventSearch.
type Search struct {
	Term string `json:"term"`
}

// NotifyKind classifies visual notifications.
type NotifyKind string

const (
	NotifyInfo    NotifyKind = "info"
	NotifySuccess NotifyKind = "success"
	NotifyError   NotifyKind = "error"
)

// Notification is a toast shown alongside spoken feedback.
type Notification struct {
	Kind        NotifyKind    `json:"kind"`
	Message     string        `json:"message"`
	Description string        `json:"description,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// OutcomeKind classifies the result of interpreting one command.
type OutcomeKind string

const (
	OutcomeDropped    OutcomeKind = "dropped"
	OutcomeNavigation OutcomeKind = "navigation"
	OutcomeEvent      OutcomeKind = "event"
	OutcomeModeChange OutcomeKind = "mode_change"
	OutcomeFallback   OutcomeKind = "fallback"
)

// Outcome describes what the interpreter did with a command.
type Outcome struct {
	Kind    OutcomeKind       `json:"kind"`
	Command string            `json:"command"`
	Rule    string            `json:"rule,omitempty"`
	Route   string            `json:"route,omitempty"`
	Event   *CommandEvent     `json:"event,omitempty"`
	Mode    AccessibilityMode `json:"mode,omitempty"`
	Changed bool              `json:"changed,omitempty"`
	Spoken  string            `json:"spoken,omitempty"`
	Err     string            `json:"error,omitempty"`
}

// ErrorCode identifies user-visible failures.
type ErrorCode string

const (
	ErrorCodeStartup        ErrorCode = "startup"
	ErrorCodePermission     ErrorCode = "permission"
	ErrorCodeUnsupported    ErrorCode = "unsupported"
	ErrorCodeRecognition    ErrorCode = "recognition"
	ErrorCodeNoSpeech       ErrorCode = "no_speech"
	ErrorCodeInterpretation ErrorCode = "interpretation"
	ErrorCodeOutput         ErrorCode = "output"
)

// Status summarizes the voice session for the UI.
type Status struct {
	Mode       AccessibilityMode `json:"mode"`
	Capture    CaptureSession    `json:"capture"`
	Listening  bool              `json:"listening"`
	Speaking   bool              `json:"speaking"`
	Route      string            `json:"route"`
	Transcript string            `json:"transcript,omitempty"`
	Message    string            `json:"message,omitempty"`
}
