package ports

import "errors"

// Errors returned by PermissionRequester implementations.
var (
	ErrPermissionDenied      = errors.New("microphone permission denied")
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
)
