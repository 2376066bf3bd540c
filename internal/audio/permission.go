package audio

import (
	"context"
	"fmt"
	"os/exec"

	"ablevoice/internal/domain"
	"ablevoice/internal/ports"
)

// PermissionProbe grants microphone access when the recorder can be run.
// Desktop platforms have no consent prompt to drive.
type PermissionProbe struct {
	command  string
	lookPath func(file string) (string, error)
}

func NewPermissionProbe(command string) *PermissionProbe {
	if command == "" {
		command = "ffmpeg"
	}
	return &PermissionProbe{command: command, lookPath: exec.LookPath}
}

func (p *PermissionProbe) RequestMicrophone(ctx context.Context) (domain.Permission, error) {
	if err := ctx.Err(); err != nil {
		return domain.PermissionUnknown, err
	}
	if _, err := p.lookPath(p.command); err != nil {
		return domain.PermissionDenied, fmt.Errorf("%w: recorder %q: %v", ports.ErrMicrophoneUnavailable, p.command, err)
	}
	return domain.PermissionGranted, nil
}
