package audio

import (
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"ablevoice/internal/domain"
	"ablevoice/internal/logging"
)

// CommandSynthesizer speaks each utterance by running a TTS command
// (espeak-ng, espeak or say). Cancel kills the running process.
type CommandSynthesizer struct {
	command   string
	supported bool
	logger    *slog.Logger

	mu      sync.Mutex
	current *ttsProcess
	onEnd   func(utteranceID string, err error)
}

type ttsProcess struct {
	id        string
	cmd       *exec.Cmd
	cancelled bool
}

func NewCommandSynthesizer(command string, logger *slog.Logger) *CommandSynthesizer {
	if command == "" {
		command = "espeak-ng"
	}
	_, err := exec.LookPath(command)
	return &CommandSynthesizer{
		command:   command,
		supported: err == nil,
		logger:    logging.Component(logger, "tts"),
	}
}

func (s *CommandSynthesizer) Supported() bool {
	return s.supported
}

// Voices is empty; the command's default voice is used unless a voice is
// named explicitly.
func (s *CommandSynthesizer) Voices() []string {
	return nil
}

func (s *CommandSynthesizer) OnEnd(fn func(utteranceID string, err error)) {
	s.mu.Lock()
	s.onEnd = fn
	s.mu.Unlock()
}

func (s *CommandSynthesizer) Speak(u domain.SpeechUtterance) error {
	cmd := exec.Command(s.command, ttsArgs(s.command, u)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start speech command: %w", err)
	}
	process := &ttsProcess{id: u.ID, cmd: cmd}

	s.mu.Lock()
	previous := s.current
	s.current = process
	if previous != nil {
		previous.cancelled = true
	}
	s.mu.Unlock()
	kill(previous)

	go s.wait(process, &stderr)
	return nil
}

// Cancel silences the running utterance. Its end is not reported.
func (s *CommandSynthesizer) Cancel() {
	s.mu.Lock()
	process := s.current
	s.current = nil
	if process != nil {
		process.cancelled = true
	}
	s.mu.Unlock()
	kill(process)
}

func (s *CommandSynthesizer) wait(process *ttsProcess, stderr *bytes.Buffer) {
	err := process.cmd.Wait()

	s.mu.Lock()
	if s.current == process {
		s.current = nil
	}
	cancelled := process.cancelled
	onEnd := s.onEnd
	s.mu.Unlock()

	if cancelled {
		return
	}
	if err != nil {
		err = fmt.Errorf("speech command failed: %w: %s", err, trimOutput(stderr.String()))
		s.logger.Warn("speech command failed", "utterance", process.id, "error", err)
	}
	if onEnd != nil {
		onEnd(process.id, err)
	}
}

func kill(process *ttsProcess) {
	if process == nil || process.cmd.Process == nil {
		return
	}
	_ = process.cmd.Process.Kill()
}

// ttsArgs maps rate, pitch and volume onto the flags of the known engines.
func ttsArgs(command string, u domain.SpeechUtterance) []string {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	pitch := u.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	volume := u.Volume
	if volume <= 0 || volume > 1 {
		volume = 1
	}

	switch filepath.Base(command) {
	case "say":
		args := []string{"-r", strconv.Itoa(int(175 * rate))}
		if u.Voice != "" {
			args = append(args, "-v", u.Voice)
		}
		return append(args, spokenText(u.Text))
	default:
		// espeak and espeak-ng: words per minute, pitch 0-99, amplitude 0-200
		args := []string{
			"-s", strconv.Itoa(int(175 * rate)),
			"-p", strconv.Itoa(clamp(int(50*pitch), 0, 99)),
			"-a", strconv.Itoa(clamp(int(100*volume), 0, 200)),
		}
		if u.Voice != "" {
			args = append(args, "-v", u.Voice)
		}
		return append(args, spokenText(u.Text))
	}
}

// spokenText keeps text from being parsed as a flag.
func spokenText(text string) string {
	return strings.TrimLeft(strings.TrimSpace(text), "-")
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
