package usecase

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ablevoice/internal/domain"
	"ablevoice/internal/logging"
	"ablevoice/internal/ports"
)

// OutputConfig controls the voice used for every utterance.
type OutputConfig struct {
	VoicePreferences []string
	Rate             float64
	Pitch            float64
	Volume           float64
}

type activeUtterance struct {
	id   string
	done func(err error)
}

// OutputCoordinator serializes all spoken output through one logical voice.
// At most one utterance is active; a new one cancels the previous.
type OutputCoordinator struct {
	synth  ports.Synthesizer
	events ports.EventSink
	allow  func() bool
	cfg    OutputConfig
	logger *slog.Logger

	// engine is held across each cancel and speak pair so engine calls
	// reach the synthesizer in the order utterances were superseded.
	engine sync.Mutex

	mu       sync.Mutex
	active   *activeUtterance
	speaking bool
}

// NewOutputCoordinator wires the coordinator to synth. allow is consulted on
// every Speak; a nil allow permits speech unconditionally.
func NewOutputCoordinator(
	synth ports.Synthesizer,
	events ports.EventSink,
	allow func() bool,
	cfg OutputConfig,
	logger *slog.Logger,
) *OutputCoordinator {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Pitch <= 0 {
		cfg.Pitch = 1
	}
	if cfg.Volume <= 0 || cfg.Volume > 1 {
		cfg.Volume = 1
	}

	c := &OutputCoordinator{
		synth:  synth,
		events: events,
		allow:  allow,
		cfg:    cfg,
		logger: logging.Component(logger, "output"),
	}
	if synth != nil {
		synth.OnEnd(c.handleEnd)
	}
	return c
}

// Speak cancels any in-flight utterance and speaks text.
// It returns the utterance ID, or "" when nothing was spoken.
func (c *OutputCoordinator) Speak(text string) string {
	return c.SpeakThen(text, nil)
}

// SpeakThen is Speak with a completion callback. done runs once when the
// utterance ends naturally or fails; it never runs for an utterance that was
// cancelled or superseded.
func (c *OutputCoordinator) SpeakThen(text string, done func(err error)) string {
	text = strings.TrimSpace(text)
	if text == "" || c.synth == nil || !c.synth.Supported() {
		return ""
	}
	if c.allow != nil && !c.allow() {
		c.logger.Debug("speech suppressed by mode", "chars", len(text))
		return ""
	}

	next := &activeUtterance{id: uuid.NewString(), done: done}
	err := c.start(next, text)
	if err == nil {
		return next.id
	}

	c.logger.Warn("speech engine failed to speak", "utterance", next.id, "error", err)
	if c.release(next.id) {
		c.setSpeaking(false)
		c.events.SessionError(domain.ErrorCodeOutput, err.Error())
		if done != nil {
			done(err)
		}
	}
	return ""
}

// start makes next the active utterance and hands it to the engine.
func (c *OutputCoordinator) start(next *activeUtterance, text string) error {
	c.engine.Lock()
	defer c.engine.Unlock()

	c.mu.Lock()
	previous := c.active
	c.active = next
	c.mu.Unlock()

	if previous != nil {
		c.synth.Cancel()
	}

	utterance := domain.SpeechUtterance{
		ID:     next.id,
		Text:   text,
		Voice:  c.selectVoice(),
		Rate:   c.cfg.Rate,
		Pitch:  c.cfg.Pitch,
		Volume: c.cfg.Volume,
	}

	c.setSpeaking(true)
	return c.synth.Speak(utterance)
}

// Cancel silences the in-flight utterance. It is a no-op when idle.
func (c *OutputCoordinator) Cancel() {
	c.engine.Lock()
	defer c.engine.Unlock()

	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()

	if active == nil {
		return
	}
	c.synth.Cancel()
	c.setSpeaking(false)
}

// Speaking reports whether an utterance is active.
func (c *OutputCoordinator) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

func (c *OutputCoordinator) handleEnd(utteranceID string, err error) {
	c.mu.Lock()
	active := c.active
	if active == nil || active.id != utteranceID {
		c.mu.Unlock()
		return
	}
	c.active = nil
	c.mu.Unlock()

	c.setSpeaking(false)
	if err != nil {
		c.logger.Warn("utterance failed", "utterance", utteranceID, "error", err)
		c.events.SessionError(domain.ErrorCodeOutput, err.Error())
	}
	if active.done != nil {
		active.done(err)
	}
}

func (c *OutputCoordinator) release(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.id != id {
		return false
	}
	c.active = nil
	return true
}

func (c *OutputCoordinator) setSpeaking(speaking bool) {
	c.mu.Lock()
	if speaking == c.speaking {
		c.mu.Unlock()
		return
	}
	// a superseded utterance must not clear the state of its successor
	if !speaking && c.active != nil {
		c.mu.Unlock()
		return
	}
	c.speaking = speaking
	c.mu.Unlock()

	c.events.SpeakingChanged(speaking)
}

// selectVoice walks the ranked preferences against the platform voices and
// returns "" for the platform default.
func (c *OutputCoordinator) selectVoice() string {
	available := c.synth.Voices()
	if len(available) == 0 {
		return ""
	}
	for _, preferred := range c.cfg.VoicePreferences {
		want := strings.ToLower(strings.TrimSpace(preferred))
		if want == "" {
			continue
		}
		for _, voice := range available {
			if strings.EqualFold(voice, want) {
				return voice
			}
		}
		for _, voice := range available {
			if strings.Contains(strings.ToLower(voice), want) {
				return voice
			}
		}
	}
	return ""
}
