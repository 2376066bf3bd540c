package bridge

import (
	"errors"

	"ablevoice/internal/domain"
)

type synthesizer struct {
	b *Bridge
}

func (s synthesizer) Supported() bool {
	return s.b.Capabilities().Synthesis
}

func (s synthesizer) Voices() []string {
	return s.b.Capabilities().Voices
}

func (s synthesizer) Speak(u domain.SpeechUtterance) error {
	if !s.Supported() {
		return ErrUnsupported
	}
	s.b.emitter.Emit(EventSpeak, u)
	return nil
}

func (s synthesizer) Cancel() {
	s.b.emitter.Emit(EventSpeechCancel, nil)
}

func (s synthesizer) OnEnd(fn func(utteranceID string, err error)) {
	s.b.mu.Lock()
	s.b.onEnd = fn
	s.b.mu.Unlock()
}

// HandleSynthesisEnd reports a finished utterance to the synthesizer's
// end callback.
func (b *Bridge) HandleSynthesisEnd(end SynthesisEnd) {
	b.mu.Lock()
	fn := b.onEnd
	b.mu.Unlock()
	if fn == nil {
		return
	}
	var err error
	if end.Error != "" {
		err = errors.New(end.Error)
	}
	fn(end.UtteranceID, err)
}
