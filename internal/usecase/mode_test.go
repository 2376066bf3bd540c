package usecase

import (
	"testing"
	"time"

	"ablevoice/internal/domain"
)

func TestModeStateSetMode(t *testing.T) {
	t.Parallel()

	state := NewModeState("bogus")
	if state.Mode() != domain.ModeVoice {
		t.Fatalf("invalid initial mode must fall back to voice, got %s", state.Mode())
	}

	var transitions []string
	state.OnChange(func(from, to domain.AccessibilityMode) {
		transitions = append(transitions, string(from)+"->"+string(to))
	})
	unsubscribe := state.OnChange(func(domain.AccessibilityMode, domain.AccessibilityMode) {
		t.Fatalf("unsubscribed listener was called")
	})
	unsubscribe()

	if state.SetMode(domain.ModeVoice) {
		t.Fatalf("setting the current mode must report no change")
	}
	if state.SetMode("loud") {
		t.Fatalf("unknown modes must be rejected")
	}
	if !state.SetMode(domain.ModeDeaf) {
		t.Fatalf("expected change to deaf")
	}
	if len(transitions) != 1 || transitions[0] != "voice->deaf" {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

func TestModeStateListenersMayReadMode(t *testing.T) {
	t.Parallel()

	state := NewModeState(domain.ModeMute)
	var seen domain.AccessibilityMode
	state.OnChange(func(_, _ domain.AccessibilityMode) { seen = state.Mode() })

	state.SetMode(domain.ModeVoice)
	if seen != domain.ModeVoice {
		t.Fatalf("listener must observe the new mode, got %s", seen)
	}
}

func TestTranscriptDisplayReplacesAndClears(t *testing.T) {
	t.Parallel()

	ui := &fakeUI{}
	display := newTranscriptDisplay(ui, 30*time.Millisecond)

	display.Show(domain.Transcript{Text: "go to"})
	display.Show(domain.Transcript{Text: "go to cart"})
	if got := display.Current(); got != "go to cart" {
		t.Fatalf("newer transcript must replace the shown one, got %q", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for display.Current() != "" {
		if time.Now().After(deadline) {
			t.Fatalf("transcript was never cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	if cleared := ui.clearedCount(); cleared != 1 {
		t.Fatalf("expected a single clear for both transcripts, got %d", cleared)
	}
}
