package interpreter

import (
	"errors"
	"strings"
	"testing"

	"ablevoice/internal/bus"
	"ablevoice/internal/catalog"
	"ablevoice/internal/domain"
)

func TestInterpretDropsBlankInput(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	for _, raw := range []string{"", "   ", "\t\n"} {
		outcome := h.interpreter.Interpret(raw)
		if outcome.Kind != domain.OutcomeDropped {
			t.Fatalf("expected %q to be dropped, got %+v", raw, outcome)
		}
	}
	if len(h.speaker.spoken) != 0 || len(h.nav.paths) != 0 || len(h.events) != 0 || len(h.notifier.notes) != 0 {
		t.Fatalf("blank input must have no side effects")
	}
}

func TestInterpretAddsItemFromNoisyTranscript(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("  ADD   add Porotta  ")

	if outcome.Command != "add porotta" {
		t.Fatalf("unexpected normalized command: %q", outcome.Command)
	}
	if outcome.Kind != domain.OutcomeEvent || outcome.Rule != "add" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(h.events) != 1 || h.events[0].Kind != domain.EventAddToCart {
		t.Fatalf("expected one add-to-cart event, got %+v", h.events)
	}
	payload, ok := h.events[0].Payload.(domain.AddToCart)
	if !ok || payload.Item.Name != "Porotta" || payload.Quantity != 1 {
		t.Fatalf("unexpected payload: %+v", h.events[0].Payload)
	}
	if len(h.speaker.spoken) != 1 || !strings.Contains(h.speaker.spoken[0], "Porotta") {
		t.Fatalf("expected confirmation naming Porotta, got %v", h.speaker.spoken)
	}
}

func TestInterpretNavigatesWithoutPublishing(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("go to home")

	if outcome.Kind != domain.OutcomeNavigation || outcome.Route != "/home" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(h.nav.paths) != 1 || h.nav.paths[0] != "/home" {
		t.Fatalf("expected exactly one GoTo(/home), got %v", h.nav.paths)
	}
	if len(h.events) != 0 {
		t.Fatalf("navigation must not publish events, got %+v", h.events)
	}
	if outcome.Spoken != "Navigating to home page" {
		t.Fatalf("unexpected confirmation: %q", outcome.Spoken)
	}
}

func TestInterpretNavigationPhrases(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Home.":               "/home",
		"show cart":           "/cart",
		"place order":         "/checkout",
		"Proceed to checkout": "/checkout",
		"my profile":          "/profile",
	}
	for raw, want := range cases {
		h := newHarness(domain.ModeVoice)
		outcome := h.interpreter.Interpret(raw)
		if outcome.Route != want || len(h.nav.paths) != 1 || h.nav.paths[0] != want {
			t.Fatalf("%q: expected route %s, got %+v (paths %v)", raw, want, outcome, h.nav.paths)
		}
	}
}

func TestInterpretModeSwitchIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("voice mode")

	if outcome.Kind != domain.OutcomeModeChange || outcome.Changed {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if h.modes.sets != 0 {
		t.Fatalf("mode must not be mutated, got %d SetMode calls", h.modes.sets)
	}
	if outcome.Spoken != "Already in voice mode" {
		t.Fatalf("unexpected spoken message: %q", outcome.Spoken)
	}
	if len(h.notifier.notes) != 1 || h.notifier.notes[0].Message != "Already in voice mode" {
		t.Fatalf("expected visual already-in-mode message, got %+v", h.notifier.notes)
	}
}

func TestInterpretModeSwitchSpeaksBeforeLeavingVoice(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("switch to deaf mode")

	if !outcome.Changed || h.modes.Mode() != domain.ModeDeaf {
		t.Fatalf("expected mode change to deaf, got %+v", outcome)
	}
	if len(h.speaker.modesAtSpeak) != 1 || h.speaker.modesAtSpeak[0] != domain.ModeVoice {
		t.Fatalf("confirmation must be spoken while still in voice mode, got %v", h.speaker.modesAtSpeak)
	}
}

func TestInterpretModeSwitchSpeaksAfterEnteringVoice(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeMute)
	outcome := h.interpreter.Interpret("voice mode please")

	if !outcome.Changed || h.modes.Mode() != domain.ModeVoice {
		t.Fatalf("expected mode change to voice, got %+v", outcome)
	}
	if len(h.speaker.modesAtSpeak) != 1 || h.speaker.modesAtSpeak[0] != domain.ModeVoice {
		t.Fatalf("confirmation must be spoken after entering voice mode, got %v", h.speaker.modesAtSpeak)
	}
}

func TestInterpretFallback(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("sing me a song")

	if outcome.Kind != domain.OutcomeFallback || outcome.Err != "" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(h.events) != 0 || len(h.nav.paths) != 0 {
		t.Fatalf("fallback must take no other action")
	}
	if len(h.notifier.notes) != 1 || h.notifier.notes[0].Kind != domain.NotifyInfo || h.notifier.notes[0].Message != fallbackNotice {
		t.Fatalf("expected one info notification, got %+v", h.notifier.notes)
	}
	if outcome.Spoken != fallbackMessage {
		t.Fatalf("unexpected fallback message: %q", outcome.Spoken)
	}
}

func TestInterpretFallbackIsVisibleWhenSilent(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeDeaf)
	outcome := h.interpreter.Interpret("sing me a song")

	if outcome.Kind != domain.OutcomeFallback {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(h.notifier.notes) != 1 || h.notifier.notes[0].Message != fallbackNotice {
		t.Fatalf("unrecognized commands must still be shown, got %+v", h.notifier.notes)
	}
}

func TestInterpretAddItemByName(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("add item porotta")

	if outcome.Kind != domain.OutcomeEvent || outcome.Rule != "add-item-number" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(h.events) != 1 {
		t.Fatalf("expected one event, got %+v", h.events)
	}
	payload := h.events[0].Payload.(domain.AddToCart)
	if payload.Item.Name != "Porotta" || payload.Quantity != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	h.interpreter.Interpret("add item two porotta")
	if len(h.events) != 2 || h.events[1].Payload.(domain.AddToCart).Quantity != 2 {
		t.Fatalf("expected a quantity after item, got %+v", h.events)
	}
}

func TestInterpretMalformedQuantityIsReported(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("update quantity porotta lots")

	if outcome.Kind != domain.OutcomeFallback || outcome.Rule != "update-quantity" || outcome.Err == "" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(h.events) != 0 {
		t.Fatalf("malformed command must not publish, got %+v", h.events)
	}
	if len(h.notifier.notes) != 1 || h.notifier.notes[0].Kind != domain.NotifyError {
		t.Fatalf("expected an error notification, got %+v", h.notifier.notes)
	}
	if !strings.Contains(outcome.Spoken, "lots is not a valid quantity") {
		t.Fatalf("unexpected spoken message: %q", outcome.Spoken)
	}
}

func TestInterpretUpdateQuantity(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("update quantity of porotta to 3")

	if outcome.Kind != domain.OutcomeEvent {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	payload, ok := h.events[0].Payload.(domain.UpdateQuantity)
	if !ok || payload.Item.Name != "Porotta" || payload.Quantity != 3 {
		t.Fatalf("unexpected payload: %+v", h.events[0].Payload)
	}
}

func TestInterpretAddWithQuantityAndPosition(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	h.interpreter.Interpret("add two thalassery biryani")
	h.interpreter.Interpret("add item 1")
	h.interpreter.Interpret("add item 999")

	if len(h.events) != 2 {
		t.Fatalf("expected 2 events, got %+v", h.events)
	}
	first := h.events[0].Payload.(domain.AddToCart)
	if first.Item.Name != "Thalassery Biryani" || first.Quantity != 2 {
		t.Fatalf("unexpected first payload: %+v", first)
	}
	second := h.events[1].Payload.(domain.AddToCart)
	if second.Item.Name != "Karimeen Pollichathu" || second.Quantity != 1 {
		t.Fatalf("unexpected second payload: %+v", second)
	}
	if last := h.speaker.spoken[len(h.speaker.spoken)-1]; !strings.Contains(last, "no item number 999") {
		t.Fatalf("unexpected failure message: %q", last)
	}
}

func TestInterpretUnknownItem(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("add pizza")
	if outcome.Kind != domain.OutcomeFallback || len(h.events) != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !strings.Contains(outcome.Spoken, "couldn't find pizza") {
		t.Fatalf("unexpected message: %q", outcome.Spoken)
	}
}

func TestInterpretSearchAndFilters(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	h.interpreter.Interpret("search for fish curry")
	h.interpreter.Interpret("filter by seafood")
	h.interpreter.Interpret("show me vegetarian dishes")
	h.interpreter.Interpret("show restaurants")

	want := []string{domain.EventSearch, domain.EventSetCategory, domain.EventSetVegOnly, domain.EventSetTab}
	if len(h.events) != len(want) {
		t.Fatalf("unexpected events: %+v", h.events)
	}
	for i, kind := range want {
		if h.events[i].Kind != kind {
			t.Fatalf("event %d: expected %s, got %s", i, kind, h.events[i].Kind)
		}
	}
	if search := h.events[0].Payload.(domain.Search); search.Term != "fish curry" {
		t.Fatalf("unexpected search term: %q", search.Term)
	}
	if category := h.events[1].Payload.(string); category != "Seafood" {
		t.Fatalf("unexpected category: %q", category)
	}
	if tab := h.events[3].Payload.(string); tab != "restaurants" {
		t.Fatalf("unexpected tab: %q", tab)
	}
	if h.speaker.spoken[3] != "Showing restaurants" {
		t.Fatalf("tab switch must also be spoken, got %q", h.speaker.spoken[3])
	}
}

func TestInterpretHelpSpeaksOnlyWithoutListeners(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	outcome := h.interpreter.Interpret("what can I say")
	if outcome.Kind != domain.OutcomeEvent || outcome.Spoken != HelpMessage {
		t.Fatalf("expected global help to be spoken, got %+v", outcome)
	}

	h = newHarness(domain.ModeVoice)
	h.bus.Subscribe(bus.TopicVoiceCommand, func(domain.CommandEvent) {})
	outcome = h.interpreter.Interpret("help")
	if outcome.Spoken != "" || len(h.speaker.spoken) != 0 {
		t.Fatalf("page help listener should own the response, got %+v", outcome)
	}
}

func TestInterpretPriorityOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	// help outranks the mode class even when both phrases are present
	outcome := h.interpreter.Interpret("what can i say in voice mode")
	if outcome.Rule != "help" {
		t.Fatalf("expected help to win, got %+v", outcome)
	}
}

func TestInterpretAppliesAliases(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	h.interpreter.aliases = stubAliases{"goto card": "go to cart"}
	outcome := h.interpreter.Interpret("Goto Card")
	if outcome.Route != "/cart" {
		t.Fatalf("expected alias to route to cart, got %+v", outcome)
	}
}

func TestInterpretRecoversFromHandlerPanics(t *testing.T) {
	t.Parallel()

	h := newHarness(domain.ModeVoice)
	h.interpreter.table = NewTable(Rule{
		Name:    "boom",
		Class:   ClassAction,
		Kind:    MatchExact,
		Phrases: []string{"boom"},
		Handle: func(*Interpreter, Match) (domain.Outcome, error) {
			panic("handler exploded")
		},
	})

	outcome := h.interpreter.Interpret("boom")
	if outcome.Kind != domain.OutcomeFallback || !strings.Contains(outcome.Err, "handler exploded") {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(h.notifier.notes) != 1 {
		t.Fatalf("expected failure to be shown")
	}
}

func TestInterpretIsTotal(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"add", "add item", "add item -1", "update quantity", "update quantity 5",
		"filter by", "filter by nothing", "search for", "add 0 porotta",
		"🍛🍛", "mute", "mode", "...", "update quantity porotta -2",
	}
	for _, raw := range inputs {
		h := newHarness(domain.ModeVoice)
		outcome := h.interpreter.Interpret(raw)
		switch outcome.Kind {
		case domain.OutcomeNavigation, domain.OutcomeEvent, domain.OutcomeModeChange, domain.OutcomeFallback, domain.OutcomeDropped:
		default:
			t.Fatalf("%q: unexpected outcome kind %q", raw, outcome.Kind)
		}
	}
}

func TestFailureUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("bad digit")
	err := failf(cause, "Sorry, %s is not valid.", "x")
	if !errors.Is(err, cause) {
		t.Fatalf("expected failure to wrap its cause")
	}
}

type harness struct {
	interpreter *Interpreter
	nav         *fakeNavigator
	notifier    *fakeNotifier
	speaker     *fakeSpeaker
	modes       *fakeModes
	bus         *bus.Bus
	events      []domain.CommandEvent
}

func newHarness(mode domain.AccessibilityMode) *harness {
	h := &harness{
		nav:      &fakeNavigator{},
		notifier: &fakeNotifier{},
		modes:    &fakeModes{mode: mode},
		bus:      bus.New(nil),
	}
	h.speaker = &fakeSpeaker{modes: h.modes}
	h.interpreter = New(Deps{
		Navigator: h.nav,
		Notifier:  h.notifier,
		Speaker:   h.speaker,
		Publisher: publishRecorder{h},
		Modes:     h.modes,
		Catalog:   catalog.Default(),
	})
	return h
}

type publishRecorder struct {
	h *harness
}

func (p publishRecorder) Publish(topic string, event domain.CommandEvent) int {
	p.h.events = append(p.h.events, event)
	return p.h.bus.Publish(topic, event)
}

type fakeNavigator struct {
	paths []string
}

func (f *fakeNavigator) GoTo(path string) {
	f.paths = append(f.paths, path)
}

type fakeNotifier struct {
	notes []domain.Notification
}

func (f *fakeNotifier) Notify(n domain.Notification) {
	f.notes = append(f.notes, n)
}

type fakeSpeaker struct {
	modes        *fakeModes
	spoken       []string
	modesAtSpeak []domain.AccessibilityMode
}

func (f *fakeSpeaker) Speak(text string) string {
	f.spoken = append(f.spoken, text)
	f.modesAtSpeak = append(f.modesAtSpeak, f.modes.Mode())
	return "utterance"
}

type fakeModes struct {
	mode domain.AccessibilityMode
	sets int
}

func (f *fakeModes) Mode() domain.AccessibilityMode {
	return f.mode
}

func (f *fakeModes) SetMode(mode domain.AccessibilityMode) bool {
	f.sets++
	if f.mode == mode {
		return false
	}
	f.mode = mode
	return true
}

type stubAliases map[string]string

func (s stubAliases) Apply(text string) (string, error) {
	if replacement, ok := s[text]; ok {
		return replacement, nil
	}
	return text, nil
}
