package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ablevoice/internal/config"
	"ablevoice/internal/domain"
	"ablevoice/internal/providers/bridge"
	"ablevoice/internal/ui"
)

type frame struct {
	event   string
	payload any
}

type recordingFrontend struct {
	mu     sync.Mutex
	frames []frame
	ch     chan frame
}

func newRecordingFrontend() *recordingFrontend {
	return &recordingFrontend{ch: make(chan frame, 64)}
}

func (f *recordingFrontend) Emit(event string, payload any) {
	f.mu.Lock()
	f.frames = append(f.frames, frame{event: event, payload: payload})
	f.mu.Unlock()
	select {
	case f.ch <- frame{event: event, payload: payload}:
	default:
	}
}

// await returns the next frame named event, skipping others.
func (f *recordingFrontend) await(t *testing.T, event string) frame {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case fr := <-f.ch:
			if fr.event == event {
				return fr
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func testConfig(platform config.Platform) config.Config {
	return config.Config{
		Platform:    platform,
		Language:    "en-US",
		InitialMode: domain.ModeVoice,
		Capture: config.CaptureConfig{
			RestartDelay:    100 * time.Millisecond,
			RetryDelay:      time.Second,
			MaxRetries:      2,
			NoSpeechTimeout: 5 * time.Second,
		},
		Output:  config.OutputConfig{Rate: 1, Pitch: 1, Volume: 1},
		Session: config.SessionConfig{TranscriptDisplay: 2 * time.Second},
		Rules:   config.RulesConfig{IterationLimit: 30},
		Log:     config.LogConfig{Level: "error"},
	}
}

func TestWebviewSessionRoundTrip(t *testing.T) {
	t.Parallel()

	frontend := newRecordingFrontend()
	services, err := BuildWithConfig(testConfig(config.PlatformWebview), frontend, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(services.Shutdown)

	if services.Bridge == nil || services.Web != nil {
		t.Fatalf("webview platform must use the bridge without a web server")
	}
	if err := services.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	services.FrontendReady(bridge.Capabilities{Recognition: true, Synthesis: true})

	req := frontend.await(t, bridge.EventPermissionRequest).payload.(bridge.PermissionRequest)
	if !services.ResolvePermission(bridge.PermissionResult{RequestID: req.RequestID, State: "granted"}) {
		t.Fatalf("permission answer must be accepted")
	}

	start := frontend.await(t, bridge.EventRecognizerStart).payload.(bridge.RecognizerStart)
	if !start.Continuous || start.Language != "en-US" {
		t.Fatalf("unexpected recognizer start: %+v", start)
	}

	services.HandleRecognizerEvent(bridge.RecognizerEvent{HandleID: start.HandleID, Type: bridge.RecognizerResult, Text: "go to cart"})

	nav := frontend.await(t, ui.EventNavigate).payload.(ui.Navigate)
	if nav.Path != "/cart" {
		t.Fatalf("unexpected navigation: %+v", nav)
	}
	speak := frontend.await(t, bridge.EventSpeak).payload.(domain.SpeechUtterance)
	if speak.Text != "Opening your cart" {
		t.Fatalf("unexpected speech: %+v", speak)
	}
	services.HandleSynthesisEnd(bridge.SynthesisEnd{UtteranceID: speak.ID})

	if status := services.Controller.Status(); status.Mode != domain.ModeVoice {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestPageRelayControlsHelpFallback(t *testing.T) {
	t.Parallel()

	frontend := newRecordingFrontend()
	services, err := BuildWithConfig(testConfig(config.PlatformWebview), frontend, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(services.Shutdown)

	services.PageChanged(ui.PageState{Listening: true})
	if n := services.Commands.Publish("voice-command", domain.CommandEvent{Kind: "help", Command: "help"}); n != 1 {
		t.Fatalf("expected the page relay to receive the event, got %d", n)
	}
	frontend.await(t, ui.EventCommand)
}

func TestDesktopWithoutKeyDegrades(t *testing.T) {
	t.Parallel()

	cfg := testConfig(config.PlatformDesktop)
	// the recorder is only looked up, never run, without a Deepgram key
	cfg.Audio = config.AudioConfig{RecorderCommand: "sh"}
	cfg.Output.TTSCommand = filepath.Join(t.TempDir(), "missing-tts")
	cfg.Web.Addr = "127.0.0.1:0"

	frontend := newRecordingFrontend()
	services, err := BuildWithConfig(cfg, frontend, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(services.Shutdown)

	if services.Bridge != nil || services.Web == nil {
		t.Fatalf("desktop platform must not use the bridge; web bridge must be wired")
	}
	if err := services.Controller.Start(context.Background()); err != nil {
		t.Fatalf("missing recognizer must degrade, got %v", err)
	}

	for {
		state := frontend.await(t, ui.EventCaptureState).payload.(ui.CaptureState)
		if state.Session.Status == domain.CaptureUnsupported {
			break
		}
	}
	if _, err := services.Controller.ManualCommand("go home"); err != nil {
		t.Fatalf("manual commands must keep working: %v", err)
	}
	if services.HandleRecognizerEvent(bridge.RecognizerEvent{HandleID: "x", Type: bridge.RecognizerEnd}) {
		t.Fatalf("desktop platform has no bridge handles")
	}
}

func TestBuildFailsOnInvalidRules(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.rules")
	if err := os.WriteFile(path, []byte("not a valid rule\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	cfg := testConfig(config.PlatformWebview)
	cfg.Rules.Path = path

	if _, err := BuildWithConfig(cfg, newRecordingFrontend(), nil); err == nil {
		t.Fatalf("expected build error due to invalid rules")
	}
}

func TestBuildLoadsEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ABLEVOICE_ALIASES_FILE", "")
	t.Setenv("ABLEVOICE_PLATFORM", "webview")
	t.Setenv("ABLEVOICE_WEB_ADDR", "")
	t.Setenv("ABLEVOICE_LOG_LEVEL", "error")

	services, err := Build(newRecordingFrontend())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(services.Shutdown)
	if services.Controller == nil || services.Bridge == nil {
		t.Fatalf("expected controller and bridge")
	}
}
