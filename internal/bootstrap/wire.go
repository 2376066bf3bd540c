// Package bootstrap assembles the voice session for a host window.
package bootstrap

import (
	"context"
	"log/slog"
	"sync"

	"ablevoice/internal/audio"
	"ablevoice/internal/bus"
	"ablevoice/internal/catalog"
	"ablevoice/internal/config"
	"ablevoice/internal/domain"
	"ablevoice/internal/interpreter"
	"ablevoice/internal/logging"
	"ablevoice/internal/ports"
	"ablevoice/internal/providers/bridge"
	"ablevoice/internal/providers/deepgram"
	"ablevoice/internal/rules"
	"ablevoice/internal/ui"
	"ablevoice/internal/usecase"
	"ablevoice/internal/web"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Logger     *slog.Logger
	Controller *usecase.SessionController
	Commands   *bus.Bus
	Relay      *ui.CommandRelay
	// Bridge is nil on the desktop platform.
	Bridge *bridge.Bridge
	// Web is nil unless a listen address is configured.
	Web *web.Server

	emitters *fanout
}

type speechAdapters struct {
	recognizer ports.Recognizer
	synth      ports.Synthesizer
	permission ports.PermissionRequester
}

// Build loads configuration from the environment and wires every
// dependency. Events for the host window go to frontend.
func Build(frontend ui.Emitter) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return BuildWithConfig(cfg, frontend, logging.New(cfg.Log.Level, cfg.Log.Format))
}

// BuildWithConfig wires every dependency from an explicit configuration.
func BuildWithConfig(cfg config.Config, frontend ui.Emitter, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	aliases, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Config:   cfg,
		Logger:   logger,
		Commands: bus.New(logger),
		emitters: &fanout{},
	}
	s.emitters.add(frontend)
	sink := ui.NewSink(s.emitters)

	var speech speechAdapters
	switch cfg.Platform {
	case config.PlatformDesktop:
		speech = desktopAdapters(cfg, logger)
	default:
		s.Bridge = bridge.New(s.emitters, logger)
		speech = speechAdapters{
			recognizer: s.Bridge.Recognizer(),
			synth:      s.Bridge.Synthesizer(),
			permission: s.Bridge,
		}
	}

	clock := usecase.SystemClock()
	modes := usecase.NewModeState(cfg.InitialMode)

	capture := usecase.NewCaptureLoop(speech.recognizer, speech.permission, sink, sink, clock, usecase.CaptureConfig{
		Mode:            domain.CaptureContinuous,
		Language:        cfg.Language,
		RestartDelay:    cfg.Capture.RestartDelay,
		RetryDelay:      cfg.Capture.RetryDelay,
		MaxRetries:      cfg.Capture.MaxRetries,
		NoSpeechTimeout: cfg.Capture.NoSpeechTimeout,
	}, logger)

	output := usecase.NewOutputCoordinator(speech.synth, sink, func() bool {
		return modes.Mode() == domain.ModeVoice
	}, usecase.OutputConfig{
		VoicePreferences: cfg.Output.Voices,
		Rate:             cfg.Output.Rate,
		Pitch:            cfg.Output.Pitch,
		Volume:           cfg.Output.Volume,
	}, logger)

	interp := interpreter.New(interpreter.Deps{
		Navigator: sink,
		Notifier:  sink,
		Speaker:   output,
		Publisher: s.Commands,
		Modes:     modes,
		Catalog:   catalog.Default(),
		Aliases:   aliases,
		Logger:    logger,
	})

	s.Controller = usecase.NewSessionController(modes, capture, output, interp, sink, sink, clock, usecase.SessionConfig{
		Welcome:       cfg.Session.Welcome,
		WelcomeDelay:  cfg.Session.WelcomeDelay,
		DisplayWindow: cfg.Session.TranscriptDisplay,
	}, logger)
	s.Relay = ui.NewCommandRelay(s.Commands, s.emitters)

	if cfg.Web.Addr != "" {
		s.Web = web.NewServer(s.Controller, s, logger)
		s.emitters.add(s.Web)
	}

	logger.Info("voice session assembled",
		"platform", cfg.Platform,
		"mode", cfg.InitialMode,
		"aliases", aliases.Len(),
		"web", cfg.Web.Addr != "",
	)
	return s, nil
}

func desktopAdapters(cfg config.Config, logger *slog.Logger) speechAdapters {
	mic := audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand)
	return speechAdapters{
		recognizer: deepgram.NewRecognizer(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}, mic, ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		}, logger),
		synth:      audio.NewCommandSynthesizer(cfg.Output.TTSCommand, logger),
		permission: audio.NewPermissionProbe(mic.Command()),
	}
}

// Start serves the web bridge and, on the desktop platform, starts the
// session. A webview session starts once its frontend reports ready.
func (s *Services) Start(ctx context.Context) error {
	if s.Web != nil {
		go func() {
			if err := s.Web.Listen(s.Config.Web.Addr); err != nil {
				s.Logger.Error("web bridge stopped", "error", err)
			}
		}()
	}
	if s.Bridge == nil {
		return s.Controller.Start(ctx)
	}
	return nil
}

// Shutdown stops the session and the web bridge.
func (s *Services) Shutdown() {
	s.Controller.Stop()
	if s.Web != nil {
		if err := s.Web.Shutdown(); err != nil {
			s.Logger.Warn("web bridge shutdown failed", "error", err)
		}
	}
}

// FrontendReady applies the frontend's capabilities and starts the
// session. Starting asks the frontend for the microphone, so it runs off
// the caller's goroutine, which may be the one delivering the answer.
func (s *Services) FrontendReady(caps bridge.Capabilities) {
	if s.Bridge != nil {
		s.Bridge.SetCapabilities(caps)
	}
	go func() {
		if err := s.Controller.Start(context.Background()); err != nil {
			s.Logger.Warn("voice session did not start", "error", err)
		}
	}()
}

func (s *Services) HandleRecognizerEvent(ev bridge.RecognizerEvent) bool {
	if s.Bridge == nil {
		return false
	}
	return s.Bridge.HandleRecognizerEvent(ev)
}

func (s *Services) HandleSynthesisEnd(end bridge.SynthesisEnd) {
	if s.Bridge != nil {
		s.Bridge.HandleSynthesisEnd(end)
	}
}

func (s *Services) ResolvePermission(res bridge.PermissionResult) bool {
	if s.Bridge == nil {
		return false
	}
	return s.Bridge.ResolvePermission(res)
}

func (s *Services) PageChanged(state ui.PageState) {
	s.Relay.PageChanged(state)
}

// fanout delivers events to the host window and any web bridge added
// after construction.
type fanout struct {
	mu   sync.RWMutex
	list ui.Fanout
}

func (f *fanout) add(e ui.Emitter) {
	if e == nil {
		return
	}
	f.mu.Lock()
	f.list = append(f.list, e)
	f.mu.Unlock()
}

func (f *fanout) Emit(event string, payload any) {
	f.mu.RLock()
	list := f.list
	f.mu.RUnlock()
	list.Emit(event, payload)
}
