package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"ablevoice/internal/bootstrap"
	"ablevoice/internal/config"
	"ablevoice/internal/domain"
	"ablevoice/internal/providers/bridge"
	"ablevoice/internal/ui"
)

// frontendEvents are the events the webview sends back to Go.
var frontendEvents = []string{
	bridge.EventCapabilities,
	bridge.EventRecognizer,
	bridge.EventSpeechEnd,
	bridge.EventPermissionResult,
	ui.EventPage,
}

// App is the Wails application root.
type App struct {
	ctx context.Context

	services *bootstrap.Services
	cfg      config.Config
	bootErr  error

	emit func(ctx context.Context, event string, data ...interface{})
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		ui.NewSink(a).SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.attach(services)

	for _, name := range frontendEvents {
		name := name
		runtime.EventsOn(ctx, name, func(data ...interface{}) {
			a.handleFrontendEvent(name, data...)
		})
	}

	if err := services.Start(ctx); err != nil {
		ui.NewSink(a).SessionError(domain.ErrorCodeStartup, err.Error())
	}
}

func (a *App) shutdown(_ context.Context) {
	if a.services != nil {
		a.services.Shutdown()
	}
}

func (a *App) attach(services *bootstrap.Services) {
	a.services = services
	a.cfg = services.Config
}

// Emit sends an event to the webview.
func (a *App) Emit(event string, payload any) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, event, payload)
}

// ManualCommand runs a typed command through the same path as speech.
func (a *App) ManualCommand(command string) (domain.Outcome, error) {
	if err := a.requireReady(); err != nil {
		return domain.Outcome{}, err
	}
	return a.services.Controller.ManualCommand(command)
}

// SetMode selects the accessibility mode and reports whether it changed.
func (a *App) SetMode(mode string) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.services.Controller.SetMode(domain.AccessibilityMode(mode))
}

// RouteChanged tells the session which page is visible.
func (a *App) RouteChanged(path string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Controller.RouteChanged(path)
	return nil
}

// VoiceSearch listens once for a search term.
func (a *App) VoiceSearch() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Controller.VoiceSearch(a.ctx)
}

// RetryPermission asks for microphone access again.
func (a *App) RetryPermission() (domain.Permission, error) {
	if err := a.requireReady(); err != nil {
		return domain.PermissionUnknown, err
	}
	return a.services.Controller.RetryPermission(a.ctx), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.services == nil {
		status := domain.Status{Mode: domain.ModeVoice, Route: "/"}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.services.Controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"platform":    string(a.cfg.Platform),
		"language":    a.cfg.Language,
		"initialMode": string(a.cfg.InitialMode),
		"aliasesFile": a.cfg.Rules.Path,
		"webBridge":   a.cfg.Web.Addr,
	}
	if a.cfg.Platform == config.PlatformDesktop {
		info["provider"] = "Deepgram"
		info["model"] = a.cfg.Deepgram.Model
		info["audioInput"] = a.cfg.Audio.InputDevice
		info["audioInputFormat"] = a.cfg.Audio.InputFormat
		info["ttsCommand"] = a.cfg.Output.TTSCommand
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return errors.New("application is not initialized")
	}
	return nil
}

func (a *App) handleFrontendEvent(name string, data ...interface{}) {
	if a.services == nil {
		return
	}

	var err error
	switch name {
	case bridge.EventCapabilities:
		var caps bridge.Capabilities
		if err = decodeEvent(data, &caps); err == nil {
			a.services.FrontendReady(caps)
		}
	case bridge.EventRecognizer:
		var ev bridge.RecognizerEvent
		if err = decodeEvent(data, &ev); err == nil {
			a.services.HandleRecognizerEvent(ev)
		}
	case bridge.EventSpeechEnd:
		var end bridge.SynthesisEnd
		if err = decodeEvent(data, &end); err == nil {
			a.services.HandleSynthesisEnd(end)
		}
	case bridge.EventPermissionResult:
		var res bridge.PermissionResult
		if err = decodeEvent(data, &res); err == nil {
			a.services.ResolvePermission(res)
		}
	case ui.EventPage:
		var state ui.PageState
		if err = decodeEvent(data, &state); err == nil {
			a.services.PageChanged(state)
		}
	}
	if err != nil {
		a.services.Logger.Warn("malformed frontend event", "event", name, "error", err)
	}
}

// decodeEvent converts the loosely typed payload Wails delivers into v.
func decodeEvent(data []interface{}, v any) error {
	if len(data) == 0 {
		return errors.New("event has no payload")
	}
	raw, err := json.Marshal(data[0])
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}
