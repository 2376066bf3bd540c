// Package web exposes the voice session over HTTP and a websocket so a
// browser outside the desktop window can drive it and act as its speech
// frontend.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"ablevoice/internal/domain"
	"ablevoice/internal/logging"
	"ablevoice/internal/providers/bridge"
	"ablevoice/internal/ui"
)

// Session is the voice session surface served over HTTP.
type Session interface {
	Status() domain.Status
	ManualCommand(command string) (domain.Outcome, error)
	SetMode(mode domain.AccessibilityMode) (bool, error)
	RouteChanged(path string)
	VoiceSearch(ctx context.Context) error
	RetryPermission(ctx context.Context) domain.Permission
}

// Inbound receives events sent by connected browsers.
type Inbound interface {
	FrontendReady(caps bridge.Capabilities)
	HandleRecognizerEvent(ev bridge.RecognizerEvent) bool
	HandleSynthesisEnd(end bridge.SynthesisEnd)
	ResolvePermission(res bridge.PermissionResult) bool
	PageChanged(state ui.PageState)
}

// Server is the HTTP and websocket bridge.
type Server struct {
	app     *fiber.App
	hub     *Hub
	session Session
	inbound Inbound
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(session Session, inbound Inbound, logger *slog.Logger) *Server {
	logger = logging.Component(logger, "web")
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		hub:     NewHub(logger),
		session: session,
		inbound: inbound,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "AbleVoice",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/command", s.handleCommand)
	api.Post("/mode", s.handleMode)
	api.Post("/route", s.handleRoute)
	api.Post("/search", s.handleSearch)
	api.Post("/permission", s.handlePermission)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	go s.hub.Run(ctx)
	return s
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("web bridge listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}

// Emit broadcasts an event to every connected browser.
func (s *Server) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode event", "event", event, "error", err)
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	s.hub.Broadcast(frame)
}

// Clients is the number of connected browsers.
func (s *Server) Clients() int {
	return s.hub.ClientCount()
}

func (s *Server) handleWS(conn *websocket.Conn) {
	newClient(s.hub, conn).Serve(s.ctx, s.dispatch)
}

func (s *Server) dispatch(env Envelope) {
	if s.inbound == nil {
		return
	}

	var err error
	switch env.Event {
	case bridge.EventCapabilities:
		var caps bridge.Capabilities
		if err = json.Unmarshal(env.Data, &caps); err == nil {
			s.inbound.FrontendReady(caps)
		}
	case bridge.EventRecognizer:
		var ev bridge.RecognizerEvent
		if err = json.Unmarshal(env.Data, &ev); err == nil {
			s.inbound.HandleRecognizerEvent(ev)
		}
	case bridge.EventSpeechEnd:
		var end bridge.SynthesisEnd
		if err = json.Unmarshal(env.Data, &end); err == nil {
			s.inbound.HandleSynthesisEnd(end)
		}
	case bridge.EventPermissionResult:
		var res bridge.PermissionResult
		if err = json.Unmarshal(env.Data, &res); err == nil {
			s.inbound.ResolvePermission(res)
		}
	case ui.EventPage:
		var state ui.PageState
		if err = json.Unmarshal(env.Data, &state); err == nil {
			s.inbound.PageChanged(state)
		}
	default:
		s.logger.Debug("ignoring websocket event", "event", env.Event)
		return
	}
	if err != nil {
		s.logger.Warn("malformed websocket event", "event", env.Event, "error", err)
	}
}
