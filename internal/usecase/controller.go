package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ablevoice/internal/domain"
	"ablevoice/internal/logging"
	"ablevoice/internal/ports"
)

var (
	ErrNotStarted  = errors.New("voice session is not started")
	ErrInvalidMode = errors.New("unknown accessibility mode")
)

// CommandInterpreter turns one command string into exactly one outcome.
type CommandInterpreter interface {
	Interpret(raw string) domain.Outcome
}

// SessionConfig controls the voice session.
type SessionConfig struct {
	Welcome       bool
	WelcomeDelay  time.Duration
	DisplayWindow time.Duration
}

const welcomeMessage = "Welcome to AblEats, your accessible food delivery platform. " +
	"Voice commands are now enabled. " +
	"I am your voice assistant, and I will help you navigate through the application. " +
	"You can interrupt me at any time by speaking a command. " +
	"Say Help to hear all available commands. " +
	"To navigate home, just say Go to Home."

var routeAnnouncements = map[string]string{
	"/":              "Welcome to AblEats. Your accessible food delivery platform. Say Help to hear available commands.",
	"/home":          "You are on the Home page. Here you can browse restaurants and food items. Say Help for navigation options.",
	"/cart":          "You are viewing your Shopping cart. Here you can review your order items. Say Help for available commands.",
	"/checkout":      "You are on the Checkout page. Here you can complete your order. Say Help for assistance.",
	"/profile":       "You are on your Profile page. Here you can view your account details. Say Help for available options.",
	"/order-success": "Great news! Your order is confirmed and will be delivered soon. Thank you for choosing AblEats.",
}

const defaultAnnouncement = "Page loaded. Say Help for navigation options."

// RouteAnnouncement returns the message spoken when path is shown.
func RouteAnnouncement(path string) string {
	if message, ok := routeAnnouncements[cleanRoute(path)]; ok {
		return message
	}
	return defaultAnnouncement
}

func cleanRoute(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}

// SessionController couples the accessibility mode and the current route to
// capture, output and interpretation. Spoken and manual commands share one
// dispatch path.
type SessionController struct {
	modes       *ModeState
	capture     *CaptureLoop
	output      *OutputCoordinator
	interpreter CommandInterpreter
	notifier    ports.Notifier
	clock       ports.Clock
	display     *transcriptDisplay
	cfg         SessionConfig
	logger      *slog.Logger

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	route       string
	searching   bool
	welcome     ports.Timer
	lastOutcome domain.Outcome
	unsubscribe []func()
}

func NewSessionController(
	modes *ModeState,
	capture *CaptureLoop,
	output *OutputCoordinator,
	interpreter CommandInterpreter,
	events ports.EventSink,
	notifier ports.Notifier,
	clock ports.Clock,
	cfg SessionConfig,
	logger *slog.Logger,
) *SessionController {
	if cfg.WelcomeDelay < 0 {
		cfg.WelcomeDelay = 2 * time.Second
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &SessionController{
		modes:       modes,
		capture:     capture,
		output:      output,
		interpreter: interpreter,
		notifier:    notifier,
		clock:       clock,
		display:     newTranscriptDisplay(events, cfg.DisplayWindow),
		cfg:         cfg,
		logger:      logging.Component(logger, "session"),
		route:       "/",
	}
}

// Start wires the session and begins listening when in voice mode. Missing
// capabilities degrade the session to manual commands; they are reported
// but do not fail Start.
func (c *SessionController) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.ctx = ctx
	c.unsubscribe = []func(){
		c.capture.Subscribe(c.display.Show),
		c.capture.Subscribe(c.handleTranscript),
		c.capture.OnStateChange(c.handleCaptureState),
		c.modes.OnChange(c.handleModeChange),
	}
	if c.cfg.Welcome {
		c.welcome = c.clock.AfterFunc(c.cfg.WelcomeDelay, c.sayWelcome)
	}
	c.mu.Unlock()

	mode := c.modes.Mode()
	c.logger.Info("voice session started", "mode", mode)
	if mode == domain.ModeVoice {
		c.listen()
	}
	return nil
}

// Stop releases capture and output. It is safe to call more than once.
func (c *SessionController) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.searching = false
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	if c.welcome != nil {
		c.welcome.Stop()
		c.welcome = nil
	}
	c.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	c.capture.Stop()
	c.output.Cancel()
	c.logger.Info("voice session stopped")
}

// ManualCommand runs command through the spoken-command path. It works in
// every mode.
func (c *SessionController) ManualCommand(command string) (domain.Outcome, error) {
	if !c.isStarted() {
		return domain.Outcome{}, ErrNotStarted
	}
	return c.dispatch(command), nil
}

// SetMode is the user-facing mode selector.
func (c *SessionController) SetMode(mode domain.AccessibilityMode) (bool, error) {
	if _, ok := domain.ParseMode(string(mode)); !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return c.modes.SetMode(mode), nil
}

// RouteChanged records the visible route and announces it in voice mode.
func (c *SessionController) RouteChanged(path string) {
	route := cleanRoute(path)
	c.mu.Lock()
	c.route = route
	started := c.started
	c.mu.Unlock()

	if started && c.modes.Mode() == domain.ModeVoice {
		c.output.Speak(RouteAnnouncement(route))
	}
}

// VoiceSearch preempts continuous listening with one bounded listen. The
// transcript is dispatched as a search and continuous listening resumes.
func (c *SessionController) VoiceSearch(ctx context.Context) error {
	if !c.isStarted() {
		return ErrNotStarted
	}
	if !c.capture.Supported() {
		return ErrCapabilityUnsupported
	}
	if c.capture.CheckPermission(ctx) != domain.PermissionGranted {
		return ErrPermissionRequired
	}

	c.output.Cancel()
	c.setSearching(true)
	if err := c.capture.StartMode(domain.CaptureSingleShot); err != nil {
		c.setSearching(false)
		return err
	}
	c.notifier.Notify(domain.Notification{Kind: domain.NotifyInfo, Message: "Listening... Say what you want to search for"})
	return nil
}

// RetryPermission asks for microphone access again after a denial.
func (c *SessionController) RetryPermission(ctx context.Context) domain.Permission {
	perm := c.capture.RetryPermission(ctx)
	if perm == domain.PermissionGranted && c.isStarted() && c.modes.Mode() == domain.ModeVoice {
		if err := c.capture.Start(); err != nil {
			c.logger.Warn("capture did not start after permission retry", "error", err)
		}
	}
	return perm
}

// Status summarizes the session for the UI.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	route := c.route
	last := c.lastOutcome
	c.mu.Unlock()

	session := c.capture.Session()
	return domain.Status{
		Mode:       c.modes.Mode(),
		Capture:    session,
		Listening:  session.Status == domain.CaptureListening,
		Speaking:   c.output.Speaking(),
		Route:      route,
		Transcript: c.display.Current(),
		Message:    last.Spoken,
	}
}

// dispatch barges in on any speech and interprets command.
func (c *SessionController) dispatch(command string) domain.Outcome {
	c.output.Cancel()
	outcome := c.interpreter.Interpret(command)
	if outcome.Kind != domain.OutcomeDropped {
		c.mu.Lock()
		c.lastOutcome = outcome
		c.mu.Unlock()
	}
	return outcome
}

func (c *SessionController) handleTranscript(t domain.Transcript) {
	if t.Mode == domain.CaptureSingleShot && c.takeSearching() {
		c.dispatch("search for " + t.Text)
		return
	}
	// the mode may have changed since the transcript was captured
	if c.modes.Mode() != domain.ModeVoice {
		c.logger.Debug("transcript ignored outside voice mode", "mode", c.modes.Mode())
		return
	}
	c.dispatch(t.Text)
}

// handleCaptureState resumes continuous listening once a voice search ends.
func (c *SessionController) handleCaptureState(session domain.CaptureSession, reason domain.CaptureReason) {
	if session.Mode != domain.CaptureSingleShot || session.Status != domain.CaptureIdle {
		return
	}
	switch reason {
	case domain.CaptureReasonTranscript, domain.CaptureReasonTimeout,
		domain.CaptureReasonRetriesExhausted, domain.CaptureReasonNaturalEnd,
		domain.CaptureReasonTransientError:
	default:
		return
	}

	c.setSearching(false)
	if !c.isStarted() || c.modes.Mode() != domain.ModeVoice {
		return
	}
	if err := c.capture.StartMode(domain.CaptureContinuous); err != nil {
		c.logger.Warn("continuous capture did not resume", "error", err)
	}
}

func (c *SessionController) handleModeChange(from, to domain.AccessibilityMode) {
	c.logger.Info("accessibility mode changed", "from", from, "to", to)
	if to == domain.ModeVoice {
		c.listen()
		c.mu.Lock()
		route := c.route
		c.mu.Unlock()
		c.output.Speak(RouteAnnouncement(route))
		return
	}
	if from == domain.ModeVoice {
		c.setSearching(false)
		c.capture.Stop()
	}
}

func (c *SessionController) listen() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	// an unsupported platform is reported by Start without a permission prompt
	if c.capture.Supported() && c.capture.CheckPermission(ctx) != domain.PermissionGranted {
		return
	}
	if err := c.capture.Start(); err != nil {
		c.logger.Warn("capture did not start", "error", err)
	}
}

func (c *SessionController) sayWelcome() {
	c.mu.Lock()
	c.welcome = nil
	started := c.started
	c.mu.Unlock()
	if !started {
		return
	}

	c.output.Speak(welcomeMessage)
	c.notifier.Notify(domain.Notification{
		Kind:        domain.NotifySuccess,
		Message:     "Voice Assistant Activated",
		Description: "Say \"Help\" anytime to hear available commands",
		Duration:    5 * time.Second,
	})
}

func (c *SessionController) isStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *SessionController) setSearching(searching bool) {
	c.mu.Lock()
	c.searching = searching
	c.mu.Unlock()
}

func (c *SessionController) takeSearching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	searching := c.searching
	c.searching = false
	return searching
}
