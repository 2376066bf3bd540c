// Package deepgram recognizes microphone audio with Deepgram's live
// streaming API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ablevoice/internal/domain"
	"ablevoice/internal/logging"
	"ablevoice/internal/ports"
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1"
	defaultModel   = "nova-2"
	chunkSize      = 3200
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Recognizer implements ports.Recognizer on top of a microphone capture
// and one Deepgram websocket per handle.
type Recognizer struct {
	cfg     Config
	capture ports.AudioCapture
	audio   ports.AudioConfig
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

func NewRecognizer(cfg Config, capture ports.AudioCapture, audio ports.AudioConfig, logger *slog.Logger) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Recognizer{
		cfg:     cfg,
		capture: capture,
		audio:   audio,
		dialer:  websocket.DefaultDialer,
		logger:  logging.Component(logger, "deepgram"),
	}
}

// Supported reports whether a key and a microphone are configured.
func (r *Recognizer) Supported() bool {
	return r.capture != nil && strings.TrimSpace(r.cfg.APIKey) != ""
}

func (r *Recognizer) NewHandle(cfg ports.RecognizerConfig) (ports.RecognitionHandle, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}
	if r.capture == nil {
		return nil, errors.New("no microphone capture configured")
	}
	return &handle{id: uuid.NewString(), r: r, cfg: cfg}, nil
}

// handle runs asynchronously once started. Errors are reported through
// OnError and every started handle reports OnEnd exactly once.
type handle struct {
	id  string
	r   *Recognizer
	cfg ports.RecognizerConfig

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	session  ports.AudioSession
	conn     *websocket.Conn
	onResult func(text string)
	onError  func(kind domain.RecognitionErrorKind, detail string)
	onEnd    func()
}

func (h *handle) ID() string { return h.id }

func (h *handle) OnResult(fn func(text string)) {
	h.mu.Lock()
	h.onResult = fn
	h.mu.Unlock()
}

func (h *handle) OnError(fn func(kind domain.RecognitionErrorKind, detail string)) {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
}

func (h *handle) OnEnd(fn func()) {
	h.mu.Lock()
	h.onEnd = fn
	h.mu.Unlock()
}

func (h *handle) Start() error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return errors.New("recognition handle already started")
	}
	if h.stopped {
		h.mu.Unlock()
		return errors.New("recognition handle already stopped")
	}
	h.started = true
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.mu.Unlock()

	go h.run(ctx)
	return nil
}

// Stop releases the microphone and the socket. It never blocks on the
// handle's goroutines, so it may be called from inside a callback.
func (h *handle) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	cancel, session, conn := h.cancel, h.session, h.conn
	h.mu.Unlock()

	release(cancel, session, conn)
	return nil
}

func (h *handle) run(ctx context.Context) {
	defer h.finish()

	session, err := h.r.capture.Start(ctx, h.r.audio)
	if err != nil {
		if ctx.Err() == nil {
			h.fail(domain.RecognitionAudioCapture, err.Error())
		}
		return
	}
	if !h.attach(func() { h.session = session }) {
		_ = session.Stop()
		return
	}

	wsURL, err := buildListenURL(h.r.cfg, h.r.audio, h.cfg)
	if err != nil {
		h.fail(domain.RecognitionNetwork, err.Error())
		return
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+h.r.cfg.APIKey)

	conn, resp, err := h.r.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if ctx.Err() == nil {
			h.fail(dialErrorKind(resp), fmt.Sprintf("failed to connect to Deepgram websocket: %v", err))
		}
		return
	}
	if !h.attach(func() { h.conn = conn }) {
		_ = conn.Close()
		return
	}

	go h.pump(ctx, session, conn)
	h.read(conn)
}

// attach stores a resource unless the handle was stopped meanwhile.
func (h *handle) attach(set func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	set()
	return true
}

func (h *handle) finish() {
	h.mu.Lock()
	h.stopped = true
	cancel, session, conn := h.cancel, h.session, h.conn
	onEnd := h.onEnd
	h.mu.Unlock()

	release(cancel, session, conn)
	h.r.logger.Debug("recognition handle ended", "handle", h.id)
	if onEnd != nil {
		onEnd()
	}
}

func release(cancel context.CancelFunc, session ports.AudioSession, conn *websocket.Conn) {
	if cancel != nil {
		cancel()
	}
	if session != nil {
		_ = session.Stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// pump forwards microphone audio until the recorder ends, then asks
// Deepgram to flush and close the stream.
func (h *handle) pump(ctx context.Context, session ports.AudioSession, conn *websocket.Conn) {
	buf := make([]byte, chunkSize)
	for {
		n, err := session.Read(buf)
		if n > 0 {
			if writeErr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); writeErr != nil {
				return
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) {
				h.fail(domain.RecognitionAudioCapture, fmt.Sprintf("failed to read microphone audio: %v", err))
				return
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
			return
		}
	}
}

// read collects final segments and reports them as one result when
// Deepgram marks the end of speech. A single-shot handle ends there.
func (h *handle) read(conn *websocket.Conn) {
	var segments []string
	flush := func() bool {
		text := strings.TrimSpace(strings.Join(segments, " "))
		segments = segments[:0]
		if text == "" {
			return false
		}
		h.result(text)
		return !h.cfg.Continuous
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !isNormalClose(err) {
				h.fail(domain.RecognitionNetwork, fmt.Sprintf("failed to read provider event: %v", err))
			} else {
				flush()
			}
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		switch {
		case strings.EqualFold(response.Type, "Error"):
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			h.fail(domain.RecognitionNetwork, message)
			return
		case strings.EqualFold(response.Type, "UtteranceEnd"):
			if flush() {
				return
			}
			continue
		}

		if !response.IsFinal && !response.SpeechFinal {
			continue
		}
		if transcript := extractTranscript(response); transcript != "" {
			segments = append(segments, transcript)
		}
		if response.SpeechFinal && flush() {
			return
		}
	}
}

func (h *handle) result(text string) {
	h.mu.Lock()
	stopped, fn := h.stopped, h.onResult
	h.mu.Unlock()
	if stopped || fn == nil {
		return
	}
	fn(text)
}

func (h *handle) fail(kind domain.RecognitionErrorKind, detail string) {
	h.mu.Lock()
	stopped, fn := h.stopped, h.onError
	h.mu.Unlock()
	if stopped {
		return
	}
	h.r.logger.Debug("recognition error", "handle", h.id, "kind", kind, "detail", detail)
	if fn != nil {
		fn(kind, detail)
	}
}

func dialErrorKind(resp *http.Response) domain.RecognitionErrorKind {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return domain.RecognitionNotAllowed
	}
	return domain.RecognitionNetwork
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg Config, audio ports.AudioConfig, rc ports.RecognizerConfig) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if audio.SampleRate <= 0 {
		audio.SampleRate = 16000
	}
	if audio.Channels <= 0 {
		audio.Channels = 1
	}
	language := cfg.Language
	if language == "" {
		language = rc.Language
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	query := listenURL.Query()
	query.Set("model", model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", fmt.Sprintf("%d", audio.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", audio.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", rc.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if language != "" {
		query.Set("language", language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
