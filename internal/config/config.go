package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ablevoice/internal/domain"
)

// Platform selects the speech adapters.
type Platform string

const (
	// PlatformWebview drives the browser speech APIs of the frontend.
	PlatformWebview Platform = "webview"
	// PlatformDesktop records with ffmpeg, recognizes with Deepgram and
	// speaks through a local TTS command.
	PlatformDesktop Platform = "desktop"
)

// Config stores runtime configuration for the voice assistant.
type Config struct {
	Platform    Platform
	Language    string
	InitialMode domain.AccessibilityMode
	Capture     CaptureConfig
	Output      OutputConfig
	Session     SessionConfig
	Rules       RulesConfig
	Deepgram    DeepgramConfig
	Audio       AudioConfig
	Web         WebConfig
	Log         LogConfig
}

type CaptureConfig struct {
	RestartDelay    time.Duration
	RetryDelay      time.Duration
	MaxRetries      int
	NoSpeechTimeout time.Duration
}

type OutputConfig struct {
	Voices     []string
	Rate       float64
	Pitch      float64
	Volume     float64
	TTSCommand string
}

type SessionConfig struct {
	Welcome           bool
	WelcomeDelay      time.Duration
	TranscriptDisplay time.Duration
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type WebConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	rulesPath := strings.TrimSpace(os.Getenv("ABLEVOICE_ALIASES_FILE"))
	if rulesPath == "" {
		rulesPath = firstExisting(
			filepath.Join(home, ".config", "ablevoice", "aliases.rules"),
			filepath.Join(home, ".ablevoice", "aliases.rules"),
		)
	}

	platform := Platform(strings.ToLower(envOrDefault("ABLEVOICE_PLATFORM", string(PlatformWebview))))
	if platform != PlatformWebview && platform != PlatformDesktop {
		return Config{}, fmt.Errorf("unsupported ABLEVOICE_PLATFORM %q", platform)
	}

	initialMode, ok := domain.ParseMode(strings.ToLower(envOrDefault("ABLEVOICE_INITIAL_MODE", string(domain.ModeVoice))))
	if !ok {
		initialMode = domain.ModeVoice
	}

	language := envOrDefault("ABLEVOICE_LANGUAGE", "en-US")

	cfg := Config{
		Platform:    platform,
		Language:    language,
		InitialMode: initialMode,
		Capture: CaptureConfig{
			RestartDelay:    millis(firstNonNegativeInt(100, "ABLEVOICE_RESTART_DELAY_MS")),
			RetryDelay:      millis(firstNonNegativeInt(1000, "ABLEVOICE_RETRY_DELAY_MS")),
			MaxRetries:      firstNonNegativeInt(2, "ABLEVOICE_MAX_RETRIES"),
			NoSpeechTimeout: millis(firstNonNegativeInt(5000, "ABLEVOICE_NO_SPEECH_TIMEOUT_MS")),
		},
		Output: OutputConfig{
			Voices:     splitList(envOrDefault("ABLEVOICE_VOICES", "Google US English,Samantha,Microsoft Zira")),
			Rate:       envOrDefaultFloat("ABLEVOICE_SPEECH_RATE", 1),
			Pitch:      envOrDefaultFloat("ABLEVOICE_SPEECH_PITCH", 1),
			Volume:     envOrDefaultFloat("ABLEVOICE_SPEECH_VOLUME", 1),
			TTSCommand: envOrDefault("ABLEVOICE_TTS_COMMAND", "espeak-ng"),
		},
		Session: SessionConfig{
			Welcome:           envOrDefaultBool("ABLEVOICE_WELCOME", true),
			WelcomeDelay:      millis(firstNonNegativeInt(2000, "ABLEVOICE_WELCOME_DELAY_MS")),
			TranscriptDisplay: millis(firstNonNegativeInt(2000, "ABLEVOICE_TRANSCRIPT_DISPLAY_MS")),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("ABLEVOICE_ALIAS_ITERATION_LIMIT", 30),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    firstNonEmpty(os.Getenv("DEEPGRAM_LANGUAGE"), language),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", false),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("ABLEVOICE_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("ABLEVOICE_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("ABLEVOICE_AUDIO_INPUT_DEVICE"),
				os.Getenv("DEEPGRAM_PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("ABLEVOICE_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("ABLEVOICE_CHANNELS", 1),
		},
		Web: WebConfig{
			Addr: strings.TrimSpace(os.Getenv("ABLEVOICE_WEB_ADDR")),
		},
		Log: LogConfig{
			Level:  envOrDefault("ABLEVOICE_LOG_LEVEL", "info"),
			Format: envOrDefault("ABLEVOICE_LOG_FORMAT", "text"),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Output.Rate <= 0 || cfg.Output.Rate > 10 {
		cfg.Output.Rate = 1
	}
	if cfg.Output.Pitch <= 0 || cfg.Output.Pitch > 2 {
		cfg.Output.Pitch = 1
	}
	if cfg.Output.Volume <= 0 || cfg.Output.Volume > 1 {
		cfg.Output.Volume = 1
	}

	return cfg, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// firstNonNegativeInt returns the first key holding a valid non-negative
// integer.
func firstNonNegativeInt(fallback int, keys ...string) int {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}
