package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the widget backend.
type Config struct {
	Gemini   GeminiConfig
	Webhook  WebhookConfig
	Audio    AudioConfig
	Schedule ScheduleConfig
	Session  SessionConfig
	Server   ServerConfig
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	SiteContext string
}

type WebhookConfig struct {
	URL string
}

type AudioConfig struct {
	RecorderCommand string
	PlayerCommand   string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type ScheduleConfig struct {
	Year     int
	Timezone string
	Slots    []string
}

type SessionConfig struct {
	DispatchTimeout time.Duration
}

type ServerConfig struct {
	Addr string
	Env  string
}

// DefaultSiteContext describes the embedding site for the fallback model prompt.
const DefaultSiteContext = "BetriebsIntelligenz ist eine Wissensdatenbank für Geschäftsprozesse. " +
	"Der Assistent beantwortet Fragen zu Prozessdokumentation, Modulen und Preisen und hilft bei der Terminvereinbarung."

var defaultSlots = []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Gemini: GeminiConfig{
			APIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:       envOrDefault("VOICEWIDGET_GEMINI_MODEL", "gemini-2.5-flash"),
			SiteContext: envOrDefault("VOICEWIDGET_SITE_CONTEXT", DefaultSiteContext),
		},
		Webhook: WebhookConfig{
			URL: strings.TrimSpace(os.Getenv("VOICEWIDGET_WEBHOOK_URL")),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("VOICEWIDGET_FFMPEG_COMMAND", "ffmpeg"),
			PlayerCommand:   envOrDefault("VOICEWIDGET_FFPLAY_COMMAND", "ffplay"),
			InputFormat:     envOrDefault("VOICEWIDGET_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("VOICEWIDGET_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("VOICEWIDGET_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("VOICEWIDGET_CHANNELS", 1),
		},
		Schedule: ScheduleConfig{
			Year:     envOrDefaultInt("VOICEWIDGET_SCHEDULE_YEAR", 2026),
			Timezone: envOrDefault("VOICEWIDGET_TIMEZONE", "Europe/Berlin"),
			Slots:    envOrDefaultList("VOICEWIDGET_TIME_SLOTS", defaultSlots),
		},
		Session: SessionConfig{
			DispatchTimeout: time.Duration(envOrDefaultInt("VOICEWIDGET_DISPATCH_TIMEOUT_MS", 30000)) * time.Millisecond,
		},
		Server: ServerConfig{
			Addr: envOrDefault("VOICEWIDGET_ADDR", ":8080"),
			Env:  envOrDefault("VOICEWIDGET_ENV", "dev"),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Schedule.Year < 2000 || cfg.Schedule.Year > 2100 {
		return Config{}, errors.New("schedule year out of range")
	}
	if len(cfg.Schedule.Slots) == 0 {
		cfg.Schedule.Slots = defaultSlots
	}
	if cfg.Session.DispatchTimeout <= 0 {
		cfg.Session.DispatchTimeout = 30 * time.Second
	}

	return cfg, nil
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

func envOrDefaultList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
