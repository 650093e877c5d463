package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Language-model vendor. The API key is intentionally not validated at
	// load time: its absence is a per-request configuration error (500), the
	// same contract the serverless deployment had.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string

	// Speech vendor. Either a region (URL derived from it) or an explicit
	// endpoint is a valid operator configuration; the endpoint wins when
	// both are set.
	SpeechKey      string
	SpeechRegion   string
	SpeechEndpoint string
	Locale         string

	// Optional YAML file overriding the built-in persona instruction.
	PersonaFile string

	MaxBodyBytes int64

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Every vendor call runs under this timeout so a hung vendor cannot
	// hang a relay request indefinitely.
	UpstreamTimeout               time.Duration
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("CLASSBOT_ADDR", ":8080"),
		OpenAIAPIKey:                  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:                 envOr("CLASSBOT_OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:                         envOr("CLASSBOT_MODEL", "gpt-4o"),
		SpeechKey:                     strings.TrimSpace(os.Getenv("SPEECH_KEY")),
		SpeechRegion:                  strings.TrimSpace(os.Getenv("SPEECH_REGION")),
		SpeechEndpoint:                strings.TrimSpace(os.Getenv("SPEECH_ENDPOINT")),
		Locale:                        envOr("CLASSBOT_LOCALE", "ja-JP"),
		PersonaFile:                   strings.TrimSpace(os.Getenv("CLASSBOT_PERSONA_FILE")),
		MaxBodyBytes:                  envInt64Or("CLASSBOT_MAX_BODY_BYTES", 8<<20), // 8 MiB; enrollment audio is the largest body
		CORSAllowedOrigins:            make(map[string]struct{}),
		ReadHeaderTimeout:             envDurationOr("CLASSBOT_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                   envDurationOr("CLASSBOT_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:           envDurationOr("CLASSBOT_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamTimeout:               envDurationOr("CLASSBOT_UPSTREAM_TIMEOUT", 60*time.Second),
		UpstreamConnectTimeout:        envDurationOr("CLASSBOT_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("CLASSBOT_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("CLASSBOT_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.Model) == "" {
		return Config{}, fmt.Errorf("CLASSBOT_MODEL must not be empty")
	}
	if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
		return Config{}, fmt.Errorf("CLASSBOT_OPENAI_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.Locale) == "" {
		return Config{}, fmt.Errorf("CLASSBOT_LOCALE must not be empty")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("CLASSBOT_MAX_BODY_BYTES must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CLASSBOT_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("CLASSBOT_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CLASSBOT_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamTimeout <= 0 {
		return Config{}, fmt.Errorf("CLASSBOT_UPSTREAM_TIMEOUT must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("CLASSBOT_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CLASSBOT_RESPONSE_HEADER_TIMEOUT must be > 0")
	}

	return cfg, nil
}

// SpeechConfigured reports whether the speech vendor is usable: a key plus
// either a region or an explicit endpoint.
func (c Config) SpeechConfigured() bool {
	return c.SpeechKey != "" && (c.SpeechRegion != "" || c.SpeechEndpoint != "")
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
