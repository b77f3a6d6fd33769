package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all rtms-tutor environment variables.
const EnvPrefix = "RTMS_TUTOR_"

var knownProviders = map[string]bool{"gemini": true, "openai": true, "anthropic": true}

// Config holds all application configuration. Secrets are loaded exclusively
// from environment variables and never appear in the config file.
type Config struct {
	ListenAddr         string   `yaml:"listen_addr"`
	LogLevel           string   `yaml:"log_level"`
	LogFormat          string   `yaml:"log_format"`
	ReviewInterval     string   `yaml:"review_interval"`
	Model              string   `yaml:"model"`
	ExplainModel       string   `yaml:"explain_model"`
	TranslateLanguage  string   `yaml:"translate_language"`
	ExplainConcurrency int      `yaml:"explain_concurrency"`
	MediaType          int      `yaml:"media_type"`
	DialTimeout        string   `yaml:"dial_timeout"`
	InsecureMediaTLS   bool     `yaml:"insecure_media_tls"`
	Deepgram           Deepgram `yaml:"deepgram"`

	// Secrets, env vars only.
	ZoomSecretToken string `yaml:"-"`
	ClientID        string `yaml:"-"`
	ClientSecret    string `yaml:"-"`
	LLMAPIKey       string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
}

// Deepgram configures transcription of raw media frames.
type Deepgram struct {
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	Encoding   string `yaml:"encoding"`
}

func defaults() Config {
	return Config{
		ListenAddr:         ":3000",
		LogLevel:           "info",
		LogFormat:          "json",
		ReviewInterval:     "10s",
		Model:              "gemini/gemini-2.0-flash",
		TranslateLanguage:  "Spanish",
		ExplainConcurrency: 4,
		MediaType:          8,
		DialTimeout:        "10s",
		Deepgram: Deepgram{
			Model:      "nova-2",
			Language:   "en-US",
			SampleRate: 16000,
			Encoding:   "linear16",
		},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedReviewInterval returns ReviewInterval as a time.Duration, falling
// back to 10s if the value is invalid.
func (c *Config) ParsedReviewInterval() time.Duration {
	return parseDuration(c.ReviewInterval, 10*time.Second)
}

// ParsedDialTimeout returns DialTimeout as a time.Duration, falling back to
// 10s if the value is invalid.
func (c *Config) ParsedDialTimeout() time.Duration {
	return parseDuration(c.DialTimeout, 10*time.Second)
}

// ExplainModelRef is the model for vocabulary help, which defaults to the
// review model.
func (c *Config) ExplainModelRef() string {
	if c.ExplainModel != "" {
		return c.ExplainModel
	}
	return c.Model
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	setString("LISTEN_ADDR", &cfg.ListenAddr)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("LOG_FORMAT", &cfg.LogFormat)
	setString("REVIEW_INTERVAL", &cfg.ReviewInterval)
	setString("MODEL", &cfg.Model)
	setString("EXPLAIN_MODEL", &cfg.ExplainModel)
	setString("TRANSLATE_LANGUAGE", &cfg.TranslateLanguage)
	setInt("EXPLAIN_CONCURRENCY", &cfg.ExplainConcurrency)
	setInt("MEDIA_TYPE", &cfg.MediaType)
	setString("DIAL_TIMEOUT", &cfg.DialTimeout)
	if v := os.Getenv(EnvPrefix + "INSECURE_MEDIA_TLS"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.InsecureMediaTLS = b
		}
	}
	setString("DEEPGRAM_MODEL", &cfg.Deepgram.Model)
	setString("DEEPGRAM_LANGUAGE", &cfg.Deepgram.Language)
	setInt("DEEPGRAM_SAMPLE_RATE", &cfg.Deepgram.SampleRate)
	setString("DEEPGRAM_ENCODING", &cfg.Deepgram.Encoding)
}

func loadSecrets(cfg *Config) {
	cfg.ZoomSecretToken = os.Getenv(EnvPrefix + "ZOOM_SECRET_TOKEN")
	cfg.ClientID = os.Getenv(EnvPrefix + "CLIENT_ID")
	cfg.ClientSecret = os.Getenv(EnvPrefix + "CLIENT_SECRET")
	cfg.LLMAPIKey = os.Getenv(EnvPrefix + "LLM_API_KEY")
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		warnings = append(warnings, "Client credentials not configured: stream handshakes will be rejected. Set "+EnvPrefix+"CLIENT_ID and "+EnvPrefix+"CLIENT_SECRET.")
	}
	if cfg.ZoomSecretToken == "" {
		warnings = append(warnings, "Webhook secret token not configured: webhook requests are not verified. Set "+EnvPrefix+"ZOOM_SECRET_TOKEN.")
	}
	if cfg.LLMAPIKey == "" {
		warnings = append(warnings, "LLM API key not configured: reviews and explanations will use fallback text. Set "+EnvPrefix+"LLM_API_KEY.")
	}
	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured: raw audio frames will be dropped. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	for _, d := range []struct{ key, value, fallback string }{
		{"review_interval", cfg.ReviewInterval, "10s"},
		{"dial_timeout", cfg.DialTimeout, "10s"},
	} {
		if v, err := time.ParseDuration(d.value); err != nil || v <= 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q: using default %s.", d.key, d.value, d.fallback))
		}
	}
	for _, m := range []struct{ key, value string }{
		{"model", cfg.Model},
		{"explain_model", cfg.ExplainModel},
	} {
		if m.value == "" {
			continue
		}
		if provider, name, ok := strings.Cut(m.value, "/"); !ok || name == "" || !knownProviders[provider] {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q: expected provider/model with provider gemini, openai or anthropic.", m.key, m.value))
		}
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown log_format %q: using json.", cfg.LogFormat))
	}

	return warnings
}
