package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"textdigest/internal/domain"
)

type Config struct {
	Token        string     `env:"TOKEN,required,notEmpty"`
	AllowedUsers []int64    `env:"ALLOWED_USERS"`
	DBPath       string     `env:"DB_PATH"                 envDefault:"db.sqlite"`
	LogLevel     slog.Level `env:"LOG_LEVEL"               envDefault:"INFO"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"`
	OllamaBaseURL string `env:"OLLAMA_BASE_URL"           envDefault:"http://localhost:11434"`
	OllamaModel   string `env:"OLLAMA_MODEL"              envDefault:"llama3.2:latest"`

	DefaultBackend    domain.BackendKind `env:"DEFAULT_BACKEND"     envDefault:"ollama"`
	WindowWords       int                `env:"WINDOW_WORDS"        envDefault:"1024"`
	OpenAIWindowWords int                `env:"OPENAI_WINDOW_WORDS" envDefault:"1024"`
	BackendTimeout    time.Duration      `env:"BACKEND_TIMEOUT"     envDefault:"5m"`
	MinTextChars      int                `env:"MIN_TEXT_CHARS"      envDefault:"100"`
	DefaultMaxWords   int                `env:"DEFAULT_MAX_WORDS"   envDefault:"150"`
	DefaultMinWords   int                `env:"DEFAULT_MIN_WORDS"   envDefault:"50"`

	HistoryLimit     int           `env:"HISTORY_LIMIT"     envDefault:"10"`
	HistoryRetention time.Duration `env:"HISTORY_RETENTION" envDefault:"720h"`

	SummaryCacheMaxEntries int           `env:"SUMMARY_CACHE_MAX_ENTRIES" envDefault:"256"`
	SummaryCacheTTL        time.Duration `env:"SUMMARY_CACHE_TTL"         envDefault:"24h"`

	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`
	MetricsAddr    string `env:"METRICS_ADDR"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.OllamaBaseURL = strings.TrimRight(strings.TrimSpace(cfg.OllamaBaseURL), "/")
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)

	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.WindowWords <= 0 {
		errs = append(errs, errors.New("WINDOW_WORDS must be positive"))
	}
	if c.OpenAIWindowWords <= 0 {
		errs = append(errs, errors.New("OPENAI_WINDOW_WORDS must be positive"))
	}
	if c.DefaultMaxWords <= 0 {
		errs = append(errs, errors.New("DEFAULT_MAX_WORDS must be positive"))
	}
	if c.DefaultMinWords < 0 || c.DefaultMinWords >= c.DefaultMaxWords {
		errs = append(errs, errors.New("DEFAULT_MIN_WORDS must be in [0, DEFAULT_MAX_WORDS)"))
	}
	if c.MinTextChars <= 0 {
		errs = append(errs, errors.New("MIN_TEXT_CHARS must be positive"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, errors.New("HISTORY_LIMIT must be positive"))
	}
	if c.BackendTimeout < 0 || c.HistoryRetention < 0 || c.SummaryCacheTTL < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if u, err := url.Parse(c.OllamaBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("OLLAMA_BASE_URL is not an absolute URL: %q", c.OllamaBaseURL))
	}
	if c.DefaultBackend == domain.BackendOpenAI && c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("DEFAULT_BACKEND is openai but OPENAI_API_KEY is empty"))
	}

	return errors.Join(errs...)
}

// DefaultSettings are the chat settings of chats that never changed them.
func (c Config) DefaultSettings() domain.ChatSettings {
	return domain.ChatSettings{
		Backend:  c.DefaultBackend,
		Style:    domain.StyleGeneral,
		MaxWords: c.DefaultMaxWords,
		MinWords: c.DefaultMinWords,
	}
}
