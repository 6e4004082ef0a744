package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/PabloGalante/keepsake/internal/domain"
	"github.com/PabloGalante/keepsake/internal/retry"
)

const envPrefix = "KEEPSAKE"

type StorageBackend string

const (
	StorageMemory    StorageBackend = "memory"
	StorageSQLite    StorageBackend = "sqlite"
	StorageFirestore StorageBackend = "firestore"
)

// RetryConfig is the budget of one generation call site.
type RetryConfig struct {
	Retries int
	Delay   time.Duration
}

// Policy converts the budget into a retry policy on rate-limit errors.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{MaxRetries: r.Retries, InitialDelay: r.Delay, Multiplier: 2}
}

// Config is read from KEEPSAKE_* variables. Every field also accepts the
// unprefixed name (API_KEY, PORT, ...).
type Config struct {
	APIKey     string `envconfig:"API_KEY"`
	UseMockLLM bool   `envconfig:"USE_MOCK_LLM" default:"false"`

	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	LetterModel      string `envconfig:"LETTER_MODEL" default:"gemini-2.5-flash"`
	ImageModel       string `envconfig:"IMAGE_MODEL" default:"gemini-2.5-flash-image"`
	VoiceModel       string `envconfig:"VOICE_MODEL" default:"gemini-2.5-flash-preview-tts"`
	VoiceName        string `envconfig:"VOICE_NAME" default:"Kore"`
	ImageAspectRatio string `envconfig:"IMAGE_ASPECT_RATIO" default:"16:9"`

	RevealMode   string `envconfig:"REVEAL_MODE" default:"background"`
	LetterFormat string `envconfig:"LETTER_FORMAT" default:"text"`
	Grounding    bool   `envconfig:"GROUNDING" default:"false"`

	LetterRetries    int           `envconfig:"LETTER_RETRIES" default:"3"`
	LetterRetryDelay time.Duration `envconfig:"LETTER_RETRY_DELAY" default:"2s"`
	ImageRetries     int           `envconfig:"IMAGE_RETRIES" default:"2"`
	ImageRetryDelay  time.Duration `envconfig:"IMAGE_RETRY_DELAY" default:"2s"`
	VoiceRetries     int           `envconfig:"VOICE_RETRIES" default:"1"`
	VoiceRetryDelay  time.Duration `envconfig:"VOICE_RETRY_DELAY" default:"1s"`

	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"1h"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"keepsake.db"`
	GCPProjectID   string `envconfig:"GCP_PROJECT" default:""`
}

func (c *Config) LetterRetry() RetryConfig {
	return RetryConfig{Retries: c.LetterRetries, Delay: c.LetterRetryDelay}
}

func (c *Config) ImageRetry() RetryConfig {
	return RetryConfig{Retries: c.ImageRetries, Delay: c.ImageRetryDelay}
}

func (c *Config) VoiceRetry() RetryConfig {
	return RetryConfig{Retries: c.VoiceRetries, Delay: c.VoiceRetryDelay}
}

func (c *Config) Reveal() domain.RevealMode {
	if domain.RevealMode(c.RevealMode) == domain.RevealSequential {
		return domain.RevealSequential
	}
	return domain.RevealBackground
}

func (c *Config) Format() domain.LetterFormat {
	if domain.LetterFormat(c.LetterFormat) == domain.LetterFormatJSON {
		return domain.LetterFormatJSON
	}
	return domain.LetterFormatText
}

func (c *Config) Storage() StorageBackend {
	return StorageBackend(c.StorageBackend)
}

// Validate checks the values envconfig cannot check by itself.
func (c *Config) Validate() error {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey == "" && !c.UseMockLLM {
		return domain.ErrMissingCredential
	}

	switch domain.RevealMode(c.RevealMode) {
	case domain.RevealBackground, domain.RevealSequential:
	default:
		return fmt.Errorf("unsupported REVEAL_MODE: %q", c.RevealMode)
	}

	switch domain.LetterFormat(c.LetterFormat) {
	case domain.LetterFormatText, domain.LetterFormatJSON:
	default:
		return fmt.Errorf("unsupported LETTER_FORMAT: %q", c.LetterFormat)
	}

	switch c.Storage() {
	case StorageMemory, StorageSQLite:
	case StorageFirestore:
		if c.GCPProjectID == "" {
			return fmt.Errorf("KEEPSAKE_GCP_PROJECT is required for firestore storage")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %q", c.StorageBackend)
	}

	for name, r := range map[string]RetryConfig{"LETTER": c.LetterRetry(), "IMAGE": c.ImageRetry(), "VOICE": c.VoiceRetry()} {
		if r.Retries < 0 || r.Delay < 0 {
			return fmt.Errorf("%s retry budget must not be negative", name)
		}
	}
	return nil
}

// Process reads all env vars without validating them, so callers can apply
// overrides (CLI flags) first.
func Process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	return &cfg, nil
}

// Load reads all env vars and builds the config. A missing API key fails
// here, before any client is created.
func Load() (*Config, error) {
	cfg, err := Process()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
