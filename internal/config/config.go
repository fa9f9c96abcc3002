package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// envPrefix prefixes every environment variable read by Load.
const envPrefix = "RECRUITX_"

type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Storage   StorageConfig   `envPrefix:"STORAGE_"`
	LLM       LLMConfig       `envPrefix:"LLM_"`
	Questions QuestionsConfig `envPrefix:"QUESTIONS_"`
	Twilio    TwilioConfig    `envPrefix:"TWILIO_"`
	Voice     VoiceConfig     `envPrefix:"VOICE_"`
	Scheduler SchedulerConfig `envPrefix:"SCHEDULER_"`
	Notify    NotifyConfig    `envPrefix:"NOTIFY_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Secrets   Secrets
}

type ServerConfig struct {
	Port           int    `env:"PORT"`
	Host           string `env:"HOST"`
	MaxConnections int    `env:"MAX_CONNECTIONS"`
	// PublicBaseURL is the origin Twilio uses to reach the webhooks.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

type StorageConfig struct {
	Driver       string `env:"DRIVER"`
	DataDir      string `env:"DATA_DIR"`
	DSN          string `env:"DSN"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS"`
}

type LLMConfig struct {
	BaseURL       string        `env:"BASE_URL"`
	Model         string        `env:"MODEL"`
	Timeout       time.Duration `env:"TIMEOUT"`
	QuestionCount int           `env:"QUESTION_COUNT"`
}

type QuestionsConfig struct {
	// Provider is "llm" or "static".
	Provider string `env:"PROVIDER"`
	BankPath string `env:"BANK_PATH"`
}

type TwilioConfig struct {
	FromNumber         string        `env:"FROM_NUMBER"`
	ValidateSignatures bool          `env:"VALIDATE_SIGNATURES"`
	Timeout            time.Duration `env:"TIMEOUT"`
}

type VoiceConfig struct {
	Name          string `env:"NAME"`
	Language      string `env:"LANGUAGE"`
	GatherTimeout int    `env:"GATHER_TIMEOUT"`
}

type SchedulerConfig struct {
	Enabled    bool          `env:"ENABLED"`
	Spec       string        `env:"SPEC"`
	StaleAfter time.Duration `env:"STALE_AFTER"`
}

type NotifyConfig struct {
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
}

type LogConfig struct {
	Level  string `env:"LEVEL"`
	Format string `env:"FORMAT"`
}

// Secrets are only read from the environment, never from the config file.
type Secrets struct {
	GroqAPIKey       string `env:"GROQ_API_KEY"`
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	APIToken         string `env:"API_TOKEN"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           8000,
			Host:           "0.0.0.0",
			MaxConnections: 256,
		},
		Storage: StorageConfig{
			Driver:       "sqlite",
			DataDir:      defaultDataDir(),
			MaxOpenConns: 10,
		},
		LLM: LLMConfig{
			BaseURL:       "https://api.groq.com/openai/v1",
			Model:         "llama-3.3-70b-versatile",
			Timeout:       60 * time.Second,
			QuestionCount: 5,
		},
		Questions: QuestionsConfig{
			Provider: "llm",
		},
		Twilio: TwilioConfig{
			ValidateSignatures: true,
			Timeout:            15 * time.Second,
		},
		Voice: VoiceConfig{
			Name:          "alice",
			Language:      "en-IN",
			GatherTimeout: 8,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Spec:    "@every 1m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the JSON file at
// $XDG_CONFIG_HOME/recruitx/config.json, a .env file in the working directory
// and RECRUITX_* environment variables, later sources winning.
//
// Secrets are read from RECRUITX_GROQ_API_KEY, RECRUITX_TWILIO_ACCOUNT_SID,
// RECRUITX_TWILIO_AUTH_TOKEN and RECRUITX_API_TOKEN. The unprefixed
// GROQ_API_KEY, TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are accepted too.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), ".env")
}

func loadWith(b ConfigBackend, dotenvFiles ...string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	for _, f := range dotenvFiles {
		// godotenv never overrides variables already set in the environment.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(&cfg.Secrets); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	if err := env.Parse(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// Validate checks the settings every command relies on.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required when storage.driver is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver))
	}
	switch c.Questions.Provider {
	case "llm":
	case "static":
		if c.Questions.BankPath == "" {
			errs = append(errs, errors.New("questions.bank_path is required when questions.provider is static"))
		}
	default:
		errs = append(errs, fmt.Errorf("questions.provider must be llm or static, got %q", c.Questions.Provider))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ValidateServe checks what the server needs on top of Validate: the model
// key, the Twilio account and the public URL Twilio calls back to.
func (c Config) ValidateServe() error {
	errs := []error{c.Validate()}
	if c.Secrets.GroqAPIKey == "" {
		// Reports need the model even with a static question bank.
		errs = append(errs, missing("Groq API key", "GROQ_API_KEY"))
	}
	if c.Secrets.TwilioAccountSID == "" {
		errs = append(errs, missing("Twilio account SID", "TWILIO_ACCOUNT_SID"))
	}
	if c.Secrets.TwilioAuthToken == "" {
		errs = append(errs, missing("Twilio auth token", "TWILIO_AUTH_TOKEN"))
	}
	if c.Twilio.FromNumber == "" {
		errs = append(errs, errors.New("missing required config: twilio.from_number"))
	}
	if !strings.HasPrefix(c.Server.PublicBaseURL, "http://") && !strings.HasPrefix(c.Server.PublicBaseURL, "https://") {
		errs = append(errs, errors.New("missing required config: server.public_base_url must be an absolute http(s) URL"))
	}
	return errors.Join(errs...)
}

func missing(what, name string) error {
	return fmt.Errorf("missing required config: %s. Set it via environment variable %s%s", what, envPrefix, name)
}
