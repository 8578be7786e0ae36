package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds everything the relay needs at startup. Secrets only come from
// the environment; the optional TOML file carries tunables.
type Config struct {
	LineChannelSecret      string `toml:"-"`
	LineChannelAccessToken string `toml:"-"`
	LineAPIBase            string `toml:"lineApiBase"`

	AI AIConfig `toml:"ai"`

	Port    string `toml:"port"`
	DataDir string `toml:"dataDir"`

	LogLevel  string `toml:"logLevel"`
	LogFormat string `toml:"logFormat"`
	LogFile   string `toml:"logFile"`
}

// AIConfig selects the provider and how its answers are read.
type AIConfig struct {
	APIKey     string        `toml:"-"`
	Provider   string        `toml:"provider"`   // gemini | openai | genai
	Endpoint   string        `toml:"endpoint"`   // full URL for HTTP providers, base URL for genai
	Model      string        `toml:"model"`
	AnswerMode string        `toml:"answerMode"` // text | raw
	AuthMode   string        `toml:"authMode"`   // query | bearer | header
	AuthParam  string        `toml:"authParam"`  // query param or header name
	Timeout    time.Duration `toml:"timeout"`
}

const (
	defaultPort        = "3000"
	defaultLineAPIBase = "https://api.line.me"
	defaultProvider    = "gemini"
	defaultModel       = "gemini-2.0-flash"
	defaultAnswerMode  = "text"
	defaultAITimeout   = 30 * time.Second
)

// Load reads .env (if present), then the TOML file at path (if non-empty),
// then environment overrides, and validates required secrets.
func Load(path string) (*Config, error) {
	// .env is optional; env vars may already be set (e.g. in production)
	_ = godotenv.Load()

	cfg := &Config{}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("decoding config file %s: %w", path, err)
			}
			return nil, fmt.Errorf("config file %s not found", path)
		}
	}

	cfg.LineChannelSecret = os.Getenv("LINE_CHANNEL_SECRET")
	cfg.LineChannelAccessToken = os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")
	cfg.AI.APIKey = os.Getenv("AI_API_KEY")

	overrideString(&cfg.LineAPIBase, "LINE_API_BASE")
	overrideString(&cfg.AI.Provider, "AI_PROVIDER")
	overrideString(&cfg.AI.Endpoint, "AI_ENDPOINT")
	overrideString(&cfg.AI.Model, "AI_MODEL")
	overrideString(&cfg.AI.AnswerMode, "AI_ANSWER_MODE")
	overrideString(&cfg.AI.AuthMode, "AI_AUTH_MODE")
	overrideString(&cfg.AI.AuthParam, "AI_AUTH_PARAM")
	overrideString(&cfg.Port, "PORT")
	overrideString(&cfg.DataDir, "DATA_DIR")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.LogFormat, "LOG_FORMAT")
	overrideString(&cfg.LogFile, "LOG_FILE")

	if v := os.Getenv("AI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing AI_TIMEOUT: %w", err)
		}
		cfg.AI.Timeout = d
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.LineAPIBase == "" {
		c.LineAPIBase = defaultLineAPIBase
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}

	c.AI.Provider = strings.ToLower(c.AI.Provider)
	if c.AI.Provider == "" {
		c.AI.Provider = defaultProvider
	}
	if c.AI.Model == "" && c.AI.Provider != "openai" {
		c.AI.Model = defaultModel
	}
	if c.AI.AnswerMode == "" {
		c.AI.AnswerMode = defaultAnswerMode
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = defaultAITimeout
	}
}

func (c *Config) validate() error {
	for _, req := range []struct {
		name, val string
	}{
		{"LINE_CHANNEL_SECRET", c.LineChannelSecret},
		{"LINE_CHANNEL_ACCESS_TOKEN", c.LineChannelAccessToken},
		{"AI_API_KEY", c.AI.APIKey},
	} {
		if req.val == "" {
			return fmt.Errorf("required env var %s is not set", req.name)
		}
	}

	switch c.AI.Provider {
	case "gemini", "openai", "genai":
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AI.Provider)
	}

	switch c.AI.AnswerMode {
	case "text", "raw":
	default:
		return fmt.Errorf("unknown AI_ANSWER_MODE %q", c.AI.AnswerMode)
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
