package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ISL270/multi-agent-ai-realtor/internal/calendar"
	"github.com/ISL270/multi-agent-ai-realtor/internal/turn"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: REALTOR_LLM__MODEL sets llm.model.
const EnvPrefix = "REALTOR_"

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Port     int             `koanf:"port" yaml:"port"`
	LogLevel string          `koanf:"log_level" yaml:"log_level"`
	APIToken string          `koanf:"api_token" yaml:"api_token,omitempty"`
	LLM      LLMConfig       `koanf:"llm" yaml:"llm"`
	Storage  StorageConfig   `koanf:"storage" yaml:"storage"`
	NATS     NATSConfig      `koanf:"nats" yaml:"nats"`
	Calendar calendar.Config `koanf:"calendar" yaml:"calendar"`
	Turn     TurnConfig      `koanf:"turn" yaml:"turn"`
	CORS     CORSConfig      `koanf:"cors" yaml:"cors"`
}

type LLMConfig struct {
	Provider  string `koanf:"provider" yaml:"provider"`
	Model     string `koanf:"model" yaml:"model"`
	APIKey    string `koanf:"api_key" yaml:"api_key,omitempty"`
	BaseURL   string `koanf:"base_url" yaml:"base_url,omitempty"`
	MaxTokens int    `koanf:"max_tokens" yaml:"max_tokens"`
}

type StorageConfig struct {
	Backend     string `koanf:"backend" yaml:"backend"`
	DatabaseURL string `koanf:"database_url" yaml:"database_url,omitempty"`
	SQLitePath  string `koanf:"sqlite_path" yaml:"sqlite_path"`
}

// NATSConfig enables the broker when URL is set.
type NATSConfig struct {
	URL   string `koanf:"url" yaml:"url,omitempty"`
	Token string `koanf:"token" yaml:"token,omitempty"`
}

type TurnConfig struct {
	MaxDelegations int `koanf:"max_delegations" yaml:"max_delegations"`
}

type CORSConfig struct {
	AllowAll bool `koanf:"allow_all" yaml:"allow_all"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:     8750,
		LogLevel: "info",
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
		},
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			SQLitePath: "data/realtor.db",
		},
		Calendar: calendar.DefaultConfig(),
		Turn:     TurnConfig{MaxDelegations: turn.DefaultMaxDelegations},
	}
}

// Load reads configuration from the YAML file at path, if it exists, then
// overlays REALTOR_* environment variables and the conventional
// OPENAI_API_KEY / ANTHROPIC_API_KEY, DATABASE_URL, NATS_URL and NATS_TOKEN.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("access config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyFallbacks()
	return cfg, nil
}

// envKey maps REALTOR_LLM__API_KEY to llm.api_key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) applyFallbacks() {
	if c.LLM.APIKey == "" {
		if name := APIKeyEnvVar(c.LLM.Provider); name != "" {
			c.LLM.APIKey = os.Getenv(name)
		}
	}
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.NATS.URL == "" {
		c.NATS.URL = os.Getenv("NATS_URL")
	}
	if c.NATS.Token == "" {
		c.NATS.Token = os.Getenv("NATS_TOKEN")
	}
}

// APIKeyEnvVar returns the conventional environment variable holding the
// API key of provider.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration. The API key is not checked here;
// commands that need the model check it when they build the provider.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	if APIKeyEnvVar(c.LLM.Provider) == "" {
		return fmt.Errorf("invalid llm.provider %q: must be one of openai, anthropic", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must be non-negative")
	}

	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid storage.backend %q: must be postgres or sqlite", c.Storage.Backend)
	}

	cal := c.Calendar
	if cal.Timezone == "" {
		return fmt.Errorf("calendar.timezone is required")
	}
	if cal.OpenHour < 0 || cal.CloseHour > 24 || cal.OpenHour >= cal.CloseHour {
		return fmt.Errorf("invalid calendar hours %d-%d", cal.OpenHour, cal.CloseHour)
	}
	if cal.SlotMinutes <= 0 || cal.SlotMinutes > (cal.CloseHour-cal.OpenHour)*60 {
		return fmt.Errorf("invalid calendar.slot_minutes %d", cal.SlotMinutes)
	}

	if c.Turn.MaxDelegations < 1 {
		return fmt.Errorf("turn.max_delegations must be at least 1")
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config to %s: %w", path, err)
	}
	return nil
}
