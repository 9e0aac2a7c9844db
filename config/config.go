// Package config loads service configuration from an optional YAML file with
// environment variable overrides. All fields have working defaults so the
// service starts with no configuration at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/erni-gruppe/building-agents/tool"
)

// Config is the root service configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Logging    LoggingConfig     `yaml:"logging"`
	Store      StoreConfig       `yaml:"store"`
	Guardrails GuardrailConfig   `yaml:"guardrails"`
	Models     ModelsConfig      `yaml:"models"`
	EntryAgent string            `yaml:"entry_agent"`
	Business   tool.BusinessData `yaml:"business"`
}

// ServerConfig holds the HTTP binding.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ReadTimeoutSec  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSec int      `yaml:"write_timeout_seconds"`
	ShutdownSec     int      `yaml:"shutdown_timeout_seconds"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// StoreConfig bounds the conversation store. An empty Path keeps
// conversations in memory; a file path switches to the persistent store.
type StoreConfig struct {
	TTLSec     int    `yaml:"ttl_seconds"`
	MaxEntries int    `yaml:"max_entries"`
	SweepSec   int    `yaml:"sweep_interval_seconds"`
	Path       string `yaml:"path"`
}

// GuardrailConfig bounds the guardrail verdict cache.
type GuardrailConfig struct {
	CacheSize   int `yaml:"cache_size"`
	CacheTTLSec int `yaml:"cache_ttl_seconds"`
}

// ModelsConfig selects the model provider and model names. API keys come
// from the environment only and are never written to configuration files.
type ModelsConfig struct {
	Provider        string `yaml:"provider"` // openai, anthropic or mock
	AgentModel      string `yaml:"agent_model"`
	GuardrailModel  string `yaml:"guardrail_model"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 120,
			ShutdownSec:     15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			TTLSec:     3600,
			MaxEntries: 1000,
			SweepSec:   60,
		},
		Guardrails: GuardrailConfig{
			CacheSize:   1000,
			CacheTTLSec: 3600,
		},
		Models: ModelsConfig{
			Provider:       "openai",
			AgentModel:     "gpt-4o-mini",
			GuardrailModel: "gpt-4o-mini",
		},
		EntryAgent: "Triage Agent",
		Business:   tool.DefaultBusinessData(),
	}
}

// Load reads the configuration file at path (skipped when path is empty or
// the file does not exist), applies environment overrides and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		c.Models.Provider = v
	}
	if v := os.Getenv("OPENAI_MAIN_AGENT_MODEL"); v != "" {
		c.Models.AgentModel = v
	}
	if v := os.Getenv("OPENAI_GUARDRAIL_MODEL"); v != "" {
		c.Models.GuardrailModel = v
	}
	if v, ok := envInt("GUARDRAIL_CACHE_TTL"); ok {
		c.Guardrails.CacheTTLSec = v
	}
	if v, ok := envInt("GUARDRAIL_CACHE_SIZE"); ok {
		c.Guardrails.CacheSize = v
	}
	if v, ok := envInt("CONVERSATION_TTL"); ok {
		c.Store.TTLSec = v
	}
	if v, ok := envInt("CONVERSATION_MAX_ENTRIES"); ok {
		c.Store.MaxEntries = v
	}
	c.Models.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.Models.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr must not be empty")
	}
	if c.Store.TTLSec <= 0 {
		return fmt.Errorf("config: store.ttl_seconds must be positive")
	}
	if c.Store.MaxEntries <= 0 {
		return fmt.Errorf("config: store.max_entries must be positive")
	}
	if c.Guardrails.CacheSize <= 0 {
		return fmt.Errorf("config: guardrails.cache_size must be positive")
	}
	if c.Guardrails.CacheTTLSec <= 0 {
		return fmt.Errorf("config: guardrails.cache_ttl_seconds must be positive")
	}
	switch c.Models.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("config: unknown model provider %q", c.Models.Provider)
	}
	if c.EntryAgent == "" {
		return fmt.Errorf("config: entry_agent must not be empty")
	}
	return nil
}

// StoreTTL returns the conversation TTL as a duration.
func (c *Config) StoreTTL() time.Duration { return time.Duration(c.Store.TTLSec) * time.Second }

// StoreSweepInterval returns the background sweep cadence.
func (c *Config) StoreSweepInterval() time.Duration {
	return time.Duration(c.Store.SweepSec) * time.Second
}

// GuardrailCacheTTL returns the verdict cache TTL as a duration.
func (c *Config) GuardrailCacheTTL() time.Duration {
	return time.Duration(c.Guardrails.CacheTTLSec) * time.Second
}

// ReadTimeout returns the HTTP read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSec) * time.Second
}

// ShutdownTimeout returns how long graceful shutdown may take.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownSec) * time.Second
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
