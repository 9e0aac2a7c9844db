package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "Triage Agent", cfg.EntryAgent)
	assert.Equal(t, time.Hour, cfg.StoreTTL())
	assert.Equal(t, 1000, cfg.Store.MaxEntries)
	assert.Equal(t, time.Hour, cfg.GuardrailCacheTTL())
	assert.Equal(t, 3000.0, cfg.Business.Pricing["Einfamilienhaus"]["Holzbau"])
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
  allowed_origins: ["https://chat.erni-gruppe.ch"]
store:
  ttl_seconds: 600
  max_entries: 50
models:
  provider: anthropic
  agent_model: claude-3-5-sonnet-20241022
business:
  time_slots: ["10:00-11:00"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://chat.erni-gruppe.ch"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.StoreTTL())
	assert.Equal(t, 50, cfg.Store.MaxEntries)
	assert.Equal(t, "anthropic", cfg.Models.Provider)
	assert.Equal(t, []string{"10:00-11:00"}, cfg.Business.TimeSlots)

	// Unset sections keep their defaults.
	assert.Equal(t, 1000, cfg.Guardrails.CacheSize)
	assert.Equal(t, "Triage Agent", cfg.EntryAgent)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("OPENAI_MAIN_AGENT_MODEL", "gpt-4o")
	t.Setenv("GUARDRAIL_CACHE_TTL", "120")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "gpt-4o", cfg.Models.AgentModel)
	assert.Equal(t, 2*time.Minute, cfg.GuardrailCacheTTL())
	assert.Equal(t, "sk-test", cfg.Models.OpenAIAPIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"zero ttl", func(c *Config) { c.Store.TTLSec = 0 }, "ttl_seconds"},
		{"zero max entries", func(c *Config) { c.Store.MaxEntries = 0 }, "max_entries"},
		{"bad provider", func(c *Config) { c.Models.Provider = "cohere" }, "provider"},
		{"no entry agent", func(c *Config) { c.EntryAgent = "" }, "entry_agent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
