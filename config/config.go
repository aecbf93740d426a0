// Package config provides configuration loading and management for the
// FP&A agent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the complete agent configuration
type Config struct {
	Model        ModelConfig        `yaml:"model"`
	Data         DataConfig         `yaml:"data"`
	NATS         NATSConfig         `yaml:"nats"`
	Database     DatabaseConfig     `yaml:"database"`
	Agent        AgentConfig        `yaml:"agent"`
	Server       ServerConfig       `yaml:"server"`
	Conversation ConversationConfig `yaml:"conversation"`
}

// ModelConfig configures the LLM settings
type ModelConfig struct {
	// Provider is the registered provider name (anthropic, openai, ollama)
	Provider string `yaml:"provider"`
	// Name is the model identifier sent in requests
	Name string `yaml:"name"`
	// BaseURL overrides the provider's default API host
	BaseURL string `yaml:"base_url"`
	// Temperature controls randomness (0.0-1.0)
	Temperature float64 `yaml:"temperature"`
	// MaxTokens limits completion length per request
	MaxTokens int `yaml:"max_tokens"`
}

// DataConfig configures the workbook data source
type DataConfig struct {
	// WorkbookPath is the path to the Aleph budget/actuals export
	WorkbookPath string `yaml:"workbook_path"`
	// CacheTTL is how long loaded records are cached
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// NATSConfig configures the NATS connection for conversation and chart
// storage. An empty URL disables NATS and falls back to in-memory
// conversation storage with no chart persistence.
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
}

// DatabaseConfig configures the metrics store. The connection string is
// read from the named environment variable so credentials stay out of
// config files.
type DatabaseConfig struct {
	// URLEnv names the environment variable holding the Postgres URL
	URLEnv string `yaml:"url_env"`
	// RefreshSchedule is a cron expression for the daily metrics refresh
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// AgentConfig configures the tool-use loop
type AgentConfig struct {
	// MaxIterations caps model round trips per question
	MaxIterations int `yaml:"max_iterations"`
	// AllowedChannels restricts which channels may ask questions
	// (empty = allow all)
	AllowedChannels []string `yaml:"allowed_channels"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	// Addr is the listen address
	Addr string `yaml:"addr"`
	// PublicBaseURL is the externally reachable base for chart links
	PublicBaseURL string `yaml:"public_base_url"`
}

// ConversationConfig configures conversation retention
type ConversationConfig struct {
	// TTL is how long an idle conversation is kept
	TTL time.Duration `yaml:"ttl"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "anthropic",
			Name:        "claude-sonnet-4-5",
			Temperature: 0,
			MaxTokens:   4096,
		},
		Data: DataConfig{
			WorkbookPath: "data/budget.xlsx",
			CacheTTL:     5 * time.Minute,
		},
		Database: DatabaseConfig{
			URLEnv:          "DATABASE_URL",
			RefreshSchedule: "0 6 * * *",
		},
		Agent: AgentConfig{
			MaxIterations: 15,
		},
		Server: ServerConfig{
			Addr:          ":8080",
			PublicBaseURL: "http://localhost:8080",
		},
		Conversation: ConversationConfig{
			TTL: 24 * time.Hour,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Data.WorkbookPath == "" {
		return fmt.Errorf("data.workbook_path is required")
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1")
	}
	if c.Database.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.Database.RefreshSchedule); err != nil {
			return fmt.Errorf("database.refresh_schedule is not a valid cron expression: %w", err)
		}
	}
	return nil
}

// DatabaseURL resolves the Postgres connection string, or "" when the
// metrics store is not configured.
func (c *Config) DatabaseURL() string {
	if c.Database.URLEnv == "" {
		return ""
	}
	return os.Getenv(c.Database.URLEnv)
}

// ChannelAllowed reports whether a channel may ask questions.
func (c *Config) ChannelAllowed(channel string) bool {
	if len(c.Agent.AllowedChannels) == 0 {
		return true
	}
	for _, allowed := range c.Agent.AllowedChannels {
		if allowed == channel {
			return true
		}
	}
	return false
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Model
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Name != "" {
		c.Model.Name = other.Model.Name
	}
	if other.Model.BaseURL != "" {
		c.Model.BaseURL = other.Model.BaseURL
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.MaxTokens != 0 {
		c.Model.MaxTokens = other.Model.MaxTokens
	}

	// Data
	if other.Data.WorkbookPath != "" {
		c.Data.WorkbookPath = other.Data.WorkbookPath
	}
	if other.Data.CacheTTL != 0 {
		c.Data.CacheTTL = other.Data.CacheTTL
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Database
	if other.Database.URLEnv != "" {
		c.Database.URLEnv = other.Database.URLEnv
	}
	if other.Database.RefreshSchedule != "" {
		c.Database.RefreshSchedule = other.Database.RefreshSchedule
	}

	// Agent
	if other.Agent.MaxIterations != 0 {
		c.Agent.MaxIterations = other.Agent.MaxIterations
	}
	if len(other.Agent.AllowedChannels) > 0 {
		c.Agent.AllowedChannels = other.Agent.AllowedChannels
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.PublicBaseURL != "" {
		c.Server.PublicBaseURL = other.Server.PublicBaseURL
	}

	// Conversation
	if other.Conversation.TTL != 0 {
		c.Conversation.TTL = other.Conversation.TTL
	}
}
