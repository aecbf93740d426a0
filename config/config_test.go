package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.Provider != "anthropic" {
		t.Errorf("expected default provider anthropic, got %s", cfg.Model.Provider)
	}
	if cfg.Model.MaxTokens != 4096 {
		t.Errorf("expected default max tokens 4096, got %d", cfg.Model.MaxTokens)
	}
	if cfg.Agent.MaxIterations != 15 {
		t.Errorf("expected default max iterations 15, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Conversation.TTL != 24*time.Hour {
		t.Errorf("expected default conversation TTL 24h, got %v", cfg.Conversation.TTL)
	}
	if cfg.Database.URLEnv != "DATABASE_URL" {
		t.Errorf("expected default database env DATABASE_URL, got %s", cfg.Database.URLEnv)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing provider",
			modify:  func(c *Config) { c.Model.Provider = "" },
			wantErr: true,
		},
		{
			name:    "missing model name",
			modify:  func(c *Config) { c.Model.Name = "" },
			wantErr: true,
		},
		{
			name:    "temperature too low",
			modify:  func(c *Config) { c.Model.Temperature = -0.1 },
			wantErr: true,
		},
		{
			name:    "temperature too high",
			modify:  func(c *Config) { c.Model.Temperature = 1.1 },
			wantErr: true,
		},
		{
			name:    "missing workbook path",
			modify:  func(c *Config) { c.Data.WorkbookPath = "" },
			wantErr: true,
		},
		{
			name:    "zero iterations",
			modify:  func(c *Config) { c.Agent.MaxIterations = 0 },
			wantErr: true,
		},
		{
			name:    "bad refresh schedule",
			modify:  func(c *Config) { c.Database.RefreshSchedule = "not a cron" },
			wantErr: true,
		},
		{
			name:    "empty refresh schedule allowed",
			modify:  func(c *Config) { c.Database.RefreshSchedule = "" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
model:
  provider: "ollama"
  name: "test-model"
  base_url: "http://test:11434/v1"
  temperature: 0.5
data:
  workbook_path: "/test/budget.xlsx"
  cache_ttl: 10m
nats:
  url: "nats://test:4222"
agent:
  max_iterations: 8
  allowed_channels:
    - C123
    - C456
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Model.Provider != "ollama" {
		t.Errorf("expected provider ollama, got %s", cfg.Model.Provider)
	}
	if cfg.Model.Name != "test-model" {
		t.Errorf("expected model test-model, got %s", cfg.Model.Name)
	}
	if cfg.Model.Temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %f", cfg.Model.Temperature)
	}
	if cfg.Data.WorkbookPath != "/test/budget.xlsx" {
		t.Errorf("expected workbook path /test/budget.xlsx, got %s", cfg.Data.WorkbookPath)
	}
	if cfg.Data.CacheTTL != 10*time.Minute {
		t.Errorf("expected cache TTL 10m, got %v", cfg.Data.CacheTTL)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Agent.MaxIterations != 8 {
		t.Errorf("expected 8 max iterations, got %d", cfg.Agent.MaxIterations)
	}
	if len(cfg.Agent.AllowedChannels) != 2 {
		t.Errorf("expected 2 allowed channels, got %d", len(cfg.Agent.AllowedChannels))
	}
	// Defaults survive for unset sections
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected server addr to remain default, got %s", cfg.Server.Addr)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Model: ModelConfig{
			Name: "override-model",
		},
		Data: DataConfig{
			WorkbookPath: "/override/budget.xlsx",
		},
	}

	base.Merge(override)

	if base.Model.Name != "override-model" {
		t.Errorf("expected model override-model, got %s", base.Model.Name)
	}
	// Provider should remain from base since override didn't set it
	if base.Model.Provider != "anthropic" {
		t.Errorf("expected provider to remain default, got %s", base.Model.Provider)
	}
	if base.Data.WorkbookPath != "/override/budget.xlsx" {
		t.Errorf("expected workbook path /override/budget.xlsx, got %s", base.Data.WorkbookPath)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Model.Name = "saved-model"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Model.Name != "saved-model" {
		t.Errorf("expected model saved-model, got %s", loaded.Model.Name)
	}
}

func TestChannelAllowed(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.ChannelAllowed("C999") {
		t.Error("expected empty allow-list to allow every channel")
	}

	cfg.Agent.AllowedChannels = []string{"C123"}
	if !cfg.ChannelAllowed("C123") {
		t.Error("expected listed channel to be allowed")
	}
	if cfg.ChannelAllowed("C999") {
		t.Error("expected unlisted channel to be denied")
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.URLEnv = "FPAGENT_TEST_DB_URL"

	t.Setenv("FPAGENT_TEST_DB_URL", "postgres://localhost/fpa")
	if got := cfg.DatabaseURL(); got != "postgres://localhost/fpa" {
		t.Errorf("expected database URL from env, got %s", got)
	}

	cfg.Database.URLEnv = ""
	if got := cfg.DatabaseURL(); got != "" {
		t.Errorf("expected empty database URL, got %s", got)
	}
}
