// Package config loads the operator configuration from
// ~/.courier/config.json and agent rosters from YAML seed files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the engine's operator configuration.
type Config struct {
	Server ServerConfig `json:"server"`
	DB     DBConfig     `json:"db"`
	SMTP   SMTPConfig   `json:"smtp"`
	LLM    LLMConfig    `json:"llm"`
	Tools  ToolsConfig  `json:"tools"`
	Spool  SpoolConfig  `json:"spool"`
}

// ServerConfig holds the webhook server settings.
type ServerConfig struct {
	Addr string `json:"addr"`
	// SweepIntervalSeconds is how often waiting flows are checked for
	// expiry.
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

// DBConfig holds the database location.
type DBConfig struct {
	Path string `json:"path"`
}

// SMTPConfig holds the outbound relay settings.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Hostname string `json:"hostname"`
}

// LLMConfig holds model provider settings. APIKey may be left blank to
// use OPENAI_API_KEY.
type LLMConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// ToolsConfig holds the tool gateway settings.
type ToolsConfig struct {
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SpoolConfig holds the optional filesystem drop directory.
type SpoolConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8825", SweepIntervalSeconds: 60},
		SMTP:   SMTPConfig{Port: 587},
		LLM:    LLMConfig{Model: "gpt-4o"},
		Tools:  ToolsConfig{TimeoutSeconds: 60},
	}
}

// DefaultPath returns ~/.courier/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".courier", "config.json"), nil
}

// Load reads the configuration at path, filling defaults for absent
// fields. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8825"
	}
	if cfg.Server.SweepIntervalSeconds <= 0 {
		cfg.Server.SweepIntervalSeconds = 60
	}
	if cfg.Tools.TimeoutSeconds <= 0 {
		cfg.Tools.TimeoutSeconds = 60
	}
	return cfg, nil
}

// Save writes the configuration to path, creating the parent directory
// when missing. Existing files are not overwritten.
func Save(path string, cfg Config) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
