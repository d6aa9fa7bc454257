// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for locallm.
//
// Configuration lives in ~/.locallm/config.toml, with sensible defaults and
// environment variable overrides applied on top.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/locallm-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete locallm configuration.
type Config struct {
	Version string `toml:"version"`

	// DataDir is where the conversation database lives. Empty means
	// ~/.locallm.
	DataDir string `toml:"data_dir"`

	Engine EngineConfig `toml:"engine"`
	Chat   ChatConfig   `toml:"chat"`
	UI     UIConfig     `toml:"ui"`
}

// EngineConfig contains inference server configuration.
type EngineConfig struct {
	// ServerURL is the inference server's base URL.
	ServerURL string `toml:"server_url"`
	// ServerCommand is the executable used for autostart.
	ServerCommand string `toml:"server_command"`
	// AutoStart launches the server when it is not reachable.
	AutoStart bool `toml:"auto_start"`
	// DefaultModel overrides which installed model loads at startup.
	DefaultModel string `toml:"default_model"`
}

// ChatConfig contains conversation behavior configuration.
type ChatConfig struct {
	// SystemPrompt is prepended to every generation turn. Never stored in
	// conversation history.
	SystemPrompt string `toml:"system_prompt"`
	// MaxMessages caps conversation history length.
	MaxMessages int `toml:"max_messages"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// CompactMode uses a denser layout
	CompactMode bool `toml:"compact_mode"`
	// ShowTimestamps displays message timestamps
	ShowTimestamps bool `toml:"show_timestamps"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Engine: EngineConfig{
			ServerURL:     "http://127.0.0.1:11434",
			ServerCommand: "ollama",
			AutoStart:     true,
		},

		Chat: ChatConfig{
			SystemPrompt: "You are a helpful assistant running locally on the user's machine. " +
				"Answer concisely and accurately.",
			MaxMessages: 1000,
		},

		UI: UIConfig{
			Theme:          "dark",
			CompactMode:    false,
			ShowTimestamps: false,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the locallm configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".locallm"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD
// =============================================================================

// Load loads configuration from ~/.locallm/config.toml, falling back to
// defaults when the file is missing. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path. A missing file
// is not an error: defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Engine.ServerURL == "" {
		c.Engine.ServerURL = defaults.Engine.ServerURL
	}
	if c.Engine.ServerCommand == "" {
		c.Engine.ServerCommand = defaults.Engine.ServerCommand
	}
	if c.Chat.SystemPrompt == "" {
		c.Chat.SystemPrompt = defaults.Chat.SystemPrompt
	}
	if c.Chat.MaxMessages == 0 {
		c.Chat.MaxMessages = defaults.Chat.MaxMessages
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - LOCALLM_SERVER_URL: overrides engine.server_url
//   - LOCALLM_MODEL: overrides engine.default_model
//   - LOCALLM_DATA_DIR: overrides data_dir
//   - LOCALLM_NO_AUTOSTART: set to "1" or "true" to disable server autostart
//   - LOCALLM_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if serverURL := os.Getenv("LOCALLM_SERVER_URL"); serverURL != "" {
		c.Engine.ServerURL = serverURL
	}
	if model := os.Getenv("LOCALLM_MODEL"); model != "" {
		c.Engine.DefaultModel = model
	}
	if dataDir := os.Getenv("LOCALLM_DATA_DIR"); dataDir != "" {
		c.DataDir = dataDir
	}
	if noAuto := os.Getenv("LOCALLM_NO_AUTOSTART"); noAuto != "" {
		if noAuto == "1" || strings.EqualFold(noAuto, "true") {
			c.Engine.AutoStart = false
		}
	}
	if theme := os.Getenv("LOCALLM_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Engine.ServerURL != "" {
		u, err := url.Parse(c.Engine.ServerURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ValidationError{
				Field:   "engine.server_url",
				Message: fmt.Sprintf("invalid URL %q", c.Engine.ServerURL),
			}
		}
	}

	if c.Chat.MaxMessages < 0 {
		return ValidationError{
			Field:   "chat.max_messages",
			Message: "must be non-negative",
		}
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		return ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme %q, must be one of: dark, light, auto", c.UI.Theme),
		}
	}

	return nil
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the configuration to the default config path.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveToPath(path)
}

// SaveToPath writes the configuration to a TOML file atomically.
func (c *Config) SaveToPath(path string) error {
	var buf bytes.Buffer
	buf.WriteString("# locallm configuration file\n")
	buf.WriteString("# Generated by locallm - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// DERIVED PATHS
// =============================================================================

// DatabasePath returns the conversation database location for this config.
func (c *Config) DatabasePath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		var err error
		dir, err = Dir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "locallm.db"), nil
}
