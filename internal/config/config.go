// Package config reads and writes the global ~/.nudge/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied when a field is absent from the file.
const (
	DefaultLookbackDays = 14
	DefaultPollSeconds  = 60
	DefaultOllamaURL    = "http://127.0.0.1:11434"
	DefaultOllamaModel  = "mistral"
)

// Config represents the global ~/.nudge/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	// ChatDBPath points at the source Messages database. Empty means the
	// standard ~/Library/Messages/chat.db location.
	ChatDBPath   string `toml:"chat_db_path"`
	LookbackDays int    `toml:"lookback_days"`
	PollSeconds  int    `toml:"poll_seconds"`
	Ollama       Ollama `toml:"ollama"`
}

// Ollama configures the local drafting model endpoint.
type Ollama struct {
	URL   string `toml:"url"`
	Model string `toml:"model"`
}

// Load reads config from the given path and fills in defaults. Returns an
// error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ChatDBPath == "" {
		home, _ := os.UserHomeDir()
		c.ChatDBPath = filepath.Join(home, "Library", "Messages", "chat.db")
	}
	if c.LookbackDays == 0 {
		c.LookbackDays = DefaultLookbackDays
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = DefaultPollSeconds
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = DefaultOllamaURL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = DefaultOllamaModel
	}
}

func (c *Config) validate() error {
	if c.LookbackDays < 0 {
		return fmt.Errorf("lookback_days must not be negative, got %d", c.LookbackDays)
	}
	if c.PollSeconds < 1 {
		return fmt.Errorf("poll_seconds must be at least 1, got %d", c.PollSeconds)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
