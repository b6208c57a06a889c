package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.avtochat/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	User           User   `toml:"user"`
	Store          Store  `toml:"store"`
	Push           Push   `toml:"push"`
	Chat           Chat   `toml:"chat"`
}

// User identifies the marketplace account this client acts as.
type User struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Store configures the remote document store connection.
type Store struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// Push configures the push-notification channel (Kafka).
type Push struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	GroupID string   `toml:"group_id"`
}

// Chat holds chat tuning knobs.
type Chat struct {
	// TypingStalenessSeconds is how long a typing indicator stays valid
	// without a newer write before it is treated as not typing.
	TypingStalenessSeconds int `toml:"typing_staleness_seconds"`
}

// Default returns a config with sane local-development values.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Store: Store{
			URI:      "mongodb://localhost:27017",
			Database: "avtopazar",
		},
		Push: Push{
			Topic:   "avtopazar.push",
			GroupID: "avtochat",
		},
		Chat: Chat{
			TypingStalenessSeconds: 8,
		},
	}
}

// TypingStaleness returns the configured staleness window, falling back to
// the default when unset.
func (c *Config) TypingStaleness() time.Duration {
	secs := c.Chat.TypingStalenessSeconds
	if secs <= 0 {
		secs = Default().Chat.TypingStalenessSeconds
	}
	return time.Duration(secs) * time.Second
}

// Load reads config from the given path. Returns an error if the file is
// missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
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
