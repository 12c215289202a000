// Package config loads zotp settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendZstore = "zstore"
	BackendBolt   = "bolt"
)

// ErrUnknownBackend is returned for a ZOTP_BACKEND value zotp does not know.
var ErrUnknownBackend = errors.New("unknown backend")

// Config holds runtime settings.
type Config struct {
	DataDir  string `env:"ZOTP_DATA_DIR"`
	Backend  string `env:"ZOTP_BACKEND" envDefault:"zstore"`
	Digits   string `env:"ZOTP_DIGITS" envDefault:"6"`
	Period   string `env:"ZOTP_PERIOD" envDefault:"30"`
	LogLevel string `env:"ZOTP_LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"ZOTP_LOG_FILE"`
}

// Load reads .env from the working directory when present, then the
// environment. Variables already set win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DataDir()
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "zotp.log")
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe fallback.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendZstore, BackendBolt:
		return nil
	default:
		return fmt.Errorf("%w %q: want %s or %s", ErrUnknownBackend, c.Backend, BackendZstore, BackendBolt)
	}
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// DataDir returns the default data directory for zotp.
func DataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d + "/zotp"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zotp"
	}
	return home + "/.local/share/zotp"
}
