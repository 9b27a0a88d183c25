// Package config resolves appletree's directories and logging settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

const (
	EnvDataDir     = "APPLETREE_DATA_DIR"
	EnvConfigDir   = "APPLETREE_CONFIG_DIR"
	EnvLogLevel    = "APPLETREE_LOG_LEVEL"
	EnvLogFormat   = "APPLETREE_LOG_FORMAT"
	EnvLogDir      = "APPLETREE_LOG_DIR"
	EnvLogMaxFiles = "APPLETREE_LOG_MAX_FILES"
	EnvFormat      = "APPLETREE_FORMAT"
)

type Config struct {
	// DataDir holds projects.conf, appletree.conf and projects/.
	DataDir string
	// ConfigDir holds plugins.yaml and plugins/<name>.conf.
	ConfigDir string
	LogLevel  slog.Level
	// LogFormat is "text" or "json".
	LogFormat string
	// LogDir enables file logging when set; otherwise logs go to stderr.
	LogDir      string
	LogMaxFiles int
	// Format is the CLI output format: "json" or "edn".
	Format string
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.ConfigDir, validation.Required),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.Format, validation.In("json", "edn", "yaml")),
		validation.Field(&c.LogMaxFiles, validation.Min(1)),
	)
}

// DefaultDir is ~/.appletree.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".appletree"), nil
}

// Load reads the environment, after loading a .env file from the working directory and from
// the data dir if present. Variables already set take precedence over .env values.
func Load() (*Config, error) {
	return LoadDir("")
}

// LoadDir is Load with the data dir given explicitly (a --data-dir flag); empty falls back to
// the environment.
func LoadDir(dataDir string) (*Config, error) {
	_ = godotenv.Load()

	dataDir = strings.TrimSpace(dataDir)
	if dataDir == "" {
		dataDir = strings.TrimSpace(os.Getenv(EnvDataDir))
	}
	if dataDir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		dataDir = d
	}
	if envPath := filepath.Join(dataDir, ".env"); fileExists(envPath) {
		_ = godotenv.Load(envPath)
	}

	level, err := ParseLevel(getEnv(EnvLogLevel, "warn"))
	if err != nil {
		return nil, err
	}
	maxFiles, err := strconv.Atoi(getEnv(EnvLogMaxFiles, "10"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvLogMaxFiles, err)
	}

	cfg := &Config{
		DataDir:     dataDir,
		ConfigDir:   getEnv(EnvConfigDir, dataDir),
		LogLevel:    level,
		LogFormat:   strings.ToLower(getEnv(EnvLogFormat, "text")),
		LogDir:      getEnv(EnvLogDir, ""),
		LogMaxFiles: maxFiles,
		Format:      strings.ToLower(getEnv(EnvFormat, "json")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseLevel accepts debug, info, warn/warning and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func getEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
