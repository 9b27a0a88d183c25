package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDataDir, EnvConfigDir, EnvLogLevel, EnvLogFormat, EnvLogDir, EnvLogMaxFiles, EnvFormat} {
		t.Setenv(k, "")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvFormat, "EDN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != dir || cfg.ConfigDir != dir {
		t.Fatalf("dirs: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.Format != "edn" || cfg.LogFormat != "text" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoad_DotEnvInDataDir(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvLogFormat+"=json\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// .env never overrides a variable that is already set, even to "".
	_ = os.Unsetenv(EnvLogFormat)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("expected json from .env, got %q", cfg.LogFormat)
	}
}

func TestLoad_Rejects(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDataDir, t.TempDir())

	t.Setenv(EnvFormat, "xml")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid format error")
	}
	t.Setenv(EnvFormat, "")

	t.Setenv(EnvLogLevel, "loud")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestSetupLogger_Fallback(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := SetupLogger(&Config{LogLevel: slog.LevelWarn, LogFormat: "json"}, &buf)
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	defer func() { _ = closeFn() }()
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output: %q", out)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"appletree-2024-01-01.log", "appletree-2024-01-02.log", "appletree-2024-01-03.log", "other.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := cleanupOldLogs(dir, 2); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	for name, want := range map[string]bool{
		"appletree-2024-01-01.log": false,
		"appletree-2024-01-02.log": true,
		"appletree-2024-01-03.log": true,
		"other.log":                true,
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		if got := err == nil; got != want {
			t.Fatalf("%s exists=%v, want %v", name, got, want)
		}
	}
}

func TestLoadDir_FlagBeatsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDataDir, t.TempDir())
	dir := t.TempDir()
	cfg, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if cfg.DataDir != dir || cfg.ConfigDir != dir {
		t.Fatalf("dirs: %+v", cfg)
	}
}
