package config_test

import (
	"testing"

	"github.com/johnwards/docseed/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DOCSEED_DB", "DOCSEED_MODELS", "DOCSEED_SEEDS", "DOCSEED_ENV", "GO_ENV",
		"DOCSEED_SUFFIX", "DOCSEED_LOG_LEVEL", "DOCSEED_LOG_FORMAT", "DOCSEED_DISABLED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := config.Load()

	if cfg.DBPath != "docseed.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "docseed.db")
	}
	if cfg.ModelsPath != "models" {
		t.Errorf("ModelsPath = %q, want %q", cfg.ModelsPath, "models")
	}
	if cfg.SeedsPath != "seeds" {
		t.Errorf("SeedsPath = %q, want %q", cfg.SeedsPath, "seeds")
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.Suffix != "Seed" {
		t.Errorf("Suffix = %q, want %q", cfg.Suffix, "Seed")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log = %q/%q, want info/text", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Disabled {
		t.Error("Disabled = true, want false")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCSEED_DB", "/tmp/test.db")
	t.Setenv("DOCSEED_MODELS", "/srv/models")
	t.Setenv("DOCSEED_SEEDS", "/srv/seeds")
	t.Setenv("DOCSEED_ENV", "test")
	t.Setenv("DOCSEED_SUFFIX", "Data")
	t.Setenv("DOCSEED_LOG_LEVEL", "debug")
	t.Setenv("DOCSEED_LOG_FORMAT", "json")
	t.Setenv("DOCSEED_DISABLED", "true")

	cfg := config.Load()

	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.ModelsPath != "/srv/models" {
		t.Errorf("ModelsPath = %q, want %q", cfg.ModelsPath, "/srv/models")
	}
	if cfg.SeedsPath != "/srv/seeds" {
		t.Errorf("SeedsPath = %q, want %q", cfg.SeedsPath, "/srv/seeds")
	}
	if cfg.Environment != "test" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "test")
	}
	if cfg.Suffix != "Data" {
		t.Errorf("Suffix = %q, want %q", cfg.Suffix, "Data")
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log = %q/%q, want debug/json", cfg.LogLevel, cfg.LogFormat)
	}
	if !cfg.Disabled {
		t.Error("Disabled = false, want true")
	}
}

func TestEnvironmentFallsBackToGoEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GO_ENV", "staging")

	if got := config.Load().Environment; got != "staging" {
		t.Errorf("Environment = %q, want %q", got, "staging")
	}
}
