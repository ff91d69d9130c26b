package config

import "os"

// Config holds application configuration loaded from environment variables.
type Config struct {
	DBPath      string // DOCSEED_DB, default "docseed.db"
	ModelsPath  string // DOCSEED_MODELS, default "models"
	SeedsPath   string // DOCSEED_SEEDS, default "seeds"
	Environment string // DOCSEED_ENV, then GO_ENV, default "development"
	Suffix      string // DOCSEED_SUFFIX, default "Seed"
	LogLevel    string // DOCSEED_LOG_LEVEL, default "info"
	LogFormat   string // DOCSEED_LOG_FORMAT, default "text"
	Disabled    bool   // DOCSEED_DISABLED=true skips seeding
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DBPath:      envOr("DOCSEED_DB", "docseed.db"),
		ModelsPath:  envOr("DOCSEED_MODELS", "models"),
		SeedsPath:   envOr("DOCSEED_SEEDS", "seeds"),
		Environment: envOr("DOCSEED_ENV", envOr("GO_ENV", "development")),
		Suffix:      envOr("DOCSEED_SUFFIX", "Seed"),
		LogLevel:    envOr("DOCSEED_LOG_LEVEL", "info"),
		LogFormat:   envOr("DOCSEED_LOG_FORMAT", "text"),
		Disabled:    os.Getenv("DOCSEED_DISABLED") == "true",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
