// internal/config/config.go
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the lending backend.
type Config struct {
	// DatabaseURL is either a postgres:// URL or a sqlite file path.
	DatabaseURL string
	Port        string
	Env         string
	LogLevel    string
	// OTLPEndpoint enables trace export when non-empty, e.g. "localhost:4317".
	OTLPEndpoint string
	SeedOnStart  bool
}

// Load reads configuration from the environment, after loading a local .env
// file when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DatabaseURL:  getEnv("DATABASE_URL", "prestalib.db"),
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENVIRONMENT", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		SeedOnStart:  os.Getenv("SEED_ON_START") == "1",
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
