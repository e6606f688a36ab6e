package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	// Store selects the backend: "postgres" (default when DatabaseURL is
	// set) or "memory".
	Store        string
	KafkaBrokers []string
	LogLevel     string
}

// Load reads configuration from the environment, loading a .env file first
// when one is present.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Store:       getenv("LEDGER_STORE", ""),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.Store == "" {
		if cfg.DatabaseURL != "" {
			cfg.Store = "postgres"
		} else {
			cfg.Store = "memory"
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
