// Package config reads process configuration from the environment, with an
// optional .env file for development setups.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the binaries read from the environment.
type Config struct {
	// RiotAPIKey authenticates calls to the Riot match API.
	RiotAPIKey string

	// RiotBaseURL overrides the regional API host. Empty means the default.
	RiotBaseURL string

	// DatabaseURL selects the Postgres match store when set.
	DatabaseURL string

	// SQLitePath selects the embedded store when DatabaseURL is empty.
	// Defaults to aram.db.
	SQLitePath string

	// SeedRiotID is an optional "Name#Tag" to bootstrap an empty subject
	// queue with.
	SeedRiotID string

	// OracleURL is the win-probability scoring endpoint.
	OracleURL string

	// LockfilePath overrides League Client lockfile discovery.
	LockfilePath string

	// WebhookURL is an optional Discord webhook for crawl alerts.
	WebhookURL string

	// AgeLimit bounds crawl depth and subject retirement. Default 7 days.
	AgeLimit time.Duration

	// RetryInterval is the wait between retries of throttled API calls.
	// Default 10s.
	RetryInterval time.Duration
}

// Load reads the environment, probing a few .env locations first the way
// the rest of the tooling does.
func Load() (Config, error) {
	for _, path := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			log.Printf("[Config] Loaded environment from %s", path)
			break
		}
	}

	cfg := Config{
		RiotAPIKey:    os.Getenv("RIOT_API_KEY"),
		RiotBaseURL:   os.Getenv("RIOT_BASE_URL"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    os.Getenv("SQLITE_PATH"),
		SeedRiotID:    os.Getenv("SEED_RIOT_ID"),
		OracleURL:     os.Getenv("ORACLE_URL"),
		LockfilePath:  os.Getenv("LCU_LOCKFILE"),
		WebhookURL:    os.Getenv("DISCORD_WEBHOOK_URL"),
		AgeLimit:      7 * 24 * time.Hour,
		RetryInterval: 10 * time.Second,
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "aram.db"
	}

	var err error
	if cfg.AgeLimit, err = durationEnv("CRAWL_AGE_LIMIT", cfg.AgeLimit); err != nil {
		return Config{}, err
	}
	if cfg.RetryInterval, err = durationEnv("CRAWL_RETRY_INTERVAL", cfg.RetryInterval); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateCrawler checks the settings the crawler binary cannot run without.
func (c Config) ValidateCrawler() error {
	if c.RiotAPIKey == "" {
		return errors.New("RIOT_API_KEY is not set")
	}
	return nil
}

// ValidateAssistant checks the settings the draft assistant needs.
func (c Config) ValidateAssistant() error {
	if c.OracleURL == "" {
		return errors.New("ORACLE_URL is not set")
	}
	return nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}
