// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

const defaultTargetURL = "https://www.hepsiburada.com/gunun-firsati-teklifi"

// Config holds the application configuration.
type Config struct {
	DatabasePath string
	ListenAddr   string
	LogLevel     string
	// CronSecret authorizes the scrape trigger when the settings row
	// carries no secret of its own.
	CronSecret string
	// AdminToken guards the admin API; empty disables those routes.
	AdminToken string
	TargetURL  string
	// ScrapeInterval enables the internal scheduler when positive.
	// Zero means runs are triggered externally only.
	ScrapeInterval time.Duration
	// ChromePath optionally points at a Chrome binary for the scraper.
	ChromePath string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	cronSecret := os.Getenv("CRON_SECRET")
	if cronSecret == "" {
		cronSecret = "changeme"
	}

	targetURL := os.Getenv("TARGET_URL")
	if targetURL == "" {
		targetURL = defaultTargetURL
	}

	var interval time.Duration
	if raw := os.Getenv("SCRAPE_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SCRAPE_INTERVAL %q: %w", raw, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("SCRAPE_INTERVAL must not be negative, got %q", raw)
		}
		interval = d
	}

	return &Config{
		DatabasePath:   dbPath,
		ListenAddr:     listenAddr,
		LogLevel:       logLevel,
		CronSecret:     cronSecret,
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		TargetURL:      targetURL,
		ScrapeInterval: interval,
		ChromePath:     os.Getenv("CHROME_PATH"),
	}, nil
}
