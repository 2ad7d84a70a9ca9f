package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_PATH", "LISTEN_ADDR", "LOG_LEVEL", "CRON_SECRET",
		"ADMIN_TOKEN", "TARGET_URL", "SCRAPE_INTERVAL", "CHROME_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := &Config{
		DatabasePath: "./data/bot.db",
		ListenAddr:   ":8080",
		LogLevel:     "info",
		CronSecret:   "changeme",
		TargetURL:    "https://www.hepsiburada.com/gunun-firsati-teklifi",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_PATH", "/var/lib/bot/bot.db")
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("ADMIN_TOKEN", "admin-token")
	t.Setenv("TARGET_URL", "https://example.com/deals")
	t.Setenv("SCRAPE_INTERVAL", "10m")
	t.Setenv("CHROME_PATH", "/usr/bin/chromium")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := &Config{
		DatabasePath:   "/var/lib/bot/bot.db",
		ListenAddr:     ":9000",
		LogLevel:       "debug",
		CronSecret:     "s3cret",
		AdminToken:     "admin-token",
		TargetURL:      "https://example.com/deals",
		ScrapeInterval: 10 * time.Minute,
		ChromePath:     "/usr/bin/chromium",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInvalidInterval(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not a duration", value: "often"},
		{name: "negative", value: "-5m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SCRAPE_INTERVAL", tt.value)
			if _, err := Load(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
