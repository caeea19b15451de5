// Package config reads runtracker settings from the environment and an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultRedirectURL          = "http://localhost:8089/auth/callback"
	DefaultDatabasePath         = "runtracker.db"
	DefaultAddr                 = ":8089"
	DefaultReloadInterval       = 15 * time.Minute
	DefaultTokenRefreshInterval = 30 * time.Minute
)

// Config holds all application configuration.
type Config struct {
	// Strava API application
	ClientID     string
	ClientSecret string
	RedirectURL  string

	DatabasePath string
	Addr         string

	// StateSecret signs the OAuth state parameter. Empty means a random key
	// per process.
	StateSecret string

	// Location is the zone "now" is read in when resolving time windows.
	Location *time.Location

	ReloadInterval       time.Duration
	TokenRefreshInterval time.Duration
}

// Load reads the configuration and fails if the Strava application
// credentials are missing. All missing variables are reported together.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads .env when present and reads the environment without requiring
// the Strava credentials. Variables already set take precedence over .env.
func Read() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	cfg := &Config{
		ClientID:             getEnv("STRAVA_CLIENT_ID", ""),
		ClientSecret:         getEnv("STRAVA_CLIENT_SECRET", ""),
		RedirectURL:          getEnv("STRAVA_REDIRECT_URI", DefaultRedirectURL),
		DatabasePath:         getEnv("RUNTRACKER_DB", DefaultDatabasePath),
		Addr:                 getEnv("RUNTRACKER_ADDR", DefaultAddr),
		StateSecret:          getEnv("RUNTRACKER_STATE_SECRET", ""),
		Location:             time.Local,
		ReloadInterval:       getDurationEnv("RUNTRACKER_RELOAD_INTERVAL", DefaultReloadInterval),
		TokenRefreshInterval: getDurationEnv("RUNTRACKER_TOKEN_REFRESH_INTERVAL", DefaultTokenRefreshInterval),
	}

	if tz := getEnv("RUNTRACKER_TZ", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("RUNTRACKER_TZ: %w", err)
		}
		cfg.Location = loc
	}
	return cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "STRAVA_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "STRAVA_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.TokenRefreshInterval <= 0 {
		return fmt.Errorf("token refresh interval must be positive, got %s", c.TokenRefreshInterval)
	}
	return nil
}

// Now returns the current time in the configured location.
func (c *Config) Now() time.Time {
	return time.Now().In(c.Location)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
