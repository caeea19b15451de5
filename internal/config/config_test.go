package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configVars = []string{
	"STRAVA_CLIENT_ID", "STRAVA_CLIENT_SECRET", "STRAVA_REDIRECT_URI",
	"RUNTRACKER_DB", "RUNTRACKER_ADDR", "RUNTRACKER_STATE_SECRET", "RUNTRACKER_TZ",
	"RUNTRACKER_RELOAD_INTERVAL", "RUNTRACKER_TOKEN_REFRESH_INTERVAL",
}

// setTestEnv clears every config variable, sets vars and runs the test in an
// empty directory so no stray .env is picked up.
func setTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for _, key := range configVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	for key, value := range vars {
		t.Setenv(key, value)
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	setTestEnv(t, map[string]string{
		"STRAVA_CLIENT_ID":     "id",
		"STRAVA_CLIENT_SECRET": "secret",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RedirectURL != DefaultRedirectURL {
		t.Errorf("RedirectURL = %q", cfg.RedirectURL)
	}
	if cfg.DatabasePath != DefaultDatabasePath {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.StateSecret != "" {
		t.Errorf("StateSecret = %q, want empty", cfg.StateSecret)
	}
	if cfg.Location != time.Local {
		t.Errorf("Location = %v, want Local", cfg.Location)
	}
	if cfg.ReloadInterval != DefaultReloadInterval || cfg.TokenRefreshInterval != DefaultTokenRefreshInterval {
		t.Errorf("intervals = %s / %s", cfg.ReloadInterval, cfg.TokenRefreshInterval)
	}
}

func TestLoadReportsAllMissing(t *testing.T) {
	setTestEnv(t, nil)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	for _, name := range []string{"STRAVA_CLIENT_ID", "STRAVA_CLIENT_SECRET"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}

	// Read does not require them.
	if _, err := Read(); err != nil {
		t.Errorf("Read: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	setTestEnv(t, map[string]string{
		"STRAVA_CLIENT_ID":                  "id",
		"STRAVA_CLIENT_SECRET":              "secret",
		"STRAVA_REDIRECT_URI":               "http://127.0.0.1:9000/cb",
		"RUNTRACKER_DB":                     "/tmp/x.db",
		"RUNTRACKER_ADDR":                   "127.0.0.1:9000",
		"RUNTRACKER_STATE_SECRET":           "s3cret",
		"RUNTRACKER_TZ":                     "America/Chicago",
		"RUNTRACKER_RELOAD_INTERVAL":        "0s",
		"RUNTRACKER_TOKEN_REFRESH_INTERVAL": "5m",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedirectURL != "http://127.0.0.1:9000/cb" || cfg.Addr != "127.0.0.1:9000" || cfg.DatabasePath != "/tmp/x.db" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.StateSecret != "s3cret" {
		t.Errorf("StateSecret = %q", cfg.StateSecret)
	}
	if cfg.Location.String() != "America/Chicago" {
		t.Errorf("Location = %v", cfg.Location)
	}
	if cfg.ReloadInterval != 0 {
		t.Errorf("ReloadInterval = %s, want 0 (disabled)", cfg.ReloadInterval)
	}
	if cfg.TokenRefreshInterval != 5*time.Minute {
		t.Errorf("TokenRefreshInterval = %s", cfg.TokenRefreshInterval)
	}
	if got := cfg.Now().Location().String(); got != "America/Chicago" {
		t.Errorf("Now() location = %s", got)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	setTestEnv(t, map[string]string{
		"STRAVA_CLIENT_ID":           "id",
		"STRAVA_CLIENT_SECRET":       "secret",
		"RUNTRACKER_RELOAD_INTERVAL": "soon",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReloadInterval != DefaultReloadInterval {
		t.Errorf("unparseable interval should fall back, got %s", cfg.ReloadInterval)
	}

	t.Setenv("RUNTRACKER_TZ", "Mars/Olympus_Mons")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown time zone")
	}
}

func TestEnvFile(t *testing.T) {
	setTestEnv(t, map[string]string{"RUNTRACKER_ADDR": ":7000"})

	envContent := `# Strava application
STRAVA_CLIENT_ID=file_id
STRAVA_CLIENT_SECRET="file secret"

RUNTRACKER_ADDR=:9999
`
	if err := os.WriteFile(filepath.Join(".", ".env"), []byte(envContent), 0o600); err != nil {
		t.Fatalf("writing .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ClientID != "file_id" || cfg.ClientSecret != "file secret" {
		t.Errorf("credentials from .env not loaded: %+v", cfg)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("environment should win over .env, got %q", cfg.Addr)
	}
}
