package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ingest.Workers != 10 {
		t.Errorf("Workers = %d, want 10", cfg.Ingest.Workers)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("MaxConns = %d, want 10", cfg.Database.MaxConns)
	}
	if cfg.Ingest.TelemetryLookback != 7*24*time.Hour {
		t.Errorf("TelemetryLookback = %v", cfg.Ingest.TelemetryLookback)
	}
	if cfg.Ingest.PoolDrainRetries != 50 || cfg.Ingest.PoolDrainInterval != 3*time.Second {
		t.Errorf("pool drain = %d x %v", cfg.Ingest.PoolDrainRetries, cfg.Ingest.PoolDrainInterval)
	}
	if cfg.ATS.SettleDelay != 5*time.Second {
		t.Errorf("SettleDelay = %v", cfg.ATS.SettleDelay)
	}
	if cfg.ATS.LoginFormID != "#ctl01" || cfg.ATS.UsernameFieldID != "#username" || cfg.ATS.PasswordFieldID != "#password" {
		t.Errorf("ATS selectors = %q %q %q", cfg.ATS.LoginFormID, cfg.ATS.UsernameFieldID, cfg.ATS.PasswordFieldID)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  host: db.internal
  dbname: telemetry
lotek:
  credential_name: lotek_prod
ingest:
  workers: 4
  request_timeout: 10s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("WORKERS", "6")
	t.Setenv("VECTRONICS_URL", "https://vectronic.example/api")
	t.Setenv("DELETE_DOWNLOADS", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.DBName != "telemetry" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Lotek.CredentialName != "lotek_prod" {
		t.Errorf("CredentialName = %q", cfg.Lotek.CredentialName)
	}
	if cfg.Ingest.Workers != 6 {
		t.Errorf("Workers = %d, want env override 6", cfg.Ingest.Workers)
	}
	if cfg.Ingest.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Ingest.RequestTimeout)
	}
	if cfg.Vectronic.URL != "https://vectronic.example/api" {
		t.Errorf("Vectronic.URL = %q", cfg.Vectronic.URL)
	}
	if !cfg.ATS.DeleteDownloads {
		t.Error("DeleteDownloads = false, want true")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "request_timeout") {
		t.Fatalf("Load() error = %v, want request_timeout parse error", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p@ss", DBName: "db"}
	if got := d.DSN(); got != "postgres://u:p%40ss@h:5432/db" {
		t.Errorf("DSN() = %q", got)
	}
	d.URL = "postgres://override"
	if got := d.DSN(); got != "postgres://override" {
		t.Errorf("DSN() = %q", got)
	}
}
