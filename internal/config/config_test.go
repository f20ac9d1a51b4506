package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9100
database:
  path: /tmp/test-ledger.db
backup:
  export_limit: 2
  export_window: 1m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Server.Address != "127.0.0.1" {
		t.Errorf("Server.Address = %q, want default 127.0.0.1", cfg.Server.Address)
	}
	if cfg.Database.Path != "/tmp/test-ledger.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Backup.ExportLimit != 2 || cfg.Backup.ExportWindow != time.Minute {
		t.Errorf("Backup = %+v, want limit 2 window 1m", cfg.Backup)
	}
	if cfg.Backup.MaxImportBytes != 100<<20 {
		t.Errorf("Backup.MaxImportBytes = %d, want 100 MB default", cfg.Backup.MaxImportBytes)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("Load() error = nil, want error for missing explicit file")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RLG_SERVER_PORT", "9200")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("Server.Port = %d, want 9200 from env", cfg.Server.Port)
	}
}
