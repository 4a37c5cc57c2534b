package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err == nil {
		t.Fatal("explicit missing config should error")
	}

	// Missing default-location config silently falls back.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err = loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q, want default :8080", cfg.Addr)
	}
	if cfg.Store != "memory" {
		t.Errorf("store = %q, want default memory", cfg.Store)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
addr = ":9090"
store = "file"

[snapshots]
dir = "/tmp/viewgrid-snapshots"

[redis]
addr = "redis:6379"
db = 2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.Store != "file" {
		t.Errorf("store = %q", cfg.Store)
	}
	if cfg.Snapshots.Dir != "/tmp/viewgrid-snapshots" {
		t.Errorf("snapshots.dir = %q", cfg.Snapshots.Dir)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	// Unset sections keep defaults.
	if cfg.Mongo.URI != "mongodb://localhost:27017" {
		t.Errorf("mongo.uri = %q, want default", cfg.Mongo.URI)
	}
}

func TestLoadConfigRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("addr = [broken"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}
