package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvAdminToken, "secret")
	t.Setenv(EnvPort, "")
	t.Setenv(EnvDatabaseURL, "")

	cfg, err := Load("does-not-exist.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Admin.Token != "secret" {
		t.Fatalf("expected admin token from env, got %q", cfg.Admin.Token)
	}
	if cfg.Server.Port != "3000" || cfg.Database.URL != "sqlite:playground.db" || cfg.Catalog.Dir != "examples" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	yaml := `server:
  port: "8080"
admin:
  token: from-file
database:
  url: postgres://course@localhost/course
catalog:
  dir: exercises
  ttl: 30s
  exercises:
    - name: 00_hello_rust
      title: String Formatting
kafka:
  brokers: ["localhost:9092"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvAdminToken, "")
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvDatabaseURL, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("expected env port to win, got %q", cfg.Server.Port)
	}
	if cfg.Admin.Token != "from-file" || !cfg.IsPostgres() || cfg.Catalog.Dir != "exercises" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Catalog.Exercises) != 1 || cfg.Catalog.Exercises[0].Title != "String Formatting" {
		t.Fatalf("unexpected static catalog %+v", cfg.Catalog.Exercises)
	}
	if len(cfg.Kafka.Brokers) != 1 {
		t.Fatalf("expected one kafka broker, got %v", cfg.Kafka.Brokers)
	}
	if got := TTLDuration(cfg.Catalog.TTL, time.Minute); got != 30*time.Second {
		t.Fatalf("unexpected catalog ttl %v", got)
	}
}

func TestValidateRequiresAdminToken(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAdminToken) {
		t.Fatalf("expected ErrMissingAdminToken, got %v", err)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for garbage, got %v", got)
	}
}
