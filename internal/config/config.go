package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML file.
const (
	EnvAdminToken  = "CORRODE_ADMIN_TOKEN"
	EnvPort        = "PORT"
	EnvDatabaseURL = "DATABASE_URL"
)

// ErrMissingAdminToken stops startup when no admin token is configured.
var ErrMissingAdminToken = errors.New(EnvAdminToken + " must be set")

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Admin struct {
		Token string `yaml:"token"`
	} `yaml:"admin"`
	Database struct {
		// URL selects the store: postgres://... for Postgres, sqlite:path or a file path for SQLite,
		// "memory" for an ephemeral store.
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Catalog struct {
		Dir string `yaml:"dir"`
		TTL string `yaml:"ttl"`
		// Exercises, when set, replaces scanning Dir.
		Exercises []ExerciseConfig `yaml:"exercises"`
	} `yaml:"catalog"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

type ExerciseConfig struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Load reads YAML config from path, then applies .env and process environment overrides.
// A missing file is not an error; the environment alone can configure the server.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, err
		}
	}
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAdminToken)); v != "" {
		c.Admin.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		c.Server.Port = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		c.Database.URL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "3000"
	}
	if c.Database.URL == "" {
		c.Database.URL = "sqlite:playground.db"
	}
	if c.Catalog.Dir == "" {
		c.Catalog.Dir = "examples"
	}
}

// Validate reports configuration the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Admin.Token) == "" {
		return ErrMissingAdminToken
	}
	return nil
}

// IsPostgres reports whether the database URL points at Postgres.
func (c Config) IsPostgres() bool {
	u := c.Database.URL
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// IsMemory reports whether an ephemeral in-process store was requested.
func (c Config) IsMemory() bool {
	return c.Database.URL == "memory"
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
