package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the binary needs to wire the engine and its
// servers. Values come from the YAML file, overridden by environment
// variables (a .env file is honored when present).
type Config struct {
	Server struct {
		Port        int `yaml:"port"`
		MetricsPort int `yaml:"metrics_port"`
	} `yaml:"server"`
	Engine struct {
		InstanceID     string `yaml:"instance_id"`
		TickIntervalMS int    `yaml:"tick_interval_ms"`
	} `yaml:"engine"`
	Database struct {
		Dialect string `yaml:"dialect"`
		DSN     string `yaml:"dsn"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.MetricsPort = 9090
	cfg.Engine.InstanceID = "expeditor-" + uuid.NewString()[:8]
	cfg.Engine.TickIntervalMS = 1000
	cfg.Database.Dialect = "sqlite3"
	cfg.Database.DSN = "expeditor.db"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads the YAML config at path, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if cfg.Engine.TickIntervalMS <= 0 {
		cfg.Engine.TickIntervalMS = 1000
	}
	return cfg, nil
}

// TickInterval returns the engine tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickIntervalMS) * time.Millisecond
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EXPEDITOR_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("EXPEDITOR_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("EXPEDITOR_INSTANCE_ID"); v != "" {
		cfg.Engine.InstanceID = v
	}
	if v := os.Getenv("EXPEDITOR_TICK_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.TickIntervalMS = n
		}
	}
	if v := os.Getenv("EXPEDITOR_DB_DIALECT"); v != "" {
		cfg.Database.Dialect = v
	}
	if v := os.Getenv("EXPEDITOR_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("EXPEDITOR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
