package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Local      LocalConfig      `yaml:"local"`
	Labs       []LabConfig      `yaml:"labs"`
	Session    SessionConfig    `yaml:"session"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the remote database connection configuration.
// An empty DSN means the deployment has no remote database configured
// and the store runs in local fallback mode from the start.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// LocalConfig holds the settings for the same-device fallback store.
type LocalConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LabConfig describes one lab room. Machine numbers run from 0 (the
// teacher unit) through Count inclusive.
type LabConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// SessionConfig holds login session settings.
type SessionConfig struct {
	TTLMinutes int           `yaml:"ttl_minutes"`
	TTL        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Local.DataDir == "" {
		cfg.Local.DataDir = "./data"
	}

	if len(cfg.Labs) == 0 {
		cfg.Labs = []LabConfig{
			{ID: "lab-1", Name: "Lab 1", Count: 45},
			{ID: "lab-3", Name: "Lab 3", Count: 40},
		}
	}
	for i, lab := range cfg.Labs {
		if lab.ID == "" {
			return nil, fmt.Errorf("labs[%d]: missing id", i)
		}
		if lab.Count <= 0 {
			return nil, fmt.Errorf("labs[%d] (%s): machine count must be positive", i, lab.ID)
		}
	}

	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = 480
	}
	cfg.Session.TTL = time.Duration(cfg.Session.TTLMinutes) * time.Minute

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
