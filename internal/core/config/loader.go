package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Environment variables in the
// file content are expanded before parsing. Absent or blank values fall
// back to built-in defaults; they are never an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied and all
// observers disabled.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 30 * time.Second
	}
	if cfg.Scheduler.RunTimeout == 0 {
		cfg.Scheduler.RunTimeout = 60 * time.Second
	}
	if cfg.Scheduler.MaxConsecutiveFaults == 0 {
		cfg.Scheduler.MaxConsecutiveFaults = 3
	}
	if cfg.Observers.Network.DialTimeout == 0 {
		cfg.Observers.Network.DialTimeout = 3 * time.Second
	}
	if cfg.Observers.Network.FailureThreshold == 0 {
		cfg.Observers.Network.FailureThreshold = 3
	}
	if cfg.Observers.App.MaxConcurrency == 0 {
		cfg.Observers.App.MaxConcurrency = 4
	}
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}
	if len(cfg.Observers.Disk.Mounts) == 0 {
		cfg.Observers.Disk.Mounts = []string{"/"}
	}
}
