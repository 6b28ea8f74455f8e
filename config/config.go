// Package config loads server configuration from an optional YAML file
// with environment-variable overrides. Precedence: defaults < file < env.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Backfill BackfillConfig `yaml:"backfill"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type BackfillConfig struct {
	// MaxDaysBack bounds resume-time reconciliation. Ledgers whose last
	// entry is older than this are left alone as a fresh start.
	MaxDaysBack int `yaml:"max_days_back"`
	// RunOnStart triggers one backfill pass when the server boots.
	RunOnStart bool `yaml:"run_on_start"`
}

// Load reads configuration from an optional YAML file and environment
// variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "habits.db",
		},
		Backfill: BackfillConfig{
			MaxDaysBack: 14,
			RunOnStart:  true,
		},
	}

	if path := os.Getenv("HABIT_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("HABIT_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("HABIT_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HABIT_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("HABIT_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if daysStr := os.Getenv("HABIT_BACKFILL_MAX_DAYS"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HABIT_BACKFILL_MAX_DAYS: %w", err)
		}
		cfg.Backfill.MaxDaysBack = days
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
