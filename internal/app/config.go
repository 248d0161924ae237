package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ListenAddr      string `yaml:"listen_addr"`
	HealthcheckPort int    `yaml:"healthcheck_port"`
	AllowedOrigin   string `yaml:"allowed_origin"`

	DatabasePath string `yaml:"database_path"`
	ArtifactDir  string `yaml:"artifact_dir"`
	DataDir      string `yaml:"data_dir"`
	ManifestDir  string `yaml:"manifest_dir"` // empty selects the embedded manifests

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`

	WorkerCount     int           `yaml:"workers"`
	ProgressTimeout time.Duration `yaml:"progress_timeout"`
	ProgressQueue   int           `yaml:"progress_queue"`
}

// DefaultConfig returns the settings used when neither a file nor a flag
// sets a value.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		AllowedOrigin:   "*",
		DatabasePath:    "tensorgrid.db",
		ArtifactDir:     "generated-models",
		DataDir:         "data",
		LogFormat:       "text",
		LogLevel:        "info",
		WorkerCount:     2,
		ProgressTimeout: 5 * time.Second,
		ProgressQueue:   256,
	}
}

// LoadConfigFile decodes a YAML file over base. Keys the file leaves out
// keep the value from base.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	switch {
	case cfg.DatabasePath == "":
		return nil, errors.New("database path is a required configuration field and cannot be empty")
	case cfg.ArtifactDir == "" || cfg.DataDir == "":
		return nil, errors.New("artifact and data directories are required configuration fields")
	case cfg.LogFormat != "text" && cfg.LogFormat != "json":
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	case cfg.WorkerCount <= 0:
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.WorkerCount)
	case cfg.ProgressTimeout <= 0:
		return nil, fmt.Errorf("progress timeout must be positive, got %s", cfg.ProgressTimeout)
	case cfg.HealthcheckPort < 0:
		return nil, fmt.Errorf("healthcheck port must not be negative, got %d", cfg.HealthcheckPort)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	return &cfg, nil
}
