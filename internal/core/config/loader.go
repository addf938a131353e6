package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrConfigCreated is returned when no config existed and a template was written.
var ErrConfigCreated = errors.New("blank config file created")

// Load reads configuration from a YAML file.
// A missing file is replaced by a default template and ErrConfigCreated is returned.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrConfigCreated, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration written for first-time setup.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.Device.IP = "192.168.0.1"
	cfg.Device.Port = 6000
	cfg.History.Retention = 30 * 24 * time.Hour
	applyDefaults(cfg)
	return cfg
}

// WriteDefault writes the default configuration to path, creating parent directories.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	out, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Supervisor.RestartDelay == 0 {
		cfg.Supervisor.RestartDelay = 10 * time.Second
	}
	if cfg.Supervisor.MaxConnectivityFailures == 0 {
		cfg.Supervisor.MaxConnectivityFailures = 3
	}
	if cfg.Device.ProbeInterval == 0 {
		cfg.Device.ProbeInterval = 5 * time.Second
	}
	if cfg.Device.Timeout == 0 {
		cfg.Device.Timeout = 10 * time.Second
	}
	cfg.GitHub.ApplyDefaults()
}
