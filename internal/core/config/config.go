package config

import (
	"time"

	"github.com/vietddude/botrunner/internal/infra/device"
	"github.com/vietddude/botrunner/internal/infra/github"
	redisclient "github.com/vietddude/botrunner/internal/infra/redis"
	"github.com/vietddude/botrunner/internal/infra/storage/postgres"
	"github.com/vietddude/botrunner/internal/integration/chat"
	"github.com/vietddude/botrunner/internal/integration/messaging"
	"github.com/vietddude/botrunner/internal/integration/web"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	Device     device.Config      `yaml:"device"`
	Supervisor SupervisorConfig   `yaml:"supervisor"`
	Discord    messaging.Config   `yaml:"discord"`
	Twitch     chat.Config        `yaml:"twitch"`
	Web        web.Config         `yaml:"web"`
	GitHub     github.Config      `yaml:"github"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
	History    HistoryConfig      `yaml:"history"`

	// SkipTask starts the integrations only and never runs the automation loop.
	SkipTask bool `yaml:"skip_task"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SupervisorConfig tunes the restart loop.
type SupervisorConfig struct {
	RestartDelay            time.Duration `yaml:"restart_delay"`
	MaxConnectivityFailures uint          `yaml:"max_connectivity_failures"`
}

// HistoryConfig controls how long run and publish history is kept.
type HistoryConfig struct {
	Retention time.Duration `yaml:"retention"` // 0 keeps everything
}
