package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/botrunner/internal/control"
	"github.com/vietddude/botrunner/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "botrunner",
	Short: "Device automation bot runner",
	Long:  `botrunner keeps a device automation bot connected, restarts it after failures, and mirrors its output to GitHub.`,
	Run:   runBot,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env and the config file and initialises logging.
// It exits the process when the config cannot be used.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		if errors.Is(err, config.ErrConfigCreated) {
			slog.Warn("Created a blank config file. Fill it in and restart.", "path", cfgPath)
			os.Exit(0)
		}
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func runBot(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize bot", "error", err)
		os.Exit(1)
	}
	defer app.stores.Close()

	slog.Info("Bot runner started", "config", cfgPath, "device", cfg.Device.Address())

	err = app.supervisor.Run(ctx)
	if errors.Is(err, control.ErrConnectivityExhausted) {
		slog.Error("Giving up on device connection", "error", err)
		app.stores.Close()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Supervisor stopped with error", "error", err)
		app.stores.Close()
		os.Exit(1)
	}

	slog.Info("Bot runner stopped gracefully")
}
