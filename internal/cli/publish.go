package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/botrunner/internal/mirror"
)

var (
	publishFile    string
	publishContent string
	publishLabel   string
	publishForce   bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a file or literal content to the configured GitHub target once",
	Run:   runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishFile, "file", "", "file to publish (default is github.source_file)")
	publishCmd.Flags().StringVar(&publishContent, "content", "", "literal content to publish instead of a file")
	publishCmd.Flags().StringVar(&publishLabel, "label", "cli", "label recorded with the publish")
	publishCmd.Flags().BoolVar(&publishForce, "force", false, "publish even when unchanged or push is disabled")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	content := publishContent
	if content == "" {
		path := publishFile
		if path == "" {
			path = cfg.GitHub.SourceFile
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("Failed to read content", "path", path, "error", err)
			os.Exit(1)
		}
		content = string(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	svc, err := newMirror(cfg, s)
	if err != nil {
		slog.Error("Failed to create publisher", "error", err)
		os.Exit(1)
	}

	var res mirror.Result
	if publishForce {
		res, err = svc.Force(ctx, content, publishLabel)
	} else {
		res, err = svc.Mirror(ctx, content, publishLabel)
	}
	switch {
	case errors.Is(err, mirror.ErrPushDisabled):
		slog.Warn("Push is disabled in config, use --force to publish anyway")
	case err != nil:
		slog.Error("Publish failed", "target", res.Target, "error", err)
		s.Close()
		os.Exit(1)
	case res.Skipped:
		slog.Info("Content unchanged, nothing to publish", "target", res.Target)
	default:
		slog.Info("Published", "target", res.Target, "fingerprint", res.Fingerprint)
	}
}
