package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Watcher polls a local file and mirrors it whenever its content changes.
type Watcher struct {
	service  *Service
	path     string
	interval time.Duration
	logger   *slog.Logger

	// last is the fingerprint already published or found current.
	last string
}

func NewWatcher(service *Service, path string, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{service: service, path: path, interval: interval, logger: logger}
}

func (w *Watcher) Name() string { return "mirror" }

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Watching file for changes", "path", w.path, "interval", w.interval)
	for {
		w.poll(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		w.logger.Warn("Failed to read mirrored file", "path", w.path, "error", err)
		return
	}

	content := string(data)
	if fp := Fingerprint(content); fp == w.last {
		return
	}

	res, err := w.service.Mirror(ctx, content, fmt.Sprintf("file %s", w.path))
	if err == nil && (res.Published || res.Skipped) {
		w.last = res.Fingerprint
	}
	switch {
	case err == nil && res.Published:
		w.logger.Info("Mirrored file", "path", w.path, "target", res.Target)
	case errors.Is(err, ErrLocked):
		w.logger.Debug("Publish in progress elsewhere", "path", w.path)
	case err != nil:
		w.logger.Warn("Mirror failed", "path", w.path, "error", err)
	}
}
