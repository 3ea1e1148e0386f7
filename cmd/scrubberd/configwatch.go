package main

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"

	"github.com/colonelpanic8/scrobble-scrubber-go/internal/config"
	"github.com/colonelpanic8/scrobble-scrubber-go/internal/logging"
)

// watchConfigFile reloads the logging configuration whenever the config
// file on disk changes, the one setting that is safe to apply without a
// restart. Falls back to doing nothing if fsnotify is unavailable, rather
// than failing startup over a convenience feature.
func watchConfigFile(ctx context.Context, path string, logMgr *logging.Manager, logger *slog.Logger) {
	if path == "" {
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("fsnotify unavailable, config hot-reload disabled", "error", err)
		return
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(path); err != nil {
		logger.Warn("watching config file failed, config hot-reload disabled", "path", path, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloadLoggingConfig(path, logMgr, logger)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error("fsnotify error watching config file", "error", err)
		}
	}
}

func reloadLoggingConfig(path string, logMgr *logging.Manager, logger *slog.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("reloading config after file change", "error", err)
		return
	}
	logMgr.Reconfigure(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
	logger.Info("reloaded logging configuration", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
}
