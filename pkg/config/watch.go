package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/groundwork/pkg/observability"
)

// readLogLevel extracts observability.log_level from a YAML config file
func readLogLevel(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var partial struct {
		Observability struct {
			LogLevel string `yaml:"log_level"`
		} `yaml:"observability"`
	}
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return "", err
	}
	return partial.Observability.LogLevel, nil
}

// WatchLogLevel reapplies observability.log_level whenever the config file changes.
// It watches the parent directory so editors that replace the file are handled.
// It returns when ctx is done.
func WatchLogLevel(ctx context.Context, path string, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			level, err := readLogLevel(abs)
			if err != nil {
				logger.WithError(err).Warn("Failed to reload log level")
				continue
			}
			if level == "" {
				continue
			}
			logger.SetLevel(observability.ParseLogLevel(level))
			logger.WithField("log_level", level).Info("Log level reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Config watcher error")
		}
	}
}
