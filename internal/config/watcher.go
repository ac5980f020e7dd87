package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"turing-log-tail/pkg/log"
)

// ConfigWatcher reloads a configuration file whenever it changes and hands
// the new configuration to onChange.
type ConfigWatcher struct {
	configPath string
	onChange   func(*Config)
	watcher    *fsnotify.Watcher
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewConfigWatcher creates a new configuration file watcher
func NewConfigWatcher(configPath string, onChange func(*Config)) *ConfigWatcher {
	return &ConfigWatcher{
		configPath: filepath.Clean(configPath),
		onChange:   onChange,
		stopCh:     make(chan struct{}),
	}
}

// Start begins watching. The parent directory is watched so that editors
// replacing the file by rename are noticed.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.configPath)); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.configPath, err)
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.watchLoop(ctx)
	log.Info("Config watcher started", "path", w.configPath)
	return nil
}

// Stop stops watching the configuration file. It is idempotent.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

func (w *ConfigWatcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()
	defer w.watcher.Close()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.configPath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("Config watcher error", "error", err)
		case <-ctx.Done():
			log.Debug("Config watcher stopping due to context cancellation")
			return
		case <-w.stopCh:
			log.Debug("Config watcher stopping due to stop signal")
			return
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := LoadConfig(w.configPath)
	if err != nil {
		log.Warn("Failed to reload configuration", "path", w.configPath, "error", err)
		return
	}
	log.Info("Configuration file changed, reloading", "path", w.configPath)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
