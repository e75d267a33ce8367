package i18n

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kdsmith18542/archivekit/logging"
)

// WatchLocales watches the locale directory for changes and reloads changed files.
// The returned function stops the watcher.
func (m *Manager) WatchLocales(dir string) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	logger := logging.Named("i18n")
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				filename := filepath.Base(event.Name)
				if !strings.HasSuffix(filename, ".toml") {
					continue
				}
				code := strings.TrimSuffix(filename, ".toml")
				logger.Info("reloading locale", zap.String("locale", code))
				if err := m.LoadFile(code, event.Name); err != nil {
					logger.Warn("failed to reload locale", zap.String("locale", code), zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("locale watcher error", zap.Error(err))
			}
		}
	}()

	return watcher.Close, nil
}
