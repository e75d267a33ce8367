package settings

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kdsmith18542/archivekit/logging"
)

// Watch reloads the file whenever it is written, created or renamed into
// place, until ctx is done. The directory is watched rather than the file so
// that editors replacing the file are noticed. onReload, if non-nil, is
// called after every reload attempt.
func (f *File) Watch(ctx context.Context, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	logger := logging.Named("settings")
	target := filepath.Clean(f.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				err := f.Reload()
				if err != nil {
					logger.Warn("failed to reload settings", zap.String("path", f.path), zap.Error(err))
				} else {
					logger.Info("reloaded settings", zap.String("path", f.path))
				}
				if onReload != nil {
					onReload(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("settings watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
