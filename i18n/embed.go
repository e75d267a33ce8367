package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	defaultOnce    sync.Once
	defaultMu      sync.RWMutex
	defaultManager *Manager
)

// NewManagerFromFS creates a manager from every *.toml file in dir of fsys.
//
// Example:
//
//	//go:embed assets/locales/*.toml
//	var assetFS embed.FS
//
//	manager, err := i18n.NewManagerFromFS(assetFS, "assets/locales")
func NewManagerFromFS(fsys fs.FS, dir string) (*Manager, error) {
	manager := NewManager()

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read locales from %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if err := manager.LoadTOML(strings.TrimSuffix(entry.Name(), ".toml"), data); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

// Default returns the process-wide manager, built from the bundles shipped
// with the package unless SetDefault replaced it.
func Default() *Manager {
	defaultOnce.Do(func() {
		manager, err := NewManagerFromFS(localeFS, "locales")
		if err != nil {
			manager = NewManager()
		}
		defaultMu.Lock()
		if defaultManager == nil {
			defaultManager = manager
		}
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultManager
}

// SetDefault replaces the process-wide manager.
func SetDefault(m *Manager) {
	defaultOnce.Do(func() {})
	defaultMu.Lock()
	defaultManager = m
	defaultMu.Unlock()
}

// T translates key with the default manager.
func T(locale, key string, params map[string]interface{}) string {
	return Default().T(locale, key, params)
}
