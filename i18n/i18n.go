// Package i18n provides localized strings for storage backends.
//
// Message bundles are TOML files named after their locale (en.toml,
// de.toml). Nested tables are flattened into dotted keys, so
//
//	[localdir]
//	pluginname = "Local directory"
//
// is looked up as "localdir.pluginname". Messages may use {{.Name}}
// template parameters.
//
// Example:
//
//	manager := i18n.NewManager()
//	if err := manager.LoadDir("./locales"); err != nil {
//	    log.Fatal(err)
//	}
//	name := manager.T("de", "localdir.pluginname", nil)
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/BurntSushi/toml"
)

// Manager holds all translation data and configuration.
// It is safe for concurrent use.
type Manager struct {
	locales        map[string]map[string]string
	defaultLocale  string
	fallbackLocale string
	mu             sync.RWMutex
}

// NewManager creates a manager with no locales loaded.
func NewManager() *Manager {
	return &Manager{
		locales:        make(map[string]map[string]string),
		defaultLocale:  "en",
		fallbackLocale: "en",
	}
}

// SetDefaultLocale sets the locale used when none is requested.
func (m *Manager) SetDefaultLocale(locale string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLocale = locale
}

// DefaultLocale returns the locale used when none is requested.
func (m *Manager) DefaultLocale() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultLocale
}

// SetFallbackLocale sets the locale consulted when a key is missing.
func (m *Manager) SetFallbackLocale(locale string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackLocale = locale
}

// T translates key into locale. Missing keys fall back to the fallback
// locale and then to the key itself.
func (m *Manager) T(locale, key string, params map[string]interface{}) string {
	m.mu.RLock()
	if locale == "" {
		locale = m.defaultLocale
	}
	message, ok := m.lookup(locale, key)
	if !ok {
		message, ok = m.lookup(m.fallbackLocale, key)
	}
	m.mu.RUnlock()

	if !ok {
		return key
	}
	return substituteParams(message, params)
}

// lookup tries the exact locale, then its base language ("de" for "de-CH").
// Callers hold m.mu.
func (m *Manager) lookup(locale, key string) (string, bool) {
	if messages, ok := m.locales[locale]; ok {
		if msg, ok := messages[key]; ok {
			return msg, true
		}
	}
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		if messages, ok := m.locales[locale[:i]]; ok {
			if msg, ok := messages[key]; ok {
				return msg, true
			}
		}
	}
	return "", false
}

// Has reports whether locale defines key, without fallback.
func (m *Manager) Has(locale, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locales[locale][key]
	return ok
}

func substituteParams(message string, params map[string]interface{}) string {
	if len(params) == 0 {
		return message
	}

	tmpl, err := template.New("message").Parse(message)
	if err != nil {
		return message
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, params); err != nil {
		return message
	}

	return buf.String()
}

// AddLocale adds or replaces a locale from flat messages.
func (m *Manager) AddLocale(code string, messages map[string]string) {
	copied := make(map[string]string, len(messages))
	for k, v := range messages {
		copied[k] = v
	}
	m.mu.Lock()
	m.locales[code] = copied
	m.mu.Unlock()
}

// LoadTOML parses a TOML bundle and installs it as locale code.
func (m *Manager) LoadTOML(code string, data []byte) error {
	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse locale %s: %w", code, err)
	}
	messages := make(map[string]string)
	flatten(raw, "", messages)
	m.AddLocale(code, messages)
	return nil
}

func flatten(in map[string]interface{}, prefix string, out map[string]string) {
	for key, value := range in {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]interface{}:
			flatten(v, fullKey, out)
		case string:
			out[fullKey] = v
		default:
			out[fullKey] = fmt.Sprint(v)
		}
	}
}

// LoadFile loads a single TOML bundle from disk.
func (m *Manager) LoadFile(code, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadTOML(code, data)
}

// LoadDir loads every *.toml file in dir; the file name is the locale code.
func (m *Manager) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		code := strings.TrimSuffix(entry.Name(), ".toml")
		if err := m.LoadFile(code, filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to load locale %s: %v", code, err)
		}
	}

	return nil
}

// Locales returns the loaded locale codes, sorted.
func (m *Manager) Locales() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	locales := make([]string, 0, len(m.locales))
	for code := range m.locales {
		locales = append(locales, code)
	}
	sort.Strings(locales)
	return locales
}

// MissingKeys lists, per locale, the keys other locales define but it does
// not.
func (m *Manager) MissingKeys() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]bool)
	for _, messages := range m.locales {
		for key := range messages {
			all[key] = true
		}
	}

	missing := make(map[string][]string)
	for code, messages := range m.locales {
		for key := range all {
			if _, ok := messages[key]; !ok {
				missing[code] = append(missing[code], key)
			}
		}
		sort.Strings(missing[code])
	}
	return missing
}
