// Package settings supplies plugin configuration to storage drivers.
//
// Every source answers Get(plugin, key) and can be handed to a driver as
// its store.Settings accessor. Drivers look values up on every call, so a
// reloaded file or an updated Map takes effect immediately.
//
// Sources:
//   - Map: in-memory values set by the host
//   - Env: ARCHIVEKIT_<PLUGIN>_<KEY> environment variables
//   - File: a TOML or YAML file with one table per plugin, reloadable
//   - Chain: the first source that has a value wins
package settings

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Source is implemented by every settings source. It matches store.Settings.
type Source interface {
	Get(plugin, key string) (string, bool)
}

// DefaultStoragePath is the default localdir storage_path.
const DefaultStoragePath = "/var/lib/archivekit"

// Map is an in-memory source. The zero value is not usable; use NewMap.
type Map struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]map[string]string)}
}

// Set stores value under plugin/key.
func (m *Map) Set(plugin, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[plugin] == nil {
		m.values[plugin] = make(map[string]string)
	}
	m.values[plugin][key] = value
}

// Unset removes plugin/key.
func (m *Map) Unset(plugin, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values[plugin], key)
}

func (m *Map) Get(plugin, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[plugin][key]
	return v, ok
}

// Defaults returns the built-in defaults.
func Defaults() *Map {
	m := NewMap()
	m.Set("localdir", "enabled", "1")
	m.Set("localdir", "storage_path", DefaultStoragePath)
	return m
}

// Env reads ARCHIVEKIT_<PLUGIN>_<KEY>, upper-cased.
type Env struct {
	// Prefix replaces "ARCHIVEKIT" when set.
	Prefix string
}

// EnvName returns the variable consulted for plugin/key.
func (e Env) EnvName(plugin, key string) string {
	prefix := e.Prefix
	if prefix == "" {
		prefix = "ARCHIVEKIT"
	}
	name := prefix + "_" + plugin + "_" + key
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(name))
}

func (e Env) Get(plugin, key string) (string, bool) {
	return os.LookupEnv(e.EnvName(plugin, key))
}

// Chain consults its sources in order.
type Chain []Source

func (c Chain) Get(plugin, key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Get(plugin, key); ok {
			return v, true
		}
	}
	return "", false
}

// Bool parses plugin/key as a boolean ("1", "true", "on", ...).
func Bool(s Source, plugin, key string, def bool) bool {
	v, ok := s.Get(plugin, key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes":
		return true
	case "off", "no":
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Int64 parses plugin/key as an integer.
func Int64(s Source, plugin, key string, def int64) int64 {
	v, ok := s.Get(plugin, key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return n
}
