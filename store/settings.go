package store

import (
	"strconv"
	"strings"
)

// Settings is the configuration accessor injected into drivers. Lookups are
// scoped by plugin name and happen on every operation, so changes are seen
// without rebuilding the driver.
type Settings interface {
	Get(plugin, key string) (string, bool)
}

// SettingsFunc adapts a function to Settings.
type SettingsFunc func(plugin, key string) (string, bool)

func (f SettingsFunc) Get(plugin, key string) (string, bool) {
	return f(plugin, key)
}

// Lookup returns the trimmed value of a setting, or "" when unset.
func Lookup(s Settings, plugin, key string) string {
	if s == nil {
		return ""
	}
	v, ok := s.Get(plugin, key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Enabled reports the plugin's "enabled" toggle. Plugins are enabled unless
// the setting parses as false.
func Enabled(s Settings, plugin string) bool {
	v := Lookup(s, plugin, "enabled")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}
