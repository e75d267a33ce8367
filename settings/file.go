package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File is a source backed by a TOML or YAML file, chosen by extension.
// Each top-level table is a plugin:
//
//	[localdir]
//	enabled = true
//	storage_path = "/srv/archive"
type File struct {
	path string

	mu     sync.RWMutex
	values map[string]map[string]string
}

// LoadFile reads the settings file at path.
func LoadFile(path string) (*File, error) {
	f := &File{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the file the source reads.
func (f *File) Path() string {
	return f.path
}

// Reload re-reads the file. On error the previous values stay in place.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}
	values, err := Parse(filepath.Ext(f.path), data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	f.mu.Lock()
	f.values = values
	f.mu.Unlock()
	return nil
}

func (f *File) Get(plugin, key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[plugin][key]
	return v, ok
}

// Parse decodes settings data. ext selects the format: ".toml", ".yaml" or
// ".yml".
func Parse(ext string, data []byte) (map[string]map[string]string, error) {
	var raw map[string]interface{}
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported settings format %q", ext)
	}

	values := make(map[string]map[string]string, len(raw))
	for plugin, section := range raw {
		table, ok := section.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("settings for %s must be a table", plugin)
		}
		values[plugin] = make(map[string]string, len(table))
		for key, v := range table {
			switch val := v.(type) {
			case string:
				values[plugin][key] = val
			case map[string]interface{}, []interface{}:
				return nil, fmt.Errorf("setting %s/%s must be a scalar", plugin, key)
			default:
				values[plugin][key] = fmt.Sprint(val)
			}
		}
	}
	return values, nil
}
