package i18n

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func TestTranslate(t *testing.T) {
	m := NewManager()
	m.AddLocale("en", map[string]string{
		"localdir.pluginname": "Local directory",
		"localdir.stored":     "Stored file {{.File}} in {{.Dir}}",
		"only.english":        "English only",
	})
	m.AddLocale("de", map[string]string{
		"localdir.pluginname": "Lokales Verzeichnis",
	})

	tests := []struct {
		name   string
		locale string
		key    string
		params map[string]interface{}
		want   string
	}{
		{"exact", "de", "localdir.pluginname", nil, "Lokales Verzeichnis"},
		{"base language", "de-CH", "localdir.pluginname", nil, "Lokales Verzeichnis"},
		{"fallback locale", "de", "only.english", nil, "English only"},
		{"default locale", "", "localdir.pluginname", nil, "Local directory"},
		{"missing key", "en", "nope", nil, "nope"},
		{"params", "en", "localdir.stored", map[string]interface{}{"File": "a.txt", "Dir": "/srv"}, "Stored file a.txt in /srv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.T(tt.locale, tt.key, tt.params); got != tt.want {
				t.Errorf("T() = %q, want %q", got, tt.want)
			}
		})
	}

	if !m.Has("en", "only.english") || m.Has("de", "only.english") {
		t.Error("Has() should not fall back")
	}
}

func TestLoadTOML(t *testing.T) {
	m := NewManager()
	err := m.LoadTOML("en", []byte(`
[localdir]
pluginname = "Local directory"

[tier]
LOCAL = "Local"
count = 3
`))
	if err != nil {
		t.Fatalf("LoadTOML failed: %v", err)
	}

	if got := m.T("en", "localdir.pluginname", nil); got != "Local directory" {
		t.Errorf("Unexpected flattened value %q", got)
	}
	if got := m.T("en", "tier.count", nil); got != "3" {
		t.Errorf("Unexpected scalar value %q", got)
	}
	if err := m.LoadTOML("en", []byte("[broken")); err == nil {
		t.Error("Expected parse error")
	}
}

func TestLoadDirAndMissingKeys(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "en.toml"), []byte("[a]\nx = \"1\"\ny = \"2\"\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "de.toml"), []byte("[a]\nx = \"eins\"\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644)

	m := NewManager()
	if err := m.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	locales := m.Locales()
	if len(locales) != 2 || locales[0] != "de" || locales[1] != "en" {
		t.Errorf("Unexpected locales %v", locales)
	}

	missing := m.MissingKeys()
	if len(missing["de"]) != 1 || missing["de"][0] != "a.y" {
		t.Errorf("Unexpected missing keys %v", missing)
	}
	if len(missing["en"]) != 0 {
		t.Errorf("Expected en to be complete, got %v", missing["en"])
	}

	if err := m.LoadDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestNewManagerFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.toml": {Data: []byte("[memory]\npluginname = \"In-memory store\"\n")},
		"locales/notes":   {Data: []byte("skip")},
	}
	m, err := NewManagerFromFS(fsys, "locales")
	if err != nil {
		t.Fatalf("NewManagerFromFS failed: %v", err)
	}
	if got := m.T("en", "memory.pluginname", nil); got != "In-memory store" {
		t.Errorf("Unexpected value %q", got)
	}

	if _, err := NewManagerFromFS(fsys, "nope"); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestBundledLocalesComplete(t *testing.T) {
	m := Default()
	for locale, keys := range m.MissingKeys() {
		if len(keys) > 0 {
			t.Errorf("Locale %s is missing keys: %v", locale, keys)
		}
	}
	if got := T("de", "localdir.pluginname", nil); got != "Lokales Verzeichnis" {
		t.Errorf("Unexpected bundled German name %q", got)
	}
}

func TestWatchLocalesWithNonExistentDirectory(t *testing.T) {
	manager := NewManager()

	if _, err := manager.WatchLocales("/non/existent/path"); err == nil {
		t.Error("Expected error for non-existent directory")
	}
}

func TestWatchLocalesReload(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager()

	stop, err := manager.WatchLocales(dir)
	if err != nil {
		t.Fatalf("WatchLocales failed: %v", err)
	}
	defer stop()

	if err := os.WriteFile(filepath.Join(dir, "fr.toml"), []byte("[memory]\npluginname = \"Stockage en memoire\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if manager.Has("fr", "memory.pluginname") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("Expected fr locale to be loaded by the watcher")
}
