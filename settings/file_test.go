package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const tomlSettings = `
[localdir]
enabled = true
storage_path = "/srv/archive"

[s3]
bucket = "backups"
enabled = false
`

const yamlSettings = `
localdir:
  storage_path: /srv/yaml
  enabled: true
ipfs:
  api_url: "127.0.0.1:5001"
`

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFileTOML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "archivekit.toml")
	writeFile(t, p, tomlSettings)

	f, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if f.Path() != p {
		t.Errorf("Unexpected path %s", f.Path())
	}

	tests := []struct {
		plugin, key, want string
	}{
		{"localdir", "storage_path", "/srv/archive"},
		{"localdir", "enabled", "true"},
		{"s3", "bucket", "backups"},
		{"s3", "enabled", "false"},
	}
	for _, tt := range tests {
		if v, ok := f.Get(tt.plugin, tt.key); !ok || v != tt.want {
			t.Errorf("Get(%s, %s) = %q, %v", tt.plugin, tt.key, v, ok)
		}
	}
}

func TestLoadFileYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "archivekit.yaml")
	writeFile(t, p, yamlSettings)

	f, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if v, _ := f.Get("localdir", "storage_path"); v != "/srv/yaml" {
		t.Errorf("Unexpected storage path %q", v)
	}
	if v, _ := f.Get("ipfs", "api_url"); v != "127.0.0.1:5001" {
		t.Errorf("Unexpected api_url %q", v)
	}
	if !Bool(f, "localdir", "enabled", false) {
		t.Error("Expected localdir enabled")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{"unknown format", ".ini", "[a]\nb=c"},
		{"broken toml", ".toml", "[a\n"},
		{"top-level scalar", ".toml", "a = 1"},
		{"nested table", ".toml", "[a.b]\nc = 1"},
		{"list value", ".yml", "a:\n  b: [1, 2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.ext, []byte(tt.data)); err == nil {
				t.Error("Expected parse error")
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReloadKeepsValuesOnError(t *testing.T) {
	p := filepath.Join(t.TempDir(), "archivekit.toml")
	writeFile(t, p, tomlSettings)
	f, err := LoadFile(p)
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, p, "[localdir\n")
	if err := f.Reload(); err == nil {
		t.Error("Expected reload error")
	}
	if v, _ := f.Get("localdir", "storage_path"); v != "/srv/archive" {
		t.Errorf("Expected previous values after failed reload, got %q", v)
	}

	writeFile(t, p, "[localdir]\nstorage_path = \"/srv/new\"\n")
	if err := f.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if v, _ := f.Get("localdir", "storage_path"); v != "/srv/new" {
		t.Errorf("Expected reloaded value, got %q", v)
	}
	if _, ok := f.Get("s3", "bucket"); ok {
		t.Error("Expected removed section to disappear")
	}
}

func TestWatch(t *testing.T) {
	p := filepath.Join(t.TempDir(), "archivekit.toml")
	writeFile(t, p, tomlSettings)
	f, err := LoadFile(p)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan error, 16)
	if err := f.Watch(ctx, func(err error) { reloaded <- err }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, p, "[localdir]\nstorage_path = \"/srv/watched\"\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-reloaded:
			if v, _ := f.Get("localdir", "storage_path"); v == "/srv/watched" {
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for settings reload")
		}
	}
}
