package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemFile(t *testing.T) {
	f := NewMemFile("notes.txt", []byte("hello"), "")

	if f.Filename() != "notes.txt" || f.Size() != 5 {
		t.Errorf("Unexpected file: %s %d", f.Filename(), f.Size())
	}
	if !strings.HasPrefix(f.MIMEType(), "text/plain") {
		t.Errorf("Expected text/plain, got %s", f.MIMEType())
	}

	dst := filepath.Join(t.TempDir(), "copy.txt")
	if err := f.CopyTo(dst); err != nil {
		t.Fatalf("CopyTo failed: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "hello" {
		t.Errorf("Unexpected copy: %q", got)
	}
}

func TestOSFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.bin")
	content := []byte{0x00, 0x01, 0x02, 0x03}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenFile(p)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if f.Filename() != "data.bin" || f.Size() != 4 {
		t.Errorf("Unexpected file: %s %d", f.Filename(), f.Size())
	}

	rc, err := f.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, content) {
		t.Error("Unexpected content")
	}

	if _, err := OpenFile(dir); err == nil {
		t.Error("Expected error opening a directory")
	}
	if _, err := OpenFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("Expected error opening a missing file")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want string
	}{
		{"report.pdf", nil, "application/pdf"},
		{"REPORT.PDF", nil, "application/pdf"},
		{"noext", []byte("%PDF-1.7 rest"), "application/pdf"},
		{"noext", nil, "application/octet-stream"},
		{"noext", []byte{0x00, 0x01, 0x02}, "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := DetectMIMEType(tt.name, tt.head); got != tt.want {
			t.Errorf("DetectMIMEType(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestChecksum(t *testing.T) {
	data := bytes.Repeat([]byte("archive"), 200000)
	sum := sha256.Sum256(data)
	want := hex.EncodeToString(sum[:])

	got, n, err := ChecksumReader(bytes.NewReader(data))
	if err != nil || got != want || n != int64(len(data)) {
		t.Errorf("ChecksumReader() = %s, %d, %v", got, n, err)
	}

	f := NewMemFile("a.bin", data, "")
	if got, err := Checksum(f); err != nil || got != want {
		t.Errorf("Checksum() = %s, %v", got, err)
	}

	p := filepath.Join(t.TempDir(), "a.bin")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if got, n, err := ChecksumPath(p); err != nil || got != want || n != int64(len(data)) {
		t.Errorf("ChecksumPath() = %s, %d, %v", got, n, err)
	}

	if got, _, _ := ChecksumReader(bytes.NewReader(nil)); got != emptySHA256 {
		t.Errorf("Unexpected checksum of empty input: %s", got)
	}
}

func TestVerifyFile(t *testing.T) {
	f := NewMemFile("a.txt", []byte{}, "")
	if err := VerifyFile(f, emptySHA256); err != nil {
		t.Errorf("VerifyFile failed: %v", err)
	}
	if err := VerifyFile(f, strings.Repeat("0", 64)); !errors.Is(err, ErrIO) {
		t.Errorf("Expected i/o error on mismatch, got %v", err)
	}
}

func TestDirMaterializer(t *testing.T) {
	dir := t.TempDir()
	m := DirMaterializer{Dir: dir}
	target := RestoreTarget{Path: "2025/course7", Filename: "report.pdf", MIMEType: "application/pdf"}

	f, err := m.Materialize(context.Background(), target, strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if f.Filename() != "report.pdf" || f.Size() != 7 || f.MIMEType() != "application/pdf" {
		t.Errorf("Unexpected file: %s %d %s", f.Filename(), f.Size(), f.MIMEType())
	}
	got, err := os.ReadFile(filepath.Join(dir, "2025", "course7", "report.pdf"))
	if err != nil || string(got) != "content" {
		t.Errorf("Unexpected restored file: %q, %v", got, err)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "2025", "course7"))
	if len(entries) != 1 {
		t.Errorf("Expected no leftover temporary files, got %d entries", len(entries))
	}

	if _, err := m.Materialize(context.Background(), RestoreTarget{Path: "../x", Filename: "a"}, strings.NewReader("")); !errors.Is(err, ErrPathSafety) {
		t.Errorf("Expected path safety error, got %v", err)
	}
}

func TestDirMaterializerLongFilename(t *testing.T) {
	name := strings.Repeat("b", 240) + ".mbz"
	if err := os.WriteFile(filepath.Join(t.TempDir(), name), nil, 0o644); err != nil {
		t.Skipf("Filesystem does not accept %d byte names: %v", len(name), err)
	}

	dir := t.TempDir()
	f, err := DirMaterializer{Dir: dir}.Materialize(context.Background(), RestoreTarget{Filename: name}, strings.NewReader("long"))
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if f.Filename() != name || f.Size() != 4 {
		t.Errorf("Unexpected file: %s %d", f.Filename(), f.Size())
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Errorf("Expected restored file: %v", err)
	}
}

func TestTempMaterializer(t *testing.T) {
	f, err := DirMaterializer{}.Materialize(context.Background(), RestoreTarget{Filename: "x.txt"}, strings.NewReader("temp"))
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	osf, ok := f.(*OSFile)
	if !ok {
		t.Fatalf("Expected *OSFile, got %T", f)
	}
	defer os.Remove(osf.Path)

	if f.Filename() != "x.txt" {
		t.Errorf("Expected restored filename x.txt, got %s", f.Filename())
	}
	if !strings.HasPrefix(filepath.Base(osf.Path), "archivekit-restore-") {
		t.Errorf("Unexpected temporary path %s", osf.Path)
	}
}

func TestMemoryMaterializer(t *testing.T) {
	f, err := MemoryMaterializer{}.Materialize(context.Background(), RestoreTarget{Filename: "m.txt", MIMEType: "text/plain"}, strings.NewReader("mem"))
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if f.Size() != 3 || f.MIMEType() != "text/plain" {
		t.Errorf("Unexpected file: %d %s", f.Size(), f.MIMEType())
	}
}
