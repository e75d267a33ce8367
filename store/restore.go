package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// RestoreTarget tells the materializer where and as what retrieved content
// should appear. Drivers pass it through without looking at it.
type RestoreTarget struct {
	JobID    int64
	Path     string
	Filename string
	MIMEType string
	Size     int64
	Labels   map[string]string
}

// Materializer turns a stream of retrieved bytes into the caller's file
// representation.
type Materializer interface {
	Materialize(ctx context.Context, target RestoreTarget, r io.Reader) (File, error)
}

// MaterializerFunc adapts a function to Materializer.
type MaterializerFunc func(ctx context.Context, target RestoreTarget, r io.Reader) (File, error)

func (f MaterializerFunc) Materialize(ctx context.Context, target RestoreTarget, r io.Reader) (File, error) {
	return f(ctx, target, r)
}

// DirMaterializer writes restored content below Dir, mirroring the target's
// path. With an empty Dir every restore goes to a fresh temporary file.
type DirMaterializer struct {
	Dir string
}

func (m DirMaterializer) Materialize(ctx context.Context, target RestoreTarget, r io.Reader) (File, error) {
	if err := ValidateFilename(target.Filename); err != nil {
		return nil, err
	}
	if m.Dir == "" {
		return materializeTemp(target, r)
	}

	logical, err := NormalizePath(target.Path)
	if err != nil {
		return nil, err
	}
	dir, err := JoinUnder(m.Dir, logical)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create restore directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".archivekit-restore-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create restore file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return nil, fmt.Errorf("failed to write restore file: %w", err)
	}

	dst := filepath.Join(dir, target.Filename)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return nil, fmt.Errorf("failed to move restore file into place: %w", err)
	}
	return &OSFile{Path: dst, Name: target.Filename, Len: n, Type: restoredType(target, dst)}, nil
}

func materializeTemp(target RestoreTarget, r io.Reader) (File, error) {
	tmp, err := os.CreateTemp("", "archivekit-restore-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create restore file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return nil, fmt.Errorf("failed to write restore file: %w", err)
	}
	return &OSFile{Path: tmp.Name(), Name: target.Filename, Len: n, Type: restoredType(target, tmp.Name())}, nil
}

func restoredType(target RestoreTarget, p string) string {
	if target.MIMEType != "" {
		return target.MIMEType
	}
	return detectFileType(p)
}

// MemoryMaterializer restores content into a MemFile.
type MemoryMaterializer struct{}

func (MemoryMaterializer) Materialize(ctx context.Context, target RestoreTarget, r io.Reader) (File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read restored content: %w", err)
	}
	return NewMemFile(target.Filename, data, target.MIMEType), nil
}

// DefaultMaterializer is used by drivers that were not given one.
var DefaultMaterializer Materializer = DirMaterializer{}
