// Package localdir stores archives in a directory on the local filesystem.
//
// The directory is read from the "localdir/storage_path" setting on every
// operation. Content is laid out as <root>/<logical path>/<filename> with no
// sidecar files; the handle kept by the caller is the only metadata.
package localdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/kdsmith18542/archivekit/logging"
	"github.com/kdsmith18542/archivekit/store"
)

const (
	// PluginName is the identifier written into handles.
	PluginName = "localdir"
	// SettingStoragePath holds the absolute storage root.
	SettingStoragePath = "storage_path"

	dirMode  = 0o755
	fileMode = 0o644
)

// Descriptor describes the local directory backend.
var Descriptor = store.Descriptor{
	Plugin:      PluginName,
	NameKey:     "localdir.pluginname",
	StorageTier: store.TierLocal,
	Retrievable: true,
}

// DiskFreeFunc reports the bytes available to unprivileged users on the
// filesystem holding path.
type DiskFreeFunc func(path string) (uint64, error)

// Driver implements store.Driver over a local directory.
type Driver struct {
	store.Descriptor

	settings     store.Settings
	logger       *zap.Logger
	materializer store.Materializer
	diskFree     DiskFreeFunc
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMaterializer sets how retrieved files are materialized.
func WithMaterializer(m store.Materializer) Option {
	return func(d *Driver) {
		if m != nil {
			d.materializer = m
		}
	}
}

// WithDiskFree replaces the free space probe.
func WithDiskFree(fn DiskFreeFunc) Option {
	return func(d *Driver) {
		if fn != nil {
			d.diskFree = fn
		}
	}
}

// New creates a driver reading its configuration from s.
func New(s store.Settings, opts ...Option) *Driver {
	d := &Driver{
		Descriptor:   Descriptor,
		settings:     s,
		logger:       logging.Named(PluginName),
		materializer: store.DefaultMaterializer,
		diskFree:     diskFree,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Factory adapts New to store.Factory.
func Factory(ctx context.Context, s store.Settings, opts store.Options) (store.Driver, error) {
	return New(s, WithLogger(opts.Logger), WithMaterializer(opts.Materializer)), nil
}

// root resolves the configured storage root. It must be set, absolute and
// an existing directory.
func (d *Driver) root(op string) (string, error) {
	root := store.Lookup(d.settings, PluginName, SettingStoragePath)
	if root == "" {
		return "", store.NewError(store.KindConfiguration, op, PluginName, "", fmt.Errorf("storage path is not set"))
	}
	if !filepath.IsAbs(root) {
		return "", store.NewError(store.KindConfiguration, op, PluginName, "", fmt.Errorf("storage path %s is not absolute", root))
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", store.NewError(store.KindConfiguration, op, PluginName, "", fmt.Errorf("storage path %s: %w", root, err))
	}
	if !info.IsDir() {
		return "", store.NewError(store.KindConfiguration, op, PluginName, "", fmt.Errorf("storage path %s is not a directory", root))
	}
	return filepath.Clean(root), nil
}

// configuredRoot returns the storage path setting without checking the
// filesystem, for operations where a missing root means missing content.
func (d *Driver) configuredRoot(op string) (string, error) {
	root := store.Lookup(d.settings, PluginName, SettingStoragePath)
	if root == "" {
		return "", store.NewError(store.KindConfiguration, op, PluginName, "", fmt.Errorf("storage path is not set"))
	}
	if !filepath.IsAbs(root) {
		return "", store.NewError(store.KindConfiguration, op, PluginName, "", fmt.Errorf("storage path %s is not absolute", root))
	}
	return filepath.Clean(root), nil
}

// FreeBytes returns the space available below the storage root.
func (d *Driver) FreeBytes(ctx context.Context) (uint64, bool) {
	root, err := d.root("free_bytes")
	if err != nil {
		return 0, false
	}
	free, err := d.diskFree(root)
	if err != nil {
		return 0, false
	}
	return free, true
}

// IsAvailable reports whether more than store.MinFreeBytes are free.
func (d *Driver) IsAvailable(ctx context.Context) bool {
	free, known := d.FreeBytes(ctx)
	return known && free > store.MinFreeBytes
}

// Store copies src to <root>/<logicalPath>/<filename>.
func (d *Driver) Store(ctx context.Context, jobID int64, src store.File, logicalPath string) (*store.FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.NewError(store.KindIO, "store", PluginName, logicalPath, err)
	}

	logical, err := store.NormalizePath(logicalPath)
	if err != nil {
		return nil, store.WithOp(err, "store", PluginName)
	}
	if err := store.ValidateFilename(src.Filename()); err != nil {
		return nil, store.WithOp(err, "store", PluginName)
	}

	sum, err := store.Checksum(src)
	if err != nil {
		return nil, store.NewError(store.KindIO, "store", PluginName, logical, err)
	}
	h := store.NewFileHandle(jobID, PluginName, src, logical, sum)

	root, err := d.root("store")
	if err != nil {
		return nil, err
	}
	dir, err := store.JoinUnder(root, logical)
	if err != nil {
		return nil, store.WithOp(err, "store", PluginName)
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, store.NewError(store.KindIO, "store", PluginName, h.Key(), fmt.Errorf("failed to create directory: %w", err))
	}

	if err := place(src, dir, h); err != nil {
		d.logger.Warn("store failed",
			zap.Int64("job_id", jobID),
			zap.String("key", h.Key()),
			zap.Error(err),
		)
		return nil, store.NewError(store.KindIO, "store", PluginName, h.Key(), err)
	}

	d.logger.Info("stored file",
		zap.Int64("job_id", jobID),
		zap.String("dir", dir),
		zap.String("path", h.Path),
		zap.String("filename", h.Filename),
		zap.Int64("size", h.Size),
	)
	return h, nil
}

// place writes src to a hidden temporary file in dir, checks it against h
// and renames it onto dir/h.Filename. An existing file is replaced.
func place(src store.File, dir string, h *store.FileHandle) error {
	tmp, err := os.CreateTemp(dir, ".archivekit-part-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	cleanup := func() {
		os.Remove(tmpPath) //nolint:errcheck
	}

	if err := src.CopyTo(tmpPath); err != nil {
		cleanup()
		return fmt.Errorf("failed to copy content: %w", err)
	}

	sum, n, err := store.ChecksumPath(tmpPath)
	if err != nil {
		cleanup()
		return fmt.Errorf("failed to verify written content: %w", err)
	}
	if n != h.Size {
		cleanup()
		return fmt.Errorf("incomplete copy: wrote %d of %d bytes", n, h.Size)
	}
	if sum != h.Checksum {
		cleanup()
		return fmt.Errorf("written content does not match source checksum")
	}

	if err := os.Chmod(tmpPath, fileMode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, h.Filename)); err != nil {
		cleanup()
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// path recomputes the absolute location of h under the current root.
func (d *Driver) path(op string, h *store.FileHandle) (string, error) {
	if err := store.ValidateFilename(h.Filename); err != nil {
		return "", store.WithOp(err, op, PluginName)
	}
	logical, err := store.NormalizePath(h.Path)
	if err != nil {
		return "", store.WithOp(err, op, PluginName)
	}
	root, err := d.configuredRoot(op)
	if err != nil {
		return "", err
	}
	dir, err := store.JoinUnder(root, logical)
	if err != nil {
		return "", store.WithOp(err, op, PluginName)
	}
	return filepath.Join(dir, h.Filename), nil
}

// isMissing reports whether err means nothing exists at the path. ENOTDIR
// shows up when a path component, possibly the root, is a regular file.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// Retrieve hands the stored content to the materializer.
func (d *Driver) Retrieve(ctx context.Context, h *store.FileHandle, target store.RestoreTarget) (store.File, error) {
	if !d.Retrievable {
		return nil, store.NewError(store.KindUnsupported, "retrieve", PluginName, h.Key(), nil)
	}
	p, err := d.path("retrieve", h)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if isMissing(err) {
			return nil, store.NewError(store.KindNotFound, "retrieve", PluginName, h.Key(), nil)
		}
		return nil, store.NewError(store.KindIO, "retrieve", PluginName, h.Key(), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, store.NewError(store.KindIO, "retrieve", PluginName, h.Key(), err)
	}
	if !info.Mode().IsRegular() {
		return nil, store.NewError(store.KindNotFound, "retrieve", PluginName, h.Key(), fmt.Errorf("not a regular file"))
	}

	restored, err := d.materializer.Materialize(ctx, target, f)
	if err != nil {
		return nil, store.NewError(store.KindIO, "retrieve", PluginName, h.Key(), fmt.Errorf("failed to materialize: %w", err))
	}
	return restored, nil
}

// Delete removes the file of h and then its parent directory if that is
// left empty. Only one directory level is pruned per call and the storage
// root itself is never removed.
func (d *Driver) Delete(ctx context.Context, h *store.FileHandle, strict bool) error {
	p, err := d.path("delete", h)
	if err != nil {
		return err
	}

	info, err := os.Lstat(p)
	if err != nil {
		if isMissing(err) {
			if strict {
				return store.NewError(store.KindNotFound, "delete", PluginName, h.Key(), nil)
			}
			return nil
		}
		return store.NewError(store.KindIO, "delete", PluginName, h.Key(), err)
	}
	if info.IsDir() {
		return store.NewError(store.KindIO, "delete", PluginName, h.Key(), fmt.Errorf("refusing to delete a directory"))
	}

	if err := os.Remove(p); err != nil {
		return store.NewError(store.KindIO, "delete", PluginName, h.Key(), fmt.Errorf("failed to delete file: %w", err))
	}

	root, _ := d.configuredRoot("delete")
	if dir := filepath.Dir(p); dir != root {
		if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
			// Another store may race us into the directory; Remove then fails
			// with ENOTEMPTY and the directory stays.
			os.Remove(dir) //nolint:errcheck
		}
	}

	d.logger.Debug("deleted file", zap.Int64("job_id", h.JobID), zap.String("key", h.Key()))
	return nil
}
