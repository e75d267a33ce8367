// Package store defines the storage driver contract used to archive course data files.
//
// Features:
//   - Pluggable backends behind a single Driver interface
//   - Static capability descriptors (plugin name, tier, retrieve support)
//   - Immutable file handles carrying size, SHA-256 checksum and MIME type
//   - Typed errors with machine-readable kinds
//   - A registry keyed by plugin name
//   - Observable wrapper for tracing, metrics and logging
//
// Supported backends:
//   - localdir: a directory on the local filesystem (package store/localdir)
//   - s3, s3glacier: Amazon S3 and S3 deep archive (package store/s3)
//   - gcs: Google Cloud Storage (package store/gcs)
//   - azure: Azure Blob Storage (package store/azure)
//   - ipfs: the IPFS mutable file system (package store/ipfs)
//   - memory: in-process object store (package store/objectstore)
//
// Example:
//
//	cfg := settings.NewMap()
//	cfg.Set("localdir", "storage_path", "/var/lib/archivekit")
//
//	driver := localdir.New(cfg)
//	src, _ := store.OpenFile("/tmp/backup-42.mbz")
//
//	handle, err := driver.Store(ctx, 42, src, "2025/course7")
//	if err != nil {
//	    return err
//	}
//
//	// later
//	restored, err := driver.Retrieve(ctx, handle, handle.RetrievalTarget())
//	err = driver.Delete(ctx, handle, false)
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/kdsmith18542/archivekit/i18n"
)

// MinFreeBytes is the free space a filesystem backed driver needs before it
// reports itself as available.
const MinFreeBytes uint64 = 1 << 30

// Driver is the contract every storage backend implements.
type Driver interface {
	// Name returns the localized display name of the backend.
	Name() string

	// PluginName returns the stable machine identifier of the backend.
	// It is written into every handle the driver creates.
	PluginName() string

	// Tier returns the static latency/durability class of the backend.
	Tier() Tier

	// SupportsRetrieve reports whether Retrieve can be called at all.
	// Write-once backends return false.
	SupportsRetrieve() bool

	// IsAvailable is a cheap health check. It never fails; a backend that
	// cannot determine its state reports false.
	IsAvailable(ctx context.Context) bool

	// FreeBytes returns the remaining capacity. The second result is false
	// when the capacity is unknown.
	FreeBytes(ctx context.Context) (uint64, bool)

	// Store places the content of src under logicalPath and returns a handle
	// for it. No handle is returned when any step fails.
	Store(ctx context.Context, jobID int64, src File, logicalPath string) (*FileHandle, error)

	// Retrieve materializes the content referenced by h through the
	// driver's materializer.
	Retrieve(ctx context.Context, h *FileHandle, target RestoreTarget) (File, error)

	// Delete removes the content referenced by h. An absent object is an
	// error only when strict is set.
	Delete(ctx context.Context, h *FileHandle, strict bool) error
}

// Descriptor is the static description of a backend type. Drivers embed it
// to answer the static half of the Driver interface.
type Descriptor struct {
	// Plugin is the stable identifier, e.g. "localdir".
	Plugin string
	// NameKey is the i18n key of the display name.
	NameKey string
	// StorageTier classifies the backend.
	StorageTier Tier
	// Retrievable is false for write-only backends.
	Retrievable bool
}

// PluginName returns the stable identifier of the backend.
func (d Descriptor) PluginName() string {
	return d.Plugin
}

// Tier returns the storage tier of the backend.
func (d Descriptor) Tier() Tier {
	return d.StorageTier
}

// SupportsRetrieve reports whether content can be read back.
func (d Descriptor) SupportsRetrieve() bool {
	return d.Retrievable
}

// Name returns the display name in the default locale.
func (d Descriptor) Name() string {
	return d.DisplayName(i18n.Default().DefaultLocale())
}

// DisplayName returns the display name in the given locale, falling back to
// the plugin name when no translation exists.
func (d Descriptor) DisplayName(locale string) string {
	key := d.NameKey
	if key == "" {
		key = d.Plugin + ".pluginname"
	}
	name := i18n.Default().T(locale, key, nil)
	if name == key {
		return d.Plugin
	}
	return name
}

// Validate checks that the descriptor can be registered.
func (d Descriptor) Validate() error {
	if d.Plugin == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if strings.ContainsAny(d.Plugin, "/\\ \t") {
		return fmt.Errorf("plugin name contains invalid characters: %q", d.Plugin)
	}
	if !d.StorageTier.Valid() {
		return fmt.Errorf("invalid storage tier %d for plugin %s", int(d.StorageTier), d.Plugin)
	}
	return nil
}
