// Package objectstore implements store.Driver over flat key/value object
// stores such as S3, GCS, Azure Blob Storage and the IPFS mutable file
// system.
//
// Adapters provide a Client for the service; the Driver in this package
// turns handles into object keys, reads the container and key prefix from
// settings on every call and maps client failures to store error kinds.
// Keys have the form [<prefix>/]<logical path>/<filename>.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kdsmith18542/archivekit/logging"
	"github.com/kdsmith18542/archivekit/store"
)

// ErrObjectNotFound is returned (possibly wrapped) by clients when the
// requested object or its container does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Common setting keys.
const (
	SettingBucket    = "bucket"
	SettingContainer = "container"
	SettingPrefix    = "prefix"
)

// Client is the minimal object API a backend must offer.
type Client interface {
	// Put uploads r as container/key. size is the exact content length.
	Put(ctx context.Context, container, key string, r io.Reader, size int64, contentType string) error
	// Get opens container/key for reading.
	Get(ctx context.Context, container, key string) (io.ReadCloser, error)
	// Delete removes container/key.
	Delete(ctx context.Context, container, key string) error
	// Exists reports whether container/key is present.
	Exists(ctx context.Context, container, key string) (bool, error)
	// Ping checks that container is reachable.
	Ping(ctx context.Context, container string) error
}

// Driver implements store.Driver on top of a Client.
type Driver struct {
	store.Descriptor

	dial             Dialer
	settings         store.Settings
	containerKey     string
	defaultContainer string
	logger           *zap.Logger
	materializer     store.Materializer
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

// WithMaterializer sets how retrieved objects are materialized.
func WithMaterializer(m store.Materializer) Option {
	return func(d *Driver) {
		if m != nil {
			d.materializer = m
		}
	}
}

// WithContainerKey names the setting that holds the container. The default
// is "bucket".
func WithContainerKey(key string) Option {
	return func(d *Driver) {
		d.containerKey = key
	}
}

// WithDefaultContainer is used when the container setting is empty.
func WithDefaultContainer(name string) Option {
	return func(d *Driver) {
		d.defaultContainer = name
	}
}

// New creates a driver for desc. dial is called on every operation and
// may cache clients.
func New(desc store.Descriptor, dial Dialer, s store.Settings, opts ...Option) *Driver {
	d := &Driver{
		Descriptor:   desc,
		dial:         dial,
		settings:     s,
		containerKey: SettingBucket,
		logger:       logging.Named(desc.Plugin),
		materializer: store.DefaultMaterializer,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type location struct {
	client    Client
	container string
	prefix    string
}

func (d *Driver) locate(ctx context.Context, op string) (location, error) {
	container := store.Lookup(d.settings, d.Plugin, d.containerKey)
	if container == "" {
		container = d.defaultContainer
	}
	if container == "" {
		return location{}, store.NewError(store.KindConfiguration, op, d.Plugin, "", fmt.Errorf("%s is not set", d.containerKey))
	}
	client, err := d.dial(ctx)
	if err != nil {
		return location{}, store.NewError(store.KindConfiguration, op, d.Plugin, "", fmt.Errorf("failed to create client: %w", err))
	}
	return location{
		client:    client,
		container: container,
		prefix:    store.Lookup(d.settings, d.Plugin, SettingPrefix),
	}, nil
}

// FreeBytes is always unknown for object stores.
func (d *Driver) FreeBytes(ctx context.Context) (uint64, bool) {
	return 0, false
}

// IsAvailable reports whether the container is configured and reachable.
func (d *Driver) IsAvailable(ctx context.Context) bool {
	loc, err := d.locate(ctx, "is_available")
	if err != nil {
		return false
	}
	if err := loc.client.Ping(ctx, loc.container); err != nil {
		d.logger.Debug("container unreachable", zap.String("container", loc.container), zap.Error(err))
		return false
	}
	return true
}

// Store uploads src as [<prefix>/]<logicalPath>/<filename>.
func (d *Driver) Store(ctx context.Context, jobID int64, src store.File, logicalPath string) (*store.FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.NewError(store.KindIO, "store", d.Plugin, logicalPath, err)
	}

	logical, err := store.NormalizePath(logicalPath)
	if err != nil {
		return nil, store.WithOp(err, "store", d.Plugin)
	}
	if err := store.ValidateFilename(src.Filename()); err != nil {
		return nil, store.WithOp(err, "store", d.Plugin)
	}

	loc, err := d.locate(ctx, "store")
	if err != nil {
		return nil, err
	}

	sum, err := store.Checksum(src)
	if err != nil {
		return nil, store.NewError(store.KindIO, "store", d.Plugin, logical, err)
	}
	h := store.NewFileHandle(jobID, d.Plugin, src, logical, sum)
	key := store.ObjectKey(loc.prefix, h)

	// An existing object may belong to a handle returned earlier. Service
	// puts replace objects atomically, so a failed put leaves it intact and
	// it must not be cleaned up.
	existed, err := loc.client.Exists(ctx, loc.container, key)
	if err != nil {
		d.logger.Debug("could not check for existing object", zap.String("key", key), zap.Error(err))
		existed = true
	}

	if err := d.put(ctx, loc, key, src, h); err != nil {
		if !existed {
			d.cleanup(ctx, loc, key)
		}
		return nil, store.NewError(store.KindIO, "store", d.Plugin, h.Key(), err)
	}

	d.logger.Info("stored file",
		zap.Int64("job_id", jobID),
		zap.String("container", loc.container),
		zap.String("key", key),
		zap.Int64("size", h.Size),
	)
	return h, nil
}

// cleanup removes what a failed put may have left under key.
func (d *Driver) cleanup(ctx context.Context, loc location, key string) {
	err := loc.client.Delete(context.WithoutCancel(ctx), loc.container, key)
	if err != nil && !errors.Is(err, ErrObjectNotFound) {
		d.logger.Warn("failed to clean up after store", zap.String("key", key), zap.Error(err))
	}
}

func (d *Driver) put(ctx context.Context, loc location, key string, src store.File, h *store.FileHandle) error {
	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer rc.Close()

	// rc is passed through unwrapped so that seekable sources stay
	// seekable for clients that sign payloads.
	if err := loc.client.Put(ctx, loc.container, key, rc, h.Size, h.MIMEType); err != nil {
		return fmt.Errorf("failed to upload: %w", err)
	}
	return nil
}

// Retrieve streams the object into the materializer.
func (d *Driver) Retrieve(ctx context.Context, h *store.FileHandle, target store.RestoreTarget) (store.File, error) {
	if !d.Retrievable {
		return nil, store.NewError(store.KindUnsupported, "retrieve", d.Plugin, h.Key(), fmt.Errorf("backend is write-only"))
	}
	key, loc, err := d.objectKey(ctx, "retrieve", h)
	if err != nil {
		return nil, err
	}

	rc, err := loc.client.Get(ctx, loc.container, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, store.NewError(store.KindNotFound, "retrieve", d.Plugin, h.Key(), nil)
		}
		return nil, store.NewError(store.KindIO, "retrieve", d.Plugin, h.Key(), err)
	}
	defer rc.Close()

	f, err := d.materializer.Materialize(ctx, target, rc)
	if err != nil {
		return nil, store.NewError(store.KindIO, "retrieve", d.Plugin, h.Key(), fmt.Errorf("failed to materialize: %w", err))
	}
	return f, nil
}

// Delete removes the object of h. The namespace is flat, so there are no
// directories to prune.
func (d *Driver) Delete(ctx context.Context, h *store.FileHandle, strict bool) error {
	key, loc, err := d.objectKey(ctx, "delete", h)
	if err != nil {
		return err
	}

	exists, err := loc.client.Exists(ctx, loc.container, key)
	if err != nil {
		return store.NewError(store.KindIO, "delete", d.Plugin, h.Key(), err)
	}
	if !exists {
		if strict {
			return store.NewError(store.KindNotFound, "delete", d.Plugin, h.Key(), nil)
		}
		return nil
	}

	if err := loc.client.Delete(ctx, loc.container, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			if strict {
				return store.NewError(store.KindNotFound, "delete", d.Plugin, h.Key(), nil)
			}
			return nil
		}
		return store.NewError(store.KindIO, "delete", d.Plugin, h.Key(), err)
	}

	d.logger.Debug("deleted object", zap.Int64("job_id", h.JobID), zap.String("key", key))
	return nil
}

func (d *Driver) objectKey(ctx context.Context, op string, h *store.FileHandle) (string, location, error) {
	if err := store.ValidateFilename(h.Filename); err != nil {
		return "", location{}, store.WithOp(err, op, d.Plugin)
	}
	logical, err := store.NormalizePath(h.Path)
	if err != nil {
		return "", location{}, store.WithOp(err, op, d.Plugin)
	}
	loc, err := d.locate(ctx, op)
	if err != nil {
		return "", location{}, err
	}
	normalized := *h
	normalized.Path = logical
	return store.ObjectKey(loc.prefix, &normalized), loc, nil
}
