// Package gcs stores archives in Google Cloud Storage.
//
// Settings:
//
//	bucket            bucket name (required)
//	prefix            object name prefix
//	credentials_file  service account JSON (default: application default credentials)
//	endpoint          custom endpoint, e.g. a local emulator
//	storage_class     storage class for new objects (NEARLINE, COLDLINE, ...)
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/kdsmith18542/archivekit/store"
	"github.com/kdsmith18542/archivekit/store/objectstore"
)

const (
	PluginName = "gcs"

	SettingCredentialsFile = "credentials_file"
	SettingEndpoint        = "endpoint"
	SettingStorageClass    = "storage_class"
)

// Descriptor describes the GCS backend.
var Descriptor = store.Descriptor{
	Plugin:      PluginName,
	NameKey:     "gcs.pluginname",
	StorageTier: store.TierRemote,
	Retrievable: true,
}

// Client adapts a *storage.Client to objectstore.Client.
type Client struct {
	client       *storage.Client
	storageClass func() string
}

// NewClient connects using the settings of plugin.
func NewClient(ctx context.Context, s store.Settings, plugin string) (*Client, error) {
	var opts []option.ClientOption
	if file := store.Lookup(s, plugin, SettingCredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	if endpoint := store.Lookup(s, plugin, SettingEndpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Client{
		client: client,
		storageClass: func() string {
			return strings.ToUpper(store.Lookup(s, plugin, SettingStorageClass))
		},
	}, nil
}

func (c *Client) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	// Cancelling the context aborts the upload and discards what was written.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := c.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.StorageClass = c.storageClass()
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		w.Close() //nolint:errcheck
		return fmt.Errorf("failed to write to GCS: %w", mapError(err))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", mapError(err))
	}
	return nil
}

func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	r, err := c.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	return mapError(c.client.Bucket(bucket).Object(key).Delete(ctx))
}

func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if err = mapError(err); errors.Is(err, objectstore.ErrObjectNotFound) {
		return false, nil
	}
	return false, err
}

func (c *Client) Ping(ctx context.Context, bucket string) error {
	_, err := c.client.Bucket(bucket).Attrs(ctx)
	return mapError(err)
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %v", objectstore.ErrObjectNotFound, err)
	}
	return err
}

func fingerprint(s store.Settings) string {
	return store.Lookup(s, PluginName, SettingCredentialsFile) + "\x00" + store.Lookup(s, PluginName, SettingEndpoint)
}

// Factory opens the gcs plugin. The client is created on first use.
func Factory(ctx context.Context, s store.Settings, opts store.Options) (store.Driver, error) {
	dial := objectstore.Cached(
		func() string { return fingerprint(s) },
		func(ctx context.Context) (objectstore.Client, error) {
			c, err := NewClient(ctx, s, PluginName)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	)
	return objectstore.New(Descriptor, dial, s,
		objectstore.WithContainerKey(objectstore.SettingBucket),
		objectstore.WithLogger(opts.Logger),
		objectstore.WithMaterializer(opts.Materializer),
	), nil
}
