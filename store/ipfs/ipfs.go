// Package ipfs stores archives in the mutable file system (MFS) of an IPFS
// node.
//
// Objects are written to /<container>/<key> in the node's MFS, so they stay
// pinned and addressable by path. The container defaults to "archivekit".
//
// Settings:
//
//	api_url    address of the node's HTTP API (default localhost:5001)
//	container  MFS directory holding all objects
//	prefix     key prefix below the container
package ipfs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/kdsmith18542/archivekit/store"
	"github.com/kdsmith18542/archivekit/store/objectstore"
)

const (
	PluginName = "ipfs"

	SettingAPIURL = "api_url"

	DefaultAPIURL    = "localhost:5001"
	DefaultContainer = "archivekit"
)

// Descriptor describes the IPFS backend.
var Descriptor = store.Descriptor{
	Plugin:      PluginName,
	NameKey:     "ipfs.pluginname",
	StorageTier: store.TierRemote,
	Retrievable: true,
}

// Client adapts a go-ipfs-api shell to objectstore.Client.
type Client struct {
	sh *shell.Shell
}

// NewClient talks to the node at apiURL.
func NewClient(apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{sh: shell.NewShell(apiURL)}
}

// mfsPath maps container/key to an absolute MFS path.
func mfsPath(container, key string) string {
	return path.Join("/", container, key)
}

func (c *Client) Put(ctx context.Context, container, key string, r io.Reader, size int64, contentType string) error {
	err := c.sh.FilesWrite(ctx, mfsPath(container, key), r,
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write to IPFS: %w", mapError(err))
	}
	return nil
}

func (c *Client) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	rc, err := c.sh.FilesRead(ctx, mfsPath(container, key))
	if err != nil {
		return nil, mapError(err)
	}
	return rc, nil
}

func (c *Client) Delete(ctx context.Context, container, key string) error {
	return mapError(c.sh.FilesRm(ctx, mfsPath(container, key), true))
}

func (c *Client) Exists(ctx context.Context, container, key string) (bool, error) {
	_, err := c.sh.FilesStat(ctx, mfsPath(container, key))
	if err == nil {
		return true, nil
	}
	if isNotExist(err) {
		return false, nil
	}
	return false, err
}

// Ping checks that the node answers. The container directory is created on
// the first write, so its absence is not an error.
func (c *Client) Ping(ctx context.Context, container string) error {
	if !c.sh.IsUp() {
		return fmt.Errorf("IPFS node is not reachable")
	}
	return nil
}

func isNotExist(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "no link named")
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotExist(err) {
		return fmt.Errorf("%w: %v", objectstore.ErrObjectNotFound, err)
	}
	return err
}

// Factory opens the ipfs plugin.
func Factory(ctx context.Context, s store.Settings, opts store.Options) (store.Driver, error) {
	dial := objectstore.Cached(
		func() string { return store.Lookup(s, PluginName, SettingAPIURL) },
		func(ctx context.Context) (objectstore.Client, error) {
			return NewClient(store.Lookup(s, PluginName, SettingAPIURL)), nil
		},
	)
	return objectstore.New(Descriptor, dial, s,
		objectstore.WithContainerKey(objectstore.SettingContainer),
		objectstore.WithDefaultContainer(DefaultContainer),
		objectstore.WithLogger(opts.Logger),
		objectstore.WithMaterializer(opts.Materializer),
	), nil
}
