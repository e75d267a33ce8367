// Package azure stores archives in Azure Blob Storage.
//
// Settings:
//
//	container     blob container (required)
//	prefix        blob name prefix
//	account_name  storage account (required)
//	account_key   shared key of the account (required)
//	service_url   service endpoint (default https://<account>.blob.core.windows.net/)
//	access_tier   access tier for new blobs (Hot, Cool, Cold, Archive)
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/kdsmith18542/archivekit/store"
	"github.com/kdsmith18542/archivekit/store/objectstore"
)

const (
	PluginName = "azure"

	SettingAccountName = "account_name"
	SettingAccountKey  = "account_key"
	SettingServiceURL  = "service_url"
	SettingAccessTier  = "access_tier"
)

// Descriptor describes the Azure backend.
var Descriptor = store.Descriptor{
	Plugin:      PluginName,
	NameKey:     "azure.pluginname",
	StorageTier: store.TierRemote,
	Retrievable: true,
}

// Client adapts an *azblob.Client to objectstore.Client.
type Client struct {
	client     *azblob.Client
	accessTier func() string
}

// NewClient connects with the shared key configured for plugin.
func NewClient(s store.Settings, plugin string) (*Client, error) {
	account := store.Lookup(s, plugin, SettingAccountName)
	key := store.Lookup(s, plugin, SettingAccountKey)
	if account == "" || key == "" {
		return nil, fmt.Errorf("%s and %s are required", SettingAccountName, SettingAccountKey)
	}

	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credentials: %w", err)
	}
	serviceURL := store.Lookup(s, plugin, SettingServiceURL)
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return &Client{
		client: client,
		accessTier: func() string {
			return store.Lookup(s, plugin, SettingAccessTier)
		},
	}, nil
}

func (c *Client) Put(ctx context.Context, container, key string, r io.Reader, size int64, contentType string) error {
	opts := &azblob.UploadStreamOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if tier, ok := parseAccessTier(c.accessTier()); ok {
		opts.AccessTier = &tier
	}
	if _, err := c.client.UploadStream(ctx, container, key, r, opts); err != nil {
		return fmt.Errorf("failed to upload to Azure Blob: %w", mapError(err))
	}
	return nil
}

func (c *Client) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	resp, err := c.client.DownloadStream(ctx, container, key, nil)
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Body, nil
}

func (c *Client) Delete(ctx context.Context, container, key string) error {
	_, err := c.client.DeleteBlob(ctx, container, key, nil)
	return mapError(err)
}

func (c *Client) Exists(ctx context.Context, container, key string) (bool, error) {
	blobClient := c.client.ServiceClient().NewContainerClient(container).NewBlobClient(key)
	_, err := blobClient.GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if err = mapError(err); errors.Is(err, objectstore.ErrObjectNotFound) {
		return false, nil
	}
	return false, err
}

func (c *Client) Ping(ctx context.Context, container string) error {
	_, err := c.client.ServiceClient().NewContainerClient(container).GetProperties(ctx, nil)
	return mapError(err)
}

// parseAccessTier matches name against the known tiers, ignoring case.
func parseAccessTier(name string) (blob.AccessTier, bool) {
	if name == "" {
		return "", false
	}
	for _, tier := range blob.PossibleAccessTierValues() {
		if strings.EqualFold(string(tier), name) {
			return tier, true
		}
	}
	return "", false
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return fmt.Errorf("%w: %v", objectstore.ErrObjectNotFound, err)
	}
	return err
}

func fingerprint(s store.Settings) string {
	return strings.Join([]string{
		store.Lookup(s, PluginName, SettingAccountName),
		store.Lookup(s, PluginName, SettingAccountKey),
		store.Lookup(s, PluginName, SettingServiceURL),
	}, "\x00")
}

// Factory opens the azure plugin. The client is created on first use.
func Factory(ctx context.Context, s store.Settings, opts store.Options) (store.Driver, error) {
	dial := objectstore.Cached(
		func() string { return fingerprint(s) },
		func(ctx context.Context) (objectstore.Client, error) {
			c, err := NewClient(s, PluginName)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	)
	return objectstore.New(Descriptor, dial, s,
		objectstore.WithContainerKey(objectstore.SettingContainer),
		objectstore.WithLogger(opts.Logger),
		objectstore.WithMaterializer(opts.Materializer),
	), nil
}
