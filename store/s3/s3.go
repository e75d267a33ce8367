// Package s3 stores archives in Amazon S3 or an S3-compatible service.
//
// Two plugins are provided: "s3" for regular buckets and "s3glacier", a
// write-only cold tier that uploads with the DEEP_ARCHIVE storage class.
//
// Settings (per plugin):
//
//	bucket            bucket name (required)
//	prefix            key prefix
//	region            AWS region (default us-east-1)
//	endpoint          custom endpoint for S3-compatible services
//	access_key        static access key id (default: AWS credential chain)
//	secret_key        static secret access key
//	force_path_style  path-style addressing, e.g. for MinIO
//	storage_class     storage class for new objects
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/kdsmith18542/archivekit/store"
	"github.com/kdsmith18542/archivekit/store/objectstore"
)

const (
	PluginName        = "s3"
	GlacierPluginName = "s3glacier"

	SettingRegion         = "region"
	SettingEndpoint       = "endpoint"
	SettingAccessKey      = "access_key"
	SettingSecretKey      = "secret_key"
	SettingForcePathStyle = "force_path_style"
	SettingStorageClass   = "storage_class"

	defaultRegion = "us-east-1"
)

var (
	// Descriptor describes the regular S3 backend.
	Descriptor = store.Descriptor{
		Plugin:      PluginName,
		NameKey:     "s3.pluginname",
		StorageTier: store.TierRemote,
		Retrievable: true,
	}

	// GlacierDescriptor describes the deep archive backend. Restoring from
	// deep archive takes hours, so it is write-only here.
	GlacierDescriptor = store.Descriptor{
		Plugin:      GlacierPluginName,
		NameKey:     "s3glacier.pluginname",
		StorageTier: store.TierCold,
		Retrievable: false,
	}
)

// API is the subset of *s3.Client the adapter uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Client adapts an S3 API to objectstore.Client.
type Client struct {
	api          API
	storageClass func() string
}

// NewClient wraps api. storageClass is consulted on every upload and may be
// nil.
func NewClient(api API, storageClass func() string) *Client {
	if storageClass == nil {
		storageClass = func() string { return "" }
	}
	return &Client{api: api, storageClass: storageClass}
}

func (c *Client) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if class := c.storageClass(); class != "" {
		input.StorageClass = types.StorageClass(strings.ToUpper(class))
	}
	if _, err := c.api.PutObject(ctx, input); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out.Body, nil
}

func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return mapError(err)
}

func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if err = mapError(err); errors.Is(err, objectstore.ErrObjectNotFound) {
		return false, nil
	}
	return false, err
}

func (c *Client) Ping(ctx context.Context, bucket string) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	return mapError(err)
}

// mapError turns missing-object responses into objectstore.ErrObjectNotFound.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", objectstore.ErrObjectNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %v", objectstore.ErrObjectNotFound, err)
		}
	}
	return err
}

// NewAPI builds an *s3.Client from the connection settings of plugin.
func NewAPI(ctx context.Context, s store.Settings, plugin string) (*s3.Client, error) {
	region := store.Lookup(s, plugin, SettingRegion)
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	accessKey := store.Lookup(s, plugin, SettingAccessKey)
	secretKey := store.Lookup(s, plugin, SettingSecretKey)
	if accessKey != "" || secretKey != "" {
		if accessKey == "" || secretKey == "" {
			return nil, fmt.Errorf("both %s and %s must be set", SettingAccessKey, SettingSecretKey)
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := store.Lookup(s, plugin, SettingEndpoint)
	pathStyle := settingBool(s, plugin, SettingForcePathStyle)
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	}), nil
}

func settingBool(s store.Settings, plugin, key string) bool {
	switch strings.ToLower(store.Lookup(s, plugin, key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// fingerprint identifies the connection settings of plugin.
func fingerprint(s store.Settings, plugin string) string {
	parts := make([]string, 0, 5)
	for _, key := range []string{SettingRegion, SettingEndpoint, SettingAccessKey, SettingSecretKey, SettingForcePathStyle} {
		parts = append(parts, store.Lookup(s, plugin, key))
	}
	return strings.Join(parts, "\x00")
}

func open(desc store.Descriptor, defaultClass string) store.Factory {
	return func(ctx context.Context, s store.Settings, opts store.Options) (store.Driver, error) {
		plugin := desc.Plugin
		storageClass := func() string {
			if class := store.Lookup(s, plugin, SettingStorageClass); class != "" {
				return class
			}
			return defaultClass
		}
		dial := objectstore.Cached(
			func() string { return fingerprint(s, plugin) },
			func(ctx context.Context) (objectstore.Client, error) {
				api, err := NewAPI(ctx, s, plugin)
				if err != nil {
					return nil, err
				}
				return NewClient(api, storageClass), nil
			},
		)
		return objectstore.New(desc, dial, s,
			objectstore.WithContainerKey(objectstore.SettingBucket),
			objectstore.WithLogger(opts.Logger),
			objectstore.WithMaterializer(opts.Materializer),
		), nil
	}
}

// Factory opens the s3 plugin.
var Factory = open(Descriptor, "")

// GlacierFactory opens the s3glacier plugin.
var GlacierFactory = open(GlacierDescriptor, string(types.StorageClassDeepArchive))
