package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdsmith18542/archivekit/settings"
	"github.com/kdsmith18542/archivekit/store"
	"github.com/kdsmith18542/archivekit/store/objectstore"
)

type fakeObject struct {
	data         []byte
	contentType  string
	storageClass types.StorageClass
}

// fakeAPI is an in-memory stand-in for *s3.Client.
type fakeAPI struct {
	mu      sync.Mutex
	buckets map[string]map[string]fakeObject
}

func newFakeAPI(buckets ...string) *fakeAPI {
	f := &fakeAPI{buckets: make(map[string]map[string]fakeObject)}
	for _, b := range buckets {
		f.buckets[b] = make(map[string]fakeObject)
	}
	return f
}

func (f *fakeAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	objects, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "bucket does not exist"}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	objects[aws.ToString(in.Key)] = fakeObject{
		data:         data,
		contentType:  aws.ToString(in.ContentType),
		storageClass: in.StorageClass,
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.buckets[aws.ToString(in.Bucket)][aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.buckets[aws.ToString(in.Bucket)], aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.buckets[aws.ToString(in.Bucket)][aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(obj.data)))}, nil
}

func (f *fakeAPI) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[aws.ToString(in.Bucket)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeAPI) object(bucket, key string) (fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.buckets[bucket][key]
	return obj, ok
}

func newDriver(desc store.Descriptor, api API, cfg *settings.Map, class func() string) *objectstore.Driver {
	return objectstore.New(desc, objectstore.Static(NewClient(api, class)), cfg,
		objectstore.WithMaterializer(store.MemoryMaterializer{}))
}

func TestS3RoundTrip(t *testing.T) {
	api := newFakeAPI("course-archive")
	cfg := settings.NewMap()
	cfg.Set(PluginName, "bucket", "course-archive")
	cfg.Set(PluginName, "prefix", "prod")
	d := newDriver(Descriptor, api, cfg, nil)
	ctx := context.Background()

	assert.True(t, d.IsAvailable(ctx))

	content := bytes.Repeat([]byte{0xAB}, 1024)
	h, err := d.Store(ctx, 1, store.NewMemFile("report.pdf", content, ""), "2025/course7")
	require.NoError(t, err)
	assert.Equal(t, "s3", h.Backend)

	obj, ok := api.object("course-archive", "prod/2025/course7/report.pdf")
	require.True(t, ok)
	assert.Equal(t, content, obj.data)
	assert.Equal(t, "application/pdf", obj.contentType)
	assert.Empty(t, obj.storageClass)

	f, err := d.Retrieve(ctx, h, h.RetrievalTarget())
	require.NoError(t, err)
	assert.NoError(t, store.VerifyFile(f, h.Checksum))

	require.NoError(t, d.Delete(ctx, h, true))
	assert.NoError(t, d.Delete(ctx, h, false))
	assert.ErrorIs(t, d.Delete(ctx, h, true), store.ErrNotFound)

	_, err = d.Retrieve(ctx, h, h.RetrievalTarget())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestS3MissingBucket(t *testing.T) {
	api := newFakeAPI()
	cfg := settings.NewMap()
	cfg.Set(PluginName, "bucket", "gone")
	d := newDriver(Descriptor, api, cfg, nil)
	ctx := context.Background()

	assert.False(t, d.IsAvailable(ctx))
	h, err := d.Store(ctx, 1, store.NewMemFile("a.txt", []byte("a"), ""), "")
	assert.Nil(t, h)
	assert.ErrorIs(t, err, store.ErrIO)
}

func TestGlacierIsWriteOnly(t *testing.T) {
	api := newFakeAPI("cold")
	cfg := settings.NewMap()
	cfg.Set(GlacierPluginName, "bucket", "cold")
	d := newDriver(GlacierDescriptor, api, cfg, func() string { return "deep_archive" })
	ctx := context.Background()

	assert.Equal(t, store.TierCold, d.Tier())
	assert.False(t, d.SupportsRetrieve())

	h, err := d.Store(ctx, 5, store.NewMemFile("backup.mbz", []byte("archive"), ""), "")
	require.NoError(t, err)

	obj, ok := api.object("cold", "backup.mbz")
	require.True(t, ok)
	assert.Equal(t, types.StorageClassDeepArchive, obj.storageClass)

	_, err = d.Retrieve(ctx, h, h.RetrievalTarget())
	assert.ErrorIs(t, err, store.ErrUnsupported)
	assert.NoError(t, d.Delete(ctx, h, true))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"nil", nil, false},
		{"no such key", &types.NoSuchKey{}, true},
		{"head not found", &types.NotFound{}, true},
		{"generic not found", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"no such bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.notFound, errors.Is(err, objectstore.ErrObjectNotFound))
		})
	}
}

func TestNewAPIRequiresKeyPair(t *testing.T) {
	cfg := settings.NewMap()
	cfg.Set(PluginName, SettingAccessKey, "AKIAEXAMPLE")

	api, err := NewAPI(context.Background(), cfg, PluginName)
	assert.Error(t, err)
	assert.Nil(t, api)
}

func TestNewAPIWithEndpoint(t *testing.T) {
	cfg := settings.NewMap()
	cfg.Set(PluginName, SettingAccessKey, "minio")
	cfg.Set(PluginName, SettingSecretKey, "minio123")
	cfg.Set(PluginName, SettingEndpoint, "http://localhost:9000")
	cfg.Set(PluginName, SettingForcePathStyle, "true")

	api, err := NewAPI(context.Background(), cfg, PluginName)
	require.NoError(t, err)

	opts := api.Options()
	assert.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "us-east-1", opts.Region)
}

func TestFactoryWithoutBucket(t *testing.T) {
	d, err := Factory(context.Background(), settings.NewMap(), store.Options{})
	require.NoError(t, err)
	assert.Equal(t, PluginName, d.PluginName())
	assert.False(t, d.IsAvailable(context.Background()))

	free, known := d.FreeBytes(context.Background())
	assert.False(t, known)
	assert.Zero(t, free)

	_, err = d.Store(context.Background(), 1, store.NewMemFile("a.txt", []byte("a"), ""), "")
	assert.ErrorIs(t, err, store.ErrConfiguration)
}
