package azure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdsmith18542/archivekit/settings"
	"github.com/kdsmith18542/archivekit/store"
	"github.com/kdsmith18542/archivekit/store/objectstore"
)

// "dGVzdGtleQ==" is base64 for "testkey".
const testAccountKey = "dGVzdGtleQ=="

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		account string
		key     string
		wantErr bool
	}{
		{"missing account", "", testAccountKey, true},
		{"missing key", "devstoreaccount1", "", true},
		{"key not base64", "devstoreaccount1", "not base64!", true},
		{"valid", "devstoreaccount1", testAccountKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := settings.NewMap()
			cfg.Set(PluginName, SettingAccountName, tt.account)
			cfg.Set(PluginName, SettingAccountKey, tt.key)

			client, err := NewClient(cfg, PluginName)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestNotFoundResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("restype") == "container" {
			w.Header().Set("x-ms-error-code", "ContainerNotFound")
		} else {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := settings.NewMap()
	cfg.Set(PluginName, SettingAccountName, "devstoreaccount1")
	cfg.Set(PluginName, SettingAccountKey, testAccountKey)
	cfg.Set(PluginName, SettingServiceURL, server.URL+"/devstoreaccount1/")
	cfg.Set(PluginName, objectstore.SettingContainer, "archive")

	client, err := NewClient(cfg, PluginName)
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := client.Exists(ctx, "archive", "course/7/report.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, client.Ping(ctx, "archive"), objectstore.ErrObjectNotFound)

	d, err := Factory(ctx, cfg, store.Options{})
	require.NoError(t, err)
	assert.False(t, d.IsAvailable(ctx))

	h := &store.FileHandle{Backend: PluginName, Filename: "report.pdf", Path: "course/7"}
	assert.NoError(t, d.Delete(ctx, h, false))
	assert.ErrorIs(t, d.Delete(ctx, h, true), store.ErrNotFound)
}

func TestFactoryWithoutContainer(t *testing.T) {
	d, err := Factory(context.Background(), settings.NewMap(), store.Options{})
	require.NoError(t, err)
	assert.Equal(t, PluginName, d.PluginName())
	assert.Equal(t, store.TierRemote, d.Tier())

	_, err = d.Store(context.Background(), 1, store.NewMemFile("a.txt", []byte("a"), ""), "")
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestFactoryWithoutCredentials(t *testing.T) {
	cfg := settings.NewMap()
	cfg.Set(PluginName, objectstore.SettingContainer, "archive")
	d, err := Factory(context.Background(), cfg, store.Options{})
	require.NoError(t, err)

	_, err = d.Store(context.Background(), 1, store.NewMemFile("a.txt", []byte("a"), ""), "")
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestParseAccessTier(t *testing.T) {
	tier, ok := parseAccessTier("cool")
	assert.True(t, ok)
	assert.Equal(t, blob.AccessTierCool, tier)

	tier, ok = parseAccessTier("Archive")
	assert.True(t, ok)
	assert.Equal(t, blob.AccessTierArchive, tier)

	_, ok = parseAccessTier("")
	assert.False(t, ok)
	_, ok = parseAccessTier("lukewarm")
	assert.False(t, ok)
}

func TestMapError(t *testing.T) {
	notFound := &azcore.ResponseError{ErrorCode: "BlobNotFound", StatusCode: http.StatusNotFound}
	assert.ErrorIs(t, mapError(notFound), objectstore.ErrObjectNotFound)

	denied := &azcore.ResponseError{ErrorCode: "AuthorizationFailure", StatusCode: http.StatusForbidden}
	err := mapError(denied)
	assert.False(t, errors.Is(err, objectstore.ErrObjectNotFound))
	assert.NoError(t, mapError(nil))
}
