// Package builtin registers every storage backend shipped with archivekit.
package builtin

import (
	"github.com/kdsmith18542/archivekit/store"
	"github.com/kdsmith18542/archivekit/store/azure"
	"github.com/kdsmith18542/archivekit/store/gcs"
	"github.com/kdsmith18542/archivekit/store/ipfs"
	"github.com/kdsmith18542/archivekit/store/localdir"
	"github.com/kdsmith18542/archivekit/store/objectstore"
	"github.com/kdsmith18542/archivekit/store/s3"
)

// Register adds all built-in backends to r.
func Register(r *store.Registry) error {
	entries := []struct {
		desc    store.Descriptor
		factory store.Factory
	}{
		{localdir.Descriptor, localdir.Factory},
		{objectstore.MemoryDescriptor, objectstore.MemoryFactory},
		{s3.Descriptor, s3.Factory},
		{s3.GlacierDescriptor, s3.GlacierFactory},
		{gcs.Descriptor, gcs.Factory},
		{azure.Descriptor, azure.Factory},
		{ipfs.Descriptor, ipfs.Factory},
	}
	for _, e := range entries {
		if err := r.Register(e.desc, e.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry with all built-in backends.
func NewRegistry() *store.Registry {
	r := store.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
