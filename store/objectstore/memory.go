package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/kdsmith18542/archivekit/store"
)

// MemoryPluginName identifies the in-process object store.
const MemoryPluginName = "memory"

// MemoryDescriptor describes the in-process object store.
var MemoryDescriptor = store.Descriptor{
	Plugin:      MemoryPluginName,
	NameKey:     "memory.pluginname",
	StorageTier: store.TierLocal,
	Retrievable: true,
}

// DefaultMemoryContainer is used by the memory plugin when no container is
// configured.
const DefaultMemoryContainer = "archive"

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryClient is an in-memory Client.
type MemoryClient struct {
	mu         sync.RWMutex
	containers map[string]map[string]memoryObject
	fixed      bool
}

// NewMemoryClient creates a client. When containers are given only those
// exist; otherwise containers are created on first use.
func NewMemoryClient(containers ...string) *MemoryClient {
	c := &MemoryClient{
		containers: make(map[string]map[string]memoryObject),
		fixed:      len(containers) > 0,
	}
	for _, name := range containers {
		c.containers[name] = make(map[string]memoryObject)
	}
	return c
}

func (c *MemoryClient) container(name string, create bool) (map[string]memoryObject, error) {
	objects, ok := c.containers[name]
	if ok {
		return objects, nil
	}
	if c.fixed || !create {
		return nil, fmt.Errorf("container %s: %w", name, ErrObjectNotFound)
	}
	objects = make(map[string]memoryObject)
	c.containers[name] = objects
	return objects, nil
}

func (c *MemoryClient) Put(ctx context.Context, container, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: got %d bytes, expected %d", len(data), size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	objects, err := c.container(container, true)
	if err != nil {
		return err
	}
	objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (c *MemoryClient) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if objects, ok := c.containers[container]; ok {
		if obj, ok := objects[key]; ok {
			return io.NopCloser(bytes.NewReader(obj.data)), nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", container, key, ErrObjectNotFound)
}

func (c *MemoryClient) Delete(ctx context.Context, container, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	objects, ok := c.containers[container]
	if !ok {
		return fmt.Errorf("%s/%s: %w", container, key, ErrObjectNotFound)
	}
	if _, ok := objects[key]; !ok {
		return fmt.Errorf("%s/%s: %w", container, key, ErrObjectNotFound)
	}
	delete(objects, key)
	return nil
}

func (c *MemoryClient) Exists(ctx context.Context, container, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.containers[container][key]
	return ok, nil
}

func (c *MemoryClient) Ping(ctx context.Context, container string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.container(container, true)
	return err
}

// Keys lists the keys stored in container, sorted.
func (c *MemoryClient) Keys(container string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.containers[container]))
	for k := range c.containers[container] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContentType returns the content type recorded for container/key.
func (c *MemoryClient) ContentType(container, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.containers[container][key].contentType
}

// MemoryFactory builds the memory plugin. Each driver gets its own client,
// so content lives only as long as the driver.
func MemoryFactory(ctx context.Context, s store.Settings, opts store.Options) (store.Driver, error) {
	return New(MemoryDescriptor, Static(NewMemoryClient()), s,
		WithContainerKey(SettingContainer),
		WithDefaultContainer(DefaultMemoryContainer),
		WithLogger(opts.Logger),
		WithMaterializer(opts.Materializer),
	), nil
}
