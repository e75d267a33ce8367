package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MockDescriptor describes MockDriver.
var MockDescriptor = Descriptor{
	Plugin:      "mock",
	NameKey:     "mock.pluginname",
	StorageTier: TierLocal,
	Retrievable: true,
}

// MockDriver implements Driver in memory for testing. Errors set on the
// Fail* fields are returned by the corresponding operation.
type MockDriver struct {
	Descriptor

	mu    sync.RWMutex
	files map[string][]byte

	Free        uint64
	FreeKnown   bool
	FailStore   error
	FailDelete  error
	Materialize Materializer
}

// NewMockDriver creates a new mock driver with 2 GiB of free space.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		Descriptor: MockDescriptor,
		files:      make(map[string][]byte),
		Free:       2 << 30,
		FreeKnown:  true,
	}
}

func (m *MockDriver) IsAvailable(ctx context.Context) bool {
	free, known := m.FreeBytes(ctx)
	return known && free > MinFreeBytes
}

func (m *MockDriver) FreeBytes(ctx context.Context) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Free, m.FreeKnown
}

func (m *MockDriver) Store(ctx context.Context, jobID int64, src File, logicalPath string) (*FileHandle, error) {
	p, err := NormalizePath(logicalPath)
	if err != nil {
		return nil, WithOp(err, "store", m.Plugin)
	}
	if err := ValidateFilename(src.Filename()); err != nil {
		return nil, WithOp(err, "store", m.Plugin)
	}
	if m.FailStore != nil {
		return nil, NewError(KindIO, "store", m.Plugin, p, m.FailStore)
	}

	rc, err := src.Open()
	if err != nil {
		return nil, NewError(KindIO, "store", m.Plugin, p, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewError(KindIO, "store", m.Plugin, p, err)
	}
	sum, _, _ := ChecksumReader(bytes.NewReader(data))

	h := NewFileHandle(jobID, m.Plugin, src, p, sum)
	m.mu.Lock()
	m.files[h.Key()] = data
	m.mu.Unlock()
	return h, nil
}

func (m *MockDriver) Retrieve(ctx context.Context, h *FileHandle, target RestoreTarget) (File, error) {
	if !m.Retrievable {
		return nil, NewError(KindUnsupported, "retrieve", m.Plugin, h.Key(), fmt.Errorf("backend does not support retrieve"))
	}
	m.mu.RLock()
	data, ok := m.files[h.Key()]
	m.mu.RUnlock()
	if !ok {
		return nil, NewError(KindNotFound, "retrieve", m.Plugin, h.Key(), nil)
	}
	mat := m.Materialize
	if mat == nil {
		mat = MemoryMaterializer{}
	}
	f, err := mat.Materialize(ctx, target, bytes.NewReader(data))
	if err != nil {
		return nil, NewError(KindIO, "retrieve", m.Plugin, h.Key(), err)
	}
	return f, nil
}

func (m *MockDriver) Delete(ctx context.Context, h *FileHandle, strict bool) error {
	if m.FailDelete != nil {
		return NewError(KindIO, "delete", m.Plugin, h.Key(), m.FailDelete)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[h.Key()]; !ok {
		if strict {
			return NewError(KindNotFound, "delete", m.Plugin, h.Key(), nil)
		}
		return nil
	}
	delete(m.files, h.Key())
	return nil
}

// Has reports whether key is stored.
func (m *MockDriver) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[key]
	return ok
}
