package storage

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store for testing.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	calls   MemCalls
	// PutErr, when set, is returned by every Put.
	PutErr error
}

type memObject struct {
	data    []byte
	modTime time.Time
}

// MemCalls tracks method invocations for test verification.
type MemCalls struct {
	Put    int
	Get    int
	Exists int
	Purge  int
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string]memObject)}
}

// Path returns a pseudo path so callers can log something meaningful.
func (m *MemStore) Path(name string) string {
	return "mem://" + name
}

// Exists reports whether name was stored.
func (m *MemStore) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++
	_, ok := m.objects[name]
	return ok, nil
}

// Put stores a copy of data.
func (m *MemStore) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++
	if m.PutErr != nil {
		return m.PutErr
	}
	m.objects[name] = memObject{data: append([]byte(nil), data...), modTime: time.Now()}
	return nil
}

// Get returns a copy of the stored data.
func (m *MemStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++
	obj, ok := m.objects[name]
	if !ok {
		return nil, ErrNotFound{Name: name}
	}
	return append([]byte(nil), obj.data...), nil
}

// Stat returns metadata for name.
func (m *MemStore) Stat(_ context.Context, name string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[name]
	if !ok {
		return Info{}, ErrNotFound{Name: name}
	}
	return Info{Name: name, Size: int64(len(obj.data)), ModTime: obj.modTime}, nil
}

// Purge deletes every artifact below dir.
func (m *MemStore) Purge(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Purge++
	prefix := strings.TrimSuffix(path.Clean(dir), "/") + "/"
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			delete(m.objects, name)
		}
	}
	return nil
}

// Calls returns a snapshot of the invocation counters.
func (m *MemStore) Calls() MemCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Len returns the number of stored artifacts.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
