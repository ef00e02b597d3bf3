package objstore

import (
	"context"
	"sort"
	"sync"
)

type memoryObject struct {
	body []byte
	meta map[string]string
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	puts    int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, body []byte, meta map[string]string) error {
	obj := memoryObject{
		body: append([]byte(nil), body...),
		meta: make(map[string]string, len(meta)),
	}
	for k, v := range meta {
		obj.meta[k] = v
	}

	m.mu.Lock()
	m.objects[key] = obj
	m.puts++
	m.mu.Unlock()

	WrittenBytes.WithLabelValues("memory").Add(float64(len(body)))
	observe("memory", "put", nil)
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		observe("memory", "get", ErrNotFound)
		return nil, ErrNotFound
	}
	observe("memory", "get", nil)
	return append([]byte(nil), obj.body...), nil
}

// Head implements Store.
func (m *Memory) Head(_ context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		observe("memory", "head", ErrNotFound)
		return nil, ErrNotFound
	}

	meta := make(map[string]string, len(obj.meta))
	for k, v := range obj.meta {
		meta[k] = v
	}
	observe("memory", "head", nil)
	return meta, nil
}

// Exists implements Store.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()

	observe("memory", "exists", nil)
	return ok, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()

	observe("memory", "delete", nil)
	return nil
}

// Keys returns all stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts returns the number of Put calls served.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
