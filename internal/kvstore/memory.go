package kvstore

import (
	"context"
	"slices"
	"sync"
)

// Memory is a process-local Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[namespace][key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (m *Memory) Write(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := m.data[namespace]
	if ns == nil {
		ns = make(map[string][]byte)
		m.data[namespace] = ns
	}
	ns[key] = slices.Clone(value)
	return nil
}

func (m *Memory) WriteBatch(ctx context.Context, namespace string, values map[string][]byte) error {
	for k, v := range values {
		_ = m.Write(ctx, namespace, k, v)
	}
	return nil
}

func (m *Memory) DeleteKeys(_ context.Context, namespace string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data[namespace], k)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, namespace)
	return nil
}

func (m *Memory) Scan(_ context.Context, namespace string, fn func(string, []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data[namespace]))
	for k := range m.data[namespace] {
		keys = append(keys, k)
	}
	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = slices.Clone(m.data[namespace][k])
	}
	m.mu.RUnlock()
	slices.Sort(keys)
	for _, k := range keys {
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
