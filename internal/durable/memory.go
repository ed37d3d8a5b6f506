package durable

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxBytes matches the usual per-origin quota of browser local storage.
const DefaultMaxBytes int64 = 5 * 1024 * 1024

type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]string
	used     int64
	maxBytes int64
}

func NewMemoryStore(maxBytes int64) *MemoryStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &MemoryStore{
		entries:  make(map[string]string),
		maxBytes: maxBytes,
	}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	if m == nil {
		return "", false, errors.New("durable store not initialized")
	}
	m.mu.RLock()
	value, ok := m.entries[key]
	m.mu.RUnlock()
	return value, ok, nil
}

func (m *MemoryStore) Set(key string, value string) error {
	if m == nil {
		return errors.New("durable store not initialized")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used + recordSize(key, value)
	if previous, ok := m.entries[key]; ok {
		used -= recordSize(key, previous)
	}
	if used > m.maxBytes {
		return fmt.Errorf("set %q: %w", key, ErrQuotaExceeded)
	}
	m.entries[key] = value
	m.used = used
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	if m == nil {
		return errors.New("durable store not initialized")
	}
	m.mu.Lock()
	if previous, ok := m.entries[key]; ok {
		m.used -= recordSize(key, previous)
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Used returns the bytes currently charged against the quota.
func (m *MemoryStore) Used() int64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

func recordSize(key string, value string) int64 {
	return int64(len(key) + len(value))
}
