package store

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	"consentd/internal/sentinel"
)

// Error Contract:
// MemorySlots follows the Slots contract. Values are copied on the way in and
// out so callers never share a backing array with the map.

// MemorySlots keeps slot values in memory. It backs tests and single-process
// deployments without a database path.
type MemorySlots struct {
	mu            sync.RWMutex
	values        map[string]map[string][]byte
	maxValueBytes int
	disabled      atomic.Bool
}

// NewMemorySlots constructs empty in-memory slots. A positive maxValueBytes
// rejects larger writes with sentinel.ErrQuotaExceeded.
func NewMemorySlots(maxValueBytes int) *MemorySlots {
	return &MemorySlots{
		values:        make(map[string]map[string][]byte),
		maxValueBytes: maxValueBytes,
	}
}

// Disable makes every operation fail with sentinel.ErrUnavailable, the way
// storage behaves in a sandboxed or privacy-hardened browser context.
func (m *MemorySlots) Disable() {
	m.disabled.Store(true)
}

// Enable reverses Disable.
func (m *MemorySlots) Enable() {
	m.disabled.Store(false)
}

func (m *MemorySlots) Get(_ context.Context, scope, key string) ([]byte, error) {
	if m.disabled.Load() {
		return nil, sentinel.ErrUnavailable
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[scope][key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return bytes.Clone(value), nil
}

func (m *MemorySlots) Set(_ context.Context, scope, key string, value []byte) error {
	if m.disabled.Load() {
		return sentinel.ErrUnavailable
	}
	if m.maxValueBytes > 0 && len(value) > m.maxValueBytes {
		return sentinel.ErrQuotaExceeded
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	slots, ok := m.values[scope]
	if !ok {
		slots = make(map[string][]byte)
		m.values[scope] = slots
	}
	slots[key] = bytes.Clone(value)
	return nil
}

func (m *MemorySlots) Delete(_ context.Context, scope, key string) error {
	if m.disabled.Load() {
		return sentinel.ErrUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values[scope], key)
	if len(m.values[scope]) == 0 {
		delete(m.values, scope)
	}
	return nil
}
