package store

import (
	"errors"
	"sync"
)

// Slots is a durable string key-value store. A missing key is reported by
// ok == false, not by an error.
type Slots interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// errSlotsFull is returned by MemSlots when a write failure is injected.
var errSlotsFull = errors.New("slots full")

// MemSlots keeps slots in memory. Use it for tests and dry runs.
type MemSlots struct {
	mu      sync.Mutex
	items   map[string]string
	failSet bool
}

// NewMemSlots creates an empty in-memory slot store.
func NewMemSlots() *MemSlots {
	return &MemSlots{items: make(map[string]string)}
}

// GetItem returns the value stored under key.
func (m *MemSlots) GetItem(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

// SetItem stores value under key.
func (m *MemSlots) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errSlotsFull
	}
	m.items[key] = value
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (m *MemSlots) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// FailWrites makes every following SetItem fail until called with false.
func (m *MemSlots) FailWrites(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet = fail
}

// Keys returns the keys currently set, in no particular order.
func (m *MemSlots) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys
}
