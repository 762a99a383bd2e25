package settings

import (
	"strconv"
	"sync"
)

// Store is the key/value persistence contract. Reads fall back to a
// default instead of failing; writes report errors.
type Store interface {
	GetString(key, fallback string) string
	SetString(key, value string) error
	GetInt(key string, fallback int) int
	SetInt(key string, value int) error
}

// Compile-time verification of Store implementations.
var (
	_ Store = (*Memory)(nil)
	_ Store = (*Namespace)(nil)
)

// Memory is an in-memory Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// GetString returns the stored value or fallback when the key is absent.
func (m *Memory) GetString(key, fallback string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return fallback
	}

	return v
}

// SetString stores a string value.
func (m *Memory) SetString(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value

	return nil
}

// GetInt returns the stored integer or fallback when the key is absent or
// not numeric.
func (m *Memory) GetInt(key string, fallback int) int {
	raw := m.GetString(key, "")
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

// SetInt stores an integer value.
func (m *Memory) SetInt(key string, value int) error {
	return m.SetString(key, strconv.Itoa(value))
}
