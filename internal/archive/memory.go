package archive

import (
	"context"
	"sync"
	"time"
)

// Memory keeps payloads in a map. Used in tests and local development.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemory builds an empty in-memory archive.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Put stores the payload under its content-addressed key and returns a
// mem:// URI.
func (m *Memory) Put(_ context.Context, source, _ string, body []byte) (string, error) {
	name := ObjectName(source, time.Now().UTC(), body)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), body...)
	return "mem://" + name, nil
}

// Len reports how many distinct objects are stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Get returns a stored payload by object name.
func (m *Memory) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[name]
	return body, ok
}
