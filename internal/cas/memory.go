package cas

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process Backend.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]Blob)}
}

// PutIfAbsent implements Backend.
func (m *Memory) PutIfAbsent(_ context.Context, b Blob) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[b.Address]; ok {
		return false, nil
	}
	b.Data = slices.Clone(b.Data)
	m.blobs[b.Address] = b
	return true, nil
}

// Load implements Backend.
func (m *Memory) Load(_ context.Context, address string) (Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[address]
	if !ok {
		return Blob{}, fmt.Errorf("%s: %w", address, ErrNotFound)
	}
	b.Data = slices.Clone(b.Data)
	return b, nil
}

// Has implements Backend.
func (m *Memory) Has(_ context.Context, address string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[address]
	return ok, nil
}

// ScanPrefix implements Backend.
func (m *Memory) ScanPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []string{}
	for addr := range m.blobs {
		if strings.HasPrefix(addr, prefix) {
			out = append(out, addr)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// StoredBytes returns the total size of stored (possibly compressed) data.
func (m *Memory) StoredBytes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, b := range m.blobs {
		n += len(b.Data)
	}
	return n
}
