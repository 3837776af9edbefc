package prefs

import (
	"context"
	"sync"
)

// Memory is an in-process Storage.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(_ context.Context, key string, fn func(old string, ok bool) (string, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.values[key]
	v, err := fn(old, ok)
	if err != nil {
		return err
	}
	m.values[key] = v
	return nil
}

// MemoryBackend keeps one Memory per visitor.
type MemoryBackend struct {
	mu       sync.Mutex
	visitors map[string]*Memory
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{visitors: make(map[string]*Memory)}
}

func (b *MemoryBackend) For(visitorID string) Storage {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.visitors[visitorID]
	if !ok {
		m = NewMemory()
		b.visitors[visitorID] = m
	}
	return m
}
