package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and throwaway dev runs.
// Nothing survives Close.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key, value []byte, check Check) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	prev := m.data[string(key)]
	if check != nil {
		if err := check(prev); err != nil {
			return nil, err
		}
	}
	m.data[string(key)] = clone(value)
	return prev, nil
}

func (m *Memory) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return clone(v), nil
}

func (m *Memory) Delete(_ context.Context, key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	prev, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	delete(m.data, string(key))
	return prev, nil
}

func (m *Memory) Exists(_ context.Context, key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
