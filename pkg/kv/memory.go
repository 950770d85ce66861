package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store. With a positive quota, Set fails with
// ErrQuotaExceeded once keys plus values would exceed quota bytes.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]string
	quota int
	used  int
}

// NewMemory creates an empty in-memory store. quota <= 0 means unlimited.
func NewMemory(quota int) *Memory {
	return &Memory{data: make(map[string]string), quota: quota}
}

// Get returns the value stored under key.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key, replacing any prior value.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	used := m.used + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		used -= len(key) + len(old)
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.used = used
	return nil
}

// Remove deletes key.
func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}
