// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

/*
Package storage provides the durable key-value capability backing the
session store and the API transport.

The contract is intentionally tiny: string keys, string values, synchronous
calls. It mirrors the on-device storage of the mobile clients (MMKV on
native, LocalStorage on web), so every backend must behave like a local,
always-available medium.

Implementations:

  - Memory: process-lifetime map. Used by tests and the demo driver.
  - File: a single JSON document on disk. Durable across restarts.
  - Redis: a hash per installation. For server-side hosts of the SDK.

Concurrency: all implementations serialize access internally, so the
session store and the transport may share one instance freely.
*/
package storage

import "sync"

// Store is the persistent key-value capability consumed by the session
// store and, for the token keys, directly by the API transport.
//
// # Error Model
//
// The surface is deliberately error-free: local storage either works or the
// host is unusable. Backends with fallible media (file, redis) log failures
// and degrade to their in-memory view rather than surfacing errors into
// every call site.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool)

	// Set writes value under key, overwriting any previous value.
	Set(key, value string)

	// Remove deletes key. Removing an absent key is a no-op.
	Remove(key string)

	// ClearAll wipes every key. Used on hydration failure and account wipe.
	ClearAll()
}

// Memory is an in-process [Store]. The zero value is not usable; construct
// with [NewMemory].
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (m *Memory) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok
}

// Set writes value under key.
func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Remove deletes key.
func (m *Memory) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// ClearAll wipes every key.
func (m *Memory) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
}

// Snapshot returns a copy of the current contents. Test helper.
func (m *Memory) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
