// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package storage

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// File is a [Store] persisted as a single JSON document on disk.
//
// # Durability Model
//
// The full map is rewritten on every mutation via a temp-file rename, so a
// crash mid-write leaves the previous document intact. The payload is five
// short strings; rewrite cost is irrelevant.
type File struct {
	mu     sync.Mutex
	path   string
	values map[string]string
	log    *slog.Logger
}

// NewFile opens (or creates) the JSON store at path. An unreadable or
// corrupt document is treated as empty: the session store's hydration
// layer owns fail-safe recovery, not the storage medium.
func NewFile(path string, log *slog.Logger) (*File, error) {
	store := &File{
		path:   path,
		values: make(map[string]string),
		log:    log,
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run. Nothing to load.
	case err != nil:
		return nil, err
	default:
		if jsonErr := json.Unmarshal(data, &store.values); jsonErr != nil {
			log.Warn("storage file corrupt, starting empty",
				slog.String("path", path),
				slog.Any("error", jsonErr),
			)
			store.values = make(map[string]string)
		}
	}

	return store, nil
}

// Get returns the value for key and whether it was present.
func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	return value, ok
}

// Set writes value under key and flushes to disk.
func (f *File) Set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.flushLocked()
}

// Remove deletes key and flushes to disk.
func (f *File) Remove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	f.flushLocked()
}

// ClearAll wipes every key and flushes to disk.
func (f *File) ClearAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = make(map[string]string)
	f.flushLocked()
}

// flushLocked writes the current map atomically. Caller holds f.mu.
func (f *File) flushLocked() {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		f.log.Error("storage marshal failed", slog.Any("error", err))
		return
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		f.log.Error("storage write failed",
			slog.String("path", tmp),
			slog.Any("error", err),
		)
		return
	}
	if err := os.Rename(tmp, f.path); err != nil {
		f.log.Error("storage rename failed",
			slog.String("path", f.path),
			slog.Any("error", err),
		)
	}
}

// DefaultFilePath returns the conventional location for the store document
// inside the user config directory.
func DefaultFilePath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "volstory")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "storage.json"), nil
}
