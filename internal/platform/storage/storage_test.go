// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

package storage_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volstory/volstory-go/internal/platform/storage"
)

/*
TestMemory_Operations covers the in-memory store contract.
*/
func TestMemory_Operations(t *testing.T) {
	kv := storage.NewMemory()

	_, ok := kv.Get("missing")
	assert.False(t, ok)

	kv.Set("a", "1")
	kv.Set("b", "2")

	value, ok := kv.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", value)

	kv.Remove("a")
	_, ok = kv.Get("a")
	assert.False(t, ok)

	kv.ClearAll()
	assert.Empty(t, kv.Snapshot())
}

/*
TestMemory_SnapshotIsCopy verifies mutating a snapshot does not leak back
into the store.
*/
func TestMemory_SnapshotIsCopy(t *testing.T) {
	kv := storage.NewMemory()
	kv.Set("a", "1")

	snapshot := kv.Snapshot()
	snapshot["a"] = "tampered"

	value, _ := kv.Get("a")
	assert.Equal(t, "1", value)
}

/*
TestFile_PersistsAcrossReopen verifies mutations survive a process
restart, including deletes.
*/
func TestFile_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	kv, err := storage.NewFile(path, slog.Default())
	require.NoError(t, err)
	kv.Set("refresh_token", "tok-1")
	kv.Set("user_data", `{"userId":"usr-1"}`)
	kv.Remove("user_data")

	reopened, err := storage.NewFile(path, slog.Default())
	require.NoError(t, err)

	value, ok := reopened.Get("refresh_token")
	assert.True(t, ok)
	assert.Equal(t, "tok-1", value)

	_, ok = reopened.Get("user_data")
	assert.False(t, ok)
}

/*
TestFile_CorruptDocumentStartsEmpty verifies a mangled document degrades
to an empty store instead of failing to open.
*/
func TestFile_CorruptDocumentStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	kv, err := storage.NewFile(path, slog.Default())
	require.NoError(t, err)

	_, ok := kv.Get("refresh_token")
	assert.False(t, ok)

	// And the store works normally afterwards.
	kv.Set("refresh_token", "tok-1")
	value, _ := kv.Get("refresh_token")
	assert.Equal(t, "tok-1", value)
}

/*
TestFile_ClearAllEmptiesDocument verifies the on-disk document reflects a
full wipe.
*/
func TestFile_ClearAllEmptiesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	kv, err := storage.NewFile(path, slog.Default())
	require.NoError(t, err)
	kv.Set("a", "1")
	kv.ClearAll()

	reopened, err := storage.NewFile(path, slog.Default())
	require.NoError(t, err)
	_, ok := reopened.Get("a")
	assert.False(t, ok)
}
